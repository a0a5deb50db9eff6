// Package offsets implements component C3: the monotone sequence O of
// per-node bit-offsets into the graph bitstream, in both its on-disk
// gap-coded form (read and written through internal/bitio, reusing the
// same primitive as the graph bitstream itself per spec section 4.3) and
// its in-memory succinct random-access form, a two-level Elias-Fano
// index over O that answers O[v] in O(1) with sub-linear space overhead.
package offsets

import (
	"encoding/binary"
	"math/bits"

	"github.com/dsnet/bvgraph/internal/bitio"
	"github.com/dsnet/bvgraph/internal/ucode"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "offsets: " + string(e) }

// GapWriter serializes a monotone sequence of absolute bit-offsets as
// successive gaps, encoded with the caller-supplied offset code. O[0] is
// always implicitly zero; callers write O[1..N] via WriteNext in order.
type GapWriter struct {
	w    *bitio.Writer
	code ucode.Code
	prev uint64
}

// NewGapWriter constructs a GapWriter over w using code for each gap.
func NewGapWriter(w *bitio.Writer, code ucode.Code) *GapWriter {
	return &GapWriter{w: w, code: code}
}

// WriteNext writes the next absolute offset, which must be >= the last
// offset written (or >= 0 for the first call).
func (gw *GapWriter) WriteNext(abs uint64) error {
	if abs < gw.prev {
		return Error("offsets must be non-decreasing")
	}
	if _, err := gw.code.Write(gw.w, abs-gw.prev); err != nil {
		return err
	}
	gw.prev = abs
	return nil
}

// GapReader deserializes a gap-coded offsets sequence written by GapWriter.
type GapReader struct {
	r    *bitio.Reader
	code ucode.Code
	prev uint64
}

// NewGapReader constructs a GapReader over r using code for each gap.
func NewGapReader(r *bitio.Reader, code ucode.Code) *GapReader {
	return &GapReader{r: r, code: code}
}

// Next decodes and returns the next absolute offset.
func (gr *GapReader) Next() uint64 {
	gr.prev += gr.code.Read(gr.r)
	return gr.prev
}

// ReadAll decodes n+1 absolute offsets (O[0]..O[n]) by scanning the whole
// gap-coded stream once. This is the code path used for sequential
// iteration when no succinct .ef index has been built (spec section 4.3).
func ReadAll(r *bitio.Reader, code ucode.Code, n uint64) []uint64 {
	out := make([]uint64, n+1)
	gr := NewGapReader(r, code)
	out[0] = 0
	for i := uint64(1); i <= n; i++ {
		out[i] = gr.Next()
	}
	return out
}

// EliasFano is a two-level succinct monotone dictionary mapping an index
// v in [0,n) to O[v], answering in O(1) with O(n log(u/n)) bits of space
// where u is the universe size (the bit length of the graph stream).
//
// The classic construction splits each value into a shared low-bit width
// l (stored packed, n*l bits total) and a high part stored as unary gaps
// in a single bit vector of n + u>>l bits. A plain linear scan for the
// i-th set bit in that vector would cost O(u/n) on average; this
// implementation adds a sample table recording the bit position of every
// sampleRate-th set bit, bounding the scan to O(sampleRate) words.
type EliasFano struct {
	n, u       uint64
	l          uint
	low        []uint64 // n*l bits, packed LSB-first
	high       []uint64 // n + (u>>l) + 1 bits, packed LSB-first
	highBits   uint64
	sampleRate uint64
	samples    []uint64 // samples[i] = bit position of the (i*sampleRate)-th one bit
}

const defaultSampleRate = 64

// Build constructs an EliasFano index over offsets, a non-decreasing
// sequence with offsets[0] == 0. The returned index answers Lookup(v) for
// v in [0, len(offsets)).
func Build(offsets []uint64) *EliasFano {
	n := uint64(len(offsets))
	var u uint64
	if n > 0 {
		u = offsets[n-1] + 1
	}

	ef := &EliasFano{n: n, u: u, sampleRate: defaultSampleRate}
	if n > 1 && u/n > 0 {
		ef.l = uint(bits.Len64(u/n)) - 1
	}
	ef.highBits = n + (u >> ef.l) + 1
	ef.low = make([]uint64, (n*uint64(ef.l)+63)/64)
	ef.high = make([]uint64, (ef.highBits+63)/64)

	for i, v := range offsets {
		lowMask := uint64(1)<<ef.l - 1
		ef.setLow(uint64(i), v&lowMask)
		pos := (v >> ef.l) + uint64(i)
		setBit(ef.high, pos)
	}
	ef.buildSamples()
	return ef
}

func (ef *EliasFano) buildSamples() {
	nSamples := int(ef.n/ef.sampleRate) + 1
	ef.samples = make([]uint64, 0, nSamples)
	var ones uint64
	for pos := uint64(0); pos < ef.highBits; pos++ {
		if getBit(ef.high, pos) {
			if ones%ef.sampleRate == 0 {
				ef.samples = append(ef.samples, pos)
			}
			ones++
		}
	}
}

// Select returns the bit position of the i-th (0-indexed) set bit in the
// high-bit vector.
func (ef *EliasFano) Select(i uint64) uint64 {
	sampleIdx := i / ef.sampleRate
	pos := ef.samples[sampleIdx]
	remaining := i - sampleIdx*ef.sampleRate

	wordIdx := pos / 64
	// Mask off bits at or before pos in the first word, since that set
	// bit is the sample itself and should not be counted again.
	word := ef.high[wordIdx] &^ (uint64(1)<<(pos%64) - 1)
	for {
		cnt := uint64(bits.OnesCount64(word))
		if remaining < cnt {
			break
		}
		remaining -= cnt
		wordIdx++
		word = ef.high[wordIdx]
	}
	// Find the (remaining+1)-th set bit in word, counting from the bit at
	// pos (inclusive) for the first word.
	for {
		lsb := word & (-word)
		if remaining == 0 {
			return wordIdx*64 + uint64(bits.TrailingZeros64(word))
		}
		word &^= lsb
		remaining--
	}
}

// Lookup returns O[v].
func (ef *EliasFano) Lookup(v uint64) uint64 {
	pos := ef.Select(v)
	high := pos - v
	low := ef.getLow(v)
	return high<<ef.l | low
}

// Len reports the number of elements the index was built over.
func (ef *EliasFano) Len() uint64 { return ef.n }

func (ef *EliasFano) setLow(i, v uint64) {
	if ef.l == 0 {
		return
	}
	bitPos := i * uint64(ef.l)
	for b := uint(0); b < ef.l; b++ {
		if v&(1<<b) != 0 {
			setBit(ef.low, bitPos+uint64(b))
		}
	}
}

func (ef *EliasFano) getLow(i uint64) uint64 {
	if ef.l == 0 {
		return 0
	}
	bitPos := i * uint64(ef.l)
	var v uint64
	for b := uint(0); b < ef.l; b++ {
		if getBit(ef.low, bitPos+uint64(b)) {
			v |= 1 << b
		}
	}
	return v
}

func setBit(words []uint64, pos uint64) {
	words[pos/64] |= 1 << (pos % 64)
}

func getBit(words []uint64, pos uint64) bool {
	return words[pos/64]&(1<<(pos%64)) != 0
}

// Marshal serializes the index to a flat byte slice (the .ef file
// format): a small fixed header followed by the packed low and high bit
// vectors and the sample table.
func (ef *EliasFano) Marshal() []byte {
	hdr := make([]byte, 8*6)
	binary.LittleEndian.PutUint64(hdr[0:], ef.n)
	binary.LittleEndian.PutUint64(hdr[8:], ef.u)
	binary.LittleEndian.PutUint64(hdr[16:], uint64(ef.l))
	binary.LittleEndian.PutUint64(hdr[24:], ef.highBits)
	binary.LittleEndian.PutUint64(hdr[32:], ef.sampleRate)
	binary.LittleEndian.PutUint64(hdr[40:], uint64(len(ef.samples)))

	out := hdr
	out = appendWords(out, ef.low)
	out = appendWords(out, ef.high)
	out = appendWords(out, ef.samples)
	return out
}

// Unmarshal parses a byte slice produced by Marshal.
func Unmarshal(buf []byte) (*EliasFano, error) {
	if len(buf) < 48 {
		return nil, Error("truncated ef index header")
	}
	ef := &EliasFano{
		n:          binary.LittleEndian.Uint64(buf[0:]),
		u:          binary.LittleEndian.Uint64(buf[8:]),
		l:          uint(binary.LittleEndian.Uint64(buf[16:])),
		highBits:   binary.LittleEndian.Uint64(buf[24:]),
		sampleRate: binary.LittleEndian.Uint64(buf[32:]),
	}
	nSamples := binary.LittleEndian.Uint64(buf[40:])
	buf = buf[48:]

	nLow := (ef.n*uint64(ef.l) + 63) / 64
	nHigh := (ef.highBits + 63) / 64
	var err error
	if ef.low, buf, err = readWords(buf, nLow); err != nil {
		return nil, err
	}
	if ef.high, buf, err = readWords(buf, nHigh); err != nil {
		return nil, err
	}
	if ef.samples, _, err = readWords(buf, nSamples); err != nil {
		return nil, err
	}
	return ef, nil
}

func appendWords(out []byte, words []uint64) []byte {
	for _, w := range words {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], w)
		out = append(out, b[:]...)
	}
	return out
}

func readWords(buf []byte, n uint64) ([]uint64, []byte, error) {
	if uint64(len(buf)) < n*8 {
		return nil, nil, Error("truncated ef index body")
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return words, buf[n*8:], nil
}
