package bvgraph

import (
	"io"

	"github.com/dsnet/bvgraph/internal/bitio"
	"github.com/dsnet/bvgraph/internal/ucode"
)

// RefPolicy selects how a Builder chooses each node's reference delta
// (spec section 4.5's "how aggressively to search the window" design
// note).
type RefPolicy int

const (
	// PolicyExhaustive trial-encodes every candidate reference in the
	// current window (and the no-reference case) and keeps whichever
	// produces the fewest bits. This is the Zuckerli-inspired wide
	// search: slower to build, but it never leaves bits on the table
	// that a narrower heuristic would have found.
	PolicyExhaustive RefPolicy = iota
	// PolicyFast picks the candidate with the largest value
	// intersection against the list being encoded, breaking ties
	// toward the smallest delta, without any trial encoding.
	PolicyFast
)

// encodeCopyBlocks writes mask's run-length encoding using the
// conventions decodeCopyBlocks expects: runs alternate copy, skip,
// copy, ... starting with copy; the first run's length is written
// unmodified (it may be zero); every other explicit run is written as
// length-1; the final run is never written, since it implicitly extends
// to the end of the reference list.
func encodeCopyBlocks(w *bitio.Writer, mask []bool, blockCode ucode.Code) error {
	runs := buildRuns(mask)
	nb := uint64(len(runs) - 1)
	if _, err := blockCode.Write(w, nb); err != nil {
		return err
	}
	for i := uint64(0); i < nb; i++ {
		length := runs[i].length
		if i > 0 {
			length--
		}
		if _, err := blockCode.Write(w, length); err != nil {
			return err
		}
	}
	return nil
}

type runT struct {
	typ    bool
	length uint64
}

func buildRuns(mask []bool) []runT {
	var runs []runT
	i := 0
	for i < len(mask) {
		typ := mask[i]
		j := i
		for j < len(mask) && mask[j] == typ {
			j++
		}
		runs = append(runs, runT{typ, uint64(j - i)})
		i = j
	}
	switch {
	case len(runs) == 0:
		runs = append(runs, runT{true, 0})
	case !runs[0].typ:
		runs = append([]runT{{true, 0}}, runs...)
	}
	return runs
}

// computeCopyMask marks, for each element of ref, whether it also
// appears in succ. Both slices are sorted ascending.
func computeCopyMask(ref, succ []uint64) []bool {
	mask := make([]bool, len(ref))
	i, j := 0, 0
	for i < len(ref) && j < len(succ) {
		switch {
		case ref[i] == succ[j]:
			mask[i] = true
			i++
			j++
		case ref[i] < succ[j]:
			i++
		default:
			j++
		}
	}
	return mask
}

func copiedValues(ref []uint64, mask []bool) []uint64 {
	out := make([]uint64, 0, len(ref))
	for i, m := range mask {
		if m {
			out = append(out, ref[i])
		}
	}
	return out
}

// subtractSorted returns the elements of a that are not in b, both
// sorted ascending with b a subset of a.
func subtractSorted(a, b []uint64) []uint64 {
	out := make([]uint64, 0, len(a)-len(b))
	i, j := 0, 0
	for i < len(a) {
		if j < len(b) && a[i] == b[j] {
			i++
			j++
			continue
		}
		out = append(out, a[i])
		i++
	}
	return out
}

// extractIntervals greedily partitions the sorted values in vals into
// maximal runs of consecutive integers, keeping a run as an interval
// only once it reaches minLen; shorter runs fall through to resid as
// individual residuals.
func extractIntervals(vals []uint64, minLen uint64) ([]interval, []uint64) {
	var ivs []interval
	var resid []uint64
	i := 0
	for i < len(vals) {
		j := i
		for j+1 < len(vals) && vals[j+1] == vals[j]+1 {
			j++
		}
		runLen := uint64(j - i + 1)
		if runLen >= minLen {
			ivs = append(ivs, interval{left: vals[i], length: runLen})
			i = j + 1
		} else {
			resid = append(resid, vals[i])
			i++
		}
	}
	return ivs, resid
}

func encodeIntervals(w *bitio.Writer, v uint64, ivs []interval, minIntervalLength uint64, code ucode.Code) error {
	if _, err := code.Write(w, uint64(len(ivs))); err != nil {
		return err
	}
	var prevRight int64 = -1
	for i, iv := range ivs {
		if i == 0 {
			if _, err := code.Write(w, ucode.Zigzag(int64(iv.left)-int64(v))); err != nil {
				return err
			}
		} else {
			gap := int64(iv.left) - (prevRight + 2)
			if _, err := code.Write(w, uint64(gap)); err != nil {
				return err
			}
		}
		if _, err := code.Write(w, iv.length-minIntervalLength); err != nil {
			return err
		}
		prevRight = int64(iv.left) + int64(iv.length) - 1
	}
	return nil
}

func encodeResiduals(w *bitio.Writer, v uint64, resid []uint64, code ucode.Code) error {
	if len(resid) == 0 {
		return nil
	}
	var prev int64
	for i, val := range resid {
		if i == 0 {
			if _, err := code.Write(w, ucode.Zigzag(int64(val)-int64(v))); err != nil {
				return err
			}
		} else {
			if _, err := code.Write(w, uint64(int64(val)-prev-1)); err != nil {
				return err
			}
		}
		prev = int64(val)
	}
	return nil
}

// encodeRecord writes v's record: outdegree, optional reference delta
// and copy bitmap, interval runs, and residuals. ref is v-r's successor
// list; it is only read when r > 0.
func encodeRecord(w *bitio.Writer, v uint64, succ []uint64, r uint64, ref []uint64, p params, c codeSet) error {
	if _, err := c.Outdegree.Write(w, uint64(len(succ))); err != nil {
		return err
	}
	if len(succ) == 0 {
		return nil
	}
	if p.WindowSize > 0 {
		if _, err := c.Reference.Write(w, r); err != nil {
			return err
		}
	}

	remaining := succ
	if r > 0 {
		mask := computeCopyMask(ref, succ)
		if err := encodeCopyBlocks(w, mask, c.Block); err != nil {
			return err
		}
		remaining = subtractSorted(succ, copiedValues(ref, mask))
	}

	ivs, resid := extractIntervals(remaining, uint64(p.MinIntervalLength))
	if len(remaining) > 0 {
		if err := encodeIntervals(w, v, ivs, uint64(p.MinIntervalLength), c.Interval); err != nil {
			return err
		}
	}
	return encodeResiduals(w, v, resid, c.Residual)
}

// trialBits reports how many bits encodeRecord would emit for the given
// reference choice, without touching the real output stream.
func trialBits(v uint64, succ []uint64, r uint64, ref []uint64, p params, c codeSet) uint64 {
	bw := bitio.NewWriter(io.Discard, bitio.LSB)
	// encodeRecord cannot fail writing to io.Discard.
	_ = encodeRecord(bw, v, succ, r, ref, p, c)
	return bw.Position()
}

// chooseReference selects the reference delta (0 meaning none) for
// node v's successor list succ, given the previously built records
// still live in win (a node u is a candidate iff v-u <= WindowSize and
// its chain depth is still below MaxRefCount).
func chooseReference(policy RefPolicy, v uint64, succ []uint64, win *window, p params, c codeSet) (r uint64, ref record) {
	maxR := uint64(p.WindowSize)
	if maxR > v {
		maxR = v
	}

	switch policy {
	case PolicyFast:
		bestR, bestScore := uint64(0), -1
		for cand := uint64(1); cand <= maxR; cand++ {
			rec := winLookup(win, v-cand)
			if rec == nil || rec.depth >= p.MaxRefCount {
				continue
			}
			score := intersectionSize(rec.succ, succ)
			if score > bestScore {
				bestScore, bestR = score, cand
			}
		}
		if bestR == 0 {
			return 0, record{}
		}
		return bestR, *winLookup(win, v-bestR)

	default: // PolicyExhaustive
		bestR := uint64(0)
		bestBits := trialBits(v, succ, 0, nil, p, c)
		var bestRef record
		for cand := uint64(1); cand <= maxR; cand++ {
			rec := winLookup(win, v-cand)
			if rec == nil || rec.depth >= p.MaxRefCount {
				continue
			}
			bits := trialBits(v, succ, cand, rec.succ, p, c)
			if bits < bestBits {
				bestBits, bestR, bestRef = bits, cand, *rec
			}
		}
		return bestR, bestRef
	}
}

func winLookup(win *window, id uint64) *record {
	slot := int(id) % win.size
	if win.ids[slot] != int64(id) {
		return nil
	}
	r := win.entries[slot]
	return &r
}

func intersectionSize(a, b []uint64) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
