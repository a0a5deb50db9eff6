// Package ucode implements the universal integer codes of component C2:
// unary, gamma, delta, zeta_k, and pi_k, each as a prefix-free encoding of
// a natural number on top of an internal/bitio stream. A code is selected
// per field role (outdegree, reference, block, interval, residual,
// offset) by its properties-file identifier; Parse resolves that
// identifier to a Code value, giving the six-role dispatch a single
// runtime v-table rather than a compile-time cross product (spec section
// 4.2's "Static vs dynamic code dispatch" design note — this module picks
// the dynamic strategy since the codec is built around one graph format,
// not many, so monomorphization buys little).
package ucode

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/dsnet/bvgraph/internal/bitio"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "ucode: " + string(e) }

// Code is a total, prefix-free encoding of a natural number.
type Code interface {
	// Read decodes the next value from r.
	Read(r *bitio.Reader) uint64
	// Write encodes v to w and returns the number of bits emitted.
	Write(w *bitio.Writer, v uint64) (uint, error)
	// Name is the stable textual identifier stored in the properties file.
	Name() string
}

// Parse resolves a properties-file code identifier to a Code. Unknown
// identifiers are reported as ucode.Error so callers can wrap them in the
// UnknownCode failure kind.
func Parse(name string) (Code, error) {
	switch {
	case name == "unary":
		return Unary{}, nil
	case name == "gamma":
		return Gamma{}, nil
	case name == "delta":
		return Delta{}, nil
	case strings.HasPrefix(name, "zeta"):
		k, err := parseParam(name, "zeta")
		if err != nil {
			return nil, err
		}
		return Zeta{K: k}, nil
	case strings.HasPrefix(name, "pi"):
		k, err := parseParam(name, "pi")
		if err != nil {
			return nil, err
		}
		return Pi{K: k}, nil
	case strings.HasPrefix(name, "golomb"):
		m, err := parseParam(name, "golomb")
		if err != nil {
			return nil, err
		}
		return Golomb{M: uint64(m)}, nil
	default:
		return nil, Error("unknown code identifier: " + name)
	}
}

func parseParam(name, prefix string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
	if err != nil || n < 1 || n > 7 {
		return 0, Error("invalid parameter for code: " + name)
	}
	return n, nil
}

// Unary encodes n as n zero bits followed by a one bit.
type Unary struct{}

func (Unary) Name() string { return "unary" }

func (Unary) Read(r *bitio.Reader) uint64 { return r.ReadUnary() }

func (Unary) Write(w *bitio.Writer, v uint64) (uint, error) {
	if err := w.WriteUnary(v); err != nil {
		return 0, err
	}
	return uint(v) + 1, nil
}

// Gamma encodes n as Unary(k) followed by the low k bits of n+1, where
// k = floor(log2(n+1)), eliding the implicit leading 1 bit.
type Gamma struct{}

func (Gamma) Name() string { return "gamma" }

func (Gamma) Read(r *bitio.Reader) uint64 {
	k := r.ReadUnary()
	if k == 0 {
		return 0
	}
	low := r.ReadBits(uint(k))
	return (uint64(1)<<k | low) - 1
}

func (Gamma) Write(w *bitio.Writer, v uint64) (uint, error) {
	k := bitLen(v + 1)
	if err := w.WriteUnary(uint64(k)); err != nil {
		return 0, err
	}
	n := uint(k) + 1
	if k > 0 {
		low := (v + 1) &^ (uint64(1) << uint(k))
		if err := w.WriteBits(low, uint(k)); err != nil {
			return 0, err
		}
		n += uint(k)
	}
	return n, nil
}

// Delta encodes n as Gamma(k) followed by the low k bits of n+1, where
// k = floor(log2(n+1)).
type Delta struct{}

func (Delta) Name() string { return "delta" }

func (Delta) Read(r *bitio.Reader) uint64 {
	k := Gamma{}.Read(r)
	if k == 0 {
		return 0
	}
	low := r.ReadBits(uint(k))
	return (uint64(1)<<k | low) - 1
}

func (Delta) Write(w *bitio.Writer, v uint64) (uint, error) {
	k := bitLen(v + 1)
	n, err := Gamma{}.Write(w, uint64(k))
	if err != nil {
		return 0, err
	}
	if k > 0 {
		low := (v + 1) &^ (uint64(1) << uint(k))
		if err := w.WriteBits(low, uint(k)); err != nil {
			return 0, err
		}
		n += uint(k)
	}
	return n, nil
}

// Zeta is the ζ_k code: it partitions the naturals into buckets
// [2^(hk)-1, 2^((h+1)k)-1), transmits the bucket index h in unary, and
// the offset within the bucket as a minimal binary code.
type Zeta struct{ K int }

func (z Zeta) Name() string { return "zeta" + strconv.Itoa(z.K) }

func (z Zeta) bucket(n uint64) (h uint64, base, width uint64) {
	k := uint(z.K)
	for {
		hi := uint64(1)<<((h+1)*uint64(k)) - 1
		if n < hi {
			break
		}
		h++
	}
	base = uint64(1)<<(h*uint64(k)) - 1
	width = uint64(1)<<((h+1)*uint64(k)) - uint64(1)<<(h*uint64(k))
	return h, base, width
}

func (z Zeta) Read(r *bitio.Reader) uint64 {
	h := r.ReadUnary()
	k := uint64(z.K)
	base := uint64(1)<<(h*k) - 1
	width := uint64(1)<<((h+1)*k) - uint64(1)<<(h*k)
	off := readMinimalBinary(r, width)
	return base + off
}

func (z Zeta) Write(w *bitio.Writer, v uint64) (uint, error) {
	h, base, width := z.bucket(v)
	if err := w.WriteUnary(h); err != nil {
		return 0, err
	}
	n := uint(h) + 1
	nn, err := writeMinimalBinary(w, v-base, width)
	if err != nil {
		return 0, err
	}
	return n + nn, nil
}

// Pi is the π_k code: structurally identical to ζ_k, but the bucket index
// is itself γ-coded rather than unary-coded, which keeps the bucket-index
// overhead sub-logarithmic for the large k values π codes are chosen for.
type Pi struct{ K int }

func (p Pi) Name() string { return "pi" + strconv.Itoa(p.K) }

func (p Pi) Read(r *bitio.Reader) uint64 {
	h := Gamma{}.Read(r)
	k := uint64(p.K)
	base := uint64(1)<<(h*k) - 1
	width := uint64(1)<<((h+1)*k) - uint64(1)<<(h*k)
	off := readMinimalBinary(r, width)
	return base + off
}

func (p Pi) Write(w *bitio.Writer, v uint64) (uint, error) {
	z := Zeta{K: p.K}
	h, base, width := z.bucket(v)
	n, err := Gamma{}.Write(w, h)
	if err != nil {
		return 0, err
	}
	nn, err := writeMinimalBinary(w, v-base, width)
	if err != nil {
		return 0, err
	}
	return n + nn, nil
}

// Golomb is the Golomb/Rice-style code with modulus M: a unary-coded
// quotient followed by a minimal binary remainder. Provided, per spec
// section 4.2, for completeness; no field role selects it by default.
type Golomb struct{ M uint64 }

func (g Golomb) Name() string { return "golomb" + strconv.FormatUint(g.M, 10) }

func (g Golomb) Read(r *bitio.Reader) uint64 {
	q := r.ReadUnary()
	rem := readMinimalBinary(r, g.M)
	return q*g.M + rem
}

func (g Golomb) Write(w *bitio.Writer, v uint64) (uint, error) {
	q, rem := v/g.M, v%g.M
	if err := w.WriteUnary(q); err != nil {
		return 0, err
	}
	n := uint(q) + 1
	nn, err := writeMinimalBinary(w, rem, g.M)
	if err != nil {
		return 0, err
	}
	return n + nn, nil
}

// PlainBinary is a fixed-width binary code over [0, 2^Width). Provided
// for completeness alongside exp-Golomb (spec section 4.2); it is not
// prefix-free on its own and is only safe to use where the decoder knows
// Width out of band.
type PlainBinary struct{ Width uint }

func (PlainBinary) Name() string { return "binary" }

func (p PlainBinary) Read(r *bitio.Reader) uint64 { return r.ReadBits(p.Width) }

func (p PlainBinary) Write(w *bitio.Writer, v uint64) (uint, error) {
	if err := w.WriteBits(v, p.Width); err != nil {
		return 0, err
	}
	return p.Width, nil
}

// bitLen returns floor(log2(v)) for v >= 1, and 0 for v == 0.
func bitLen(v uint64) int {
	if v == 0 {
		return 0
	}
	return bits.Len64(v) - 1
}

// readMinimalBinary reads a value in [0, width) using Elias' minimal
// (truncated) binary code: the shortest prefix-free binary code for a
// bounded alphabet.
func readMinimalBinary(r *bitio.Reader, width uint64) uint64 {
	if width <= 1 {
		return 0
	}
	b := uint(bitLen(width))
	u := uint64(1)<<(b+1) - width
	v := r.ReadBits(b)
	if v < u {
		return v
	}
	extra := r.ReadBits(1)
	return (v<<1 | extra) - u
}

// writeMinimalBinary writes x (in [0, width)) using Elias' minimal binary
// code and returns the number of bits emitted.
func writeMinimalBinary(w *bitio.Writer, x, width uint64) (uint, error) {
	if width <= 1 {
		return 0, nil
	}
	b := uint(bitLen(width))
	u := uint64(1)<<(b+1) - width
	if x < u {
		if err := w.WriteBits(x, b); err != nil {
			return 0, err
		}
		return b, nil
	}
	if err := w.WriteBits(x+u, b+1); err != nil {
		return 0, err
	}
	return b + 1, nil
}

// Zigzag maps a signed delta to a natural number: non-negative values map
// to even numbers, negative values to odd numbers, so that small
// magnitudes (in either direction) stay small after the mapping.
func Zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// Unzigzag is the inverse of Zigzag.
func Unzigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
