package bvgraph

import (
	"github.com/dsnet/golib/errs"

	"github.com/dsnet/bvgraph/internal/bitio"
	"github.com/dsnet/bvgraph/internal/ucode"
)

// refLookupFunc resolves the successor record of node v-r on demand: the
// sequential iterator serves it from its materialized window, a
// random-access reader serves it by recursively decoding at O[v-r].
type refLookupFunc func(r uint64) record

// decodeRecord decodes node v's successor list from br, which must be
// positioned at the start of v's record. n is the node count, used to
// validate each decoded successor falls in range. lookupRef is only
// called when the record carries a reference (r > 0).
//
// It panics with a bvgraph.Error on any structural violation; callers
// recover it via errs.Recover and attach the CorruptOrder or
// CorruptChain kind.
func decodeRecord(br *bitio.Reader, v, n uint64, p params, c codeSet, lookupRef refLookupFunc) record {
	d := c.Outdegree.Read(br)
	if d == 0 {
		return record{}
	}

	var r uint64
	if p.WindowSize > 0 {
		r = c.Reference.Read(br)
	}

	var ref record
	depth := 0
	var copied []uint64
	if r > 0 {
		errs.Assert(r <= v, errRefTooFar)
		ref = lookupRef(r)
		depth = ref.depth + 1
		errs.Assert(depth <= p.MaxRefCount, errChainTooDeep)
		copied = decodeCopyBlocks(br, ref.succ, c.Block)
	}

	errs.Assert(uint64(len(copied)) <= d, errCopyCountMismatch)
	extra := d - uint64(len(copied))

	intervals := decodeIntervals(br, v, extra, p.MinIntervalLength, c.Interval)
	var intervalCount uint64
	for _, iv := range intervals {
		intervalCount += iv.length
	}
	errs.Assert(intervalCount <= extra, errIntervalOverrun)
	residCount := extra - intervalCount

	residuals := decodeResiduals(br, v, residCount, c.Residual)

	succ := mergeSuccessors(copied, intervals, residuals)
	errs.Assert(uint64(len(succ)) == d, errOutdegreeMismatch)
	validateSuccessors(succ, n)

	return record{succ: succ, depth: depth}
}

// decodeCopyBlocks reads the copy bitmap's run-length encoding and
// returns the elements of ref that the bitmap marks copied, in order.
//
// Blocks alternate copy, skip, copy, skip, ... starting with copy. The
// first block's length is read directly (it may be zero, when the
// reference list begins with a skipped run); every later block's length
// is read as (length-1), since two adjacent blocks of the same kind are
// always merged by the encoder and so cannot have length zero. A
// trailing implicit block, not counted in nb, extends whichever kind is
// current to the end of ref.
func decodeCopyBlocks(br *bitio.Reader, ref []uint64, blockCode ucode.Code) []uint64 {
	nb := blockCode.Read(br)
	var copied []uint64
	pos := uint64(0)
	copying := true
	for i := uint64(0); i < nb; i++ {
		length := blockCode.Read(br)
		if i > 0 {
			length++
		}
		errs.Assert(pos+length <= uint64(len(ref)), errCopyOverrun)
		if copying {
			copied = append(copied, ref[pos:pos+length]...)
		}
		pos += length
		copying = !copying
	}
	if copying {
		copied = append(copied, ref[pos:]...)
	}
	return copied
}

type interval struct {
	left   uint64
	length uint64
}

// decodeIntervals reads the interval run list: a count, then for each
// run a delta-coded left endpoint and a length (both via the interval
// code). The first left endpoint is signed, delta-coded against v; every
// later left endpoint is delta-coded, non-negatively, against the
// previous run's right endpoint + 2 (the smallest gap that does not
// itself qualify as part of the previous run). Lengths are stored as
// (length - minIntervalLength).
func decodeIntervals(br *bitio.Reader, v, remaining uint64, minIntervalLength uint64, code ucode.Code) []interval {
	if remaining == 0 {
		return nil
	}
	count := code.Read(br)
	if count == 0 {
		return nil
	}
	out := make([]interval, count)
	var prevRight int64 = -1
	for i := range out {
		var left int64
		if i == 0 {
			left = int64(v) + ucode.Unzigzag(code.Read(br))
		} else {
			left = prevRight + 2 + int64(code.Read(br))
		}
		length := minIntervalLength + code.Read(br)
		out[i] = interval{left: uint64(left), length: length}
		prevRight = left + int64(length) - 1
	}
	return out
}

// decodeResiduals reads count residual successors: the first is
// signed-delta coded against v, every later one is a non-negative gap
// (successor_i - successor_(i-1) - 1) against the previous residual.
func decodeResiduals(br *bitio.Reader, v, count uint64, code ucode.Code) []uint64 {
	if count == 0 {
		return nil
	}
	out := make([]uint64, count)
	var prev int64
	for i := range out {
		if i == 0 {
			out[i] = uint64(int64(v) + ucode.Unzigzag(code.Read(br)))
		} else {
			out[i] = uint64(prev + 1 + int64(code.Read(br)))
		}
		prev = int64(out[i])
	}
	return out
}

// mergeSuccessors merges the copied, interval, and residual successor
// groups into a single sorted list. Within a record the three groups
// occupy disjoint ranges of the node id space by construction, so a
// straightforward 3-way merge (expanding each interval to its member
// ids) reproduces the original sorted successor list.
func mergeSuccessors(copied []uint64, intervals []interval, residuals []uint64) []uint64 {
	total := uint64(len(copied))
	for _, iv := range intervals {
		total += iv.length
	}
	total += uint64(len(residuals))
	out := make([]uint64, 0, total)

	intervalVals := make([]uint64, 0, total-uint64(len(copied))-uint64(len(residuals)))
	for _, iv := range intervals {
		for i := uint64(0); i < iv.length; i++ {
			intervalVals = append(intervalVals, iv.left+i)
		}
	}

	i, j, k := 0, 0, 0
	for i < len(copied) || j < len(intervalVals) || k < len(residuals) {
		// Each group is individually sorted and the groups partition a
		// common sorted sequence, so a standard 3-way merge by current
		// head suffices.
		var bi, bj, bk uint64 = ^uint64(0), ^uint64(0), ^uint64(0)
		if i < len(copied) {
			bi = copied[i]
		}
		if j < len(intervalVals) {
			bj = intervalVals[j]
		}
		if k < len(residuals) {
			bk = residuals[k]
		}
		switch {
		case bi <= bj && bi <= bk:
			out = append(out, bi)
			i++
		case bj <= bi && bj <= bk:
			out = append(out, bj)
			j++
		default:
			out = append(out, bk)
			k++
		}
	}
	return out
}

func validateSuccessors(succ []uint64, n uint64) {
	var prev int64 = -1
	for _, s := range succ {
		errs.Assert(s < n, errSuccessorOutOfRange)
		errs.Assert(int64(s) > prev, errSuccessorsUnsorted)
		prev = int64(s)
	}
}
