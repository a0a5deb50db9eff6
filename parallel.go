package bvgraph

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"
)

// BuildPartitioned encodes a graph's successor lists across up to parts
// goroutines, splitting the node range into contiguous partitions and
// encoding each with its own fresh reference window (spec section 5).
// A partition never references a successor list outside itself, so
// nodes near a partition boundary miss compression opportunities a
// single-pass build would have found; in exchange, encoding scales with
// available CPUs instead of running as one long serial pass.
//
// successors[i] is node i's sorted successor list. The returned offs is
// the full global offsets array O[0..N], and graphBytes is the single
// concatenated bitstream a Graph.Open's ".graph" file expects; every
// partition flushes to a byte boundary, so straight concatenation keeps
// every partition's record byte-aligned at the point its offsets were
// computed against.
func BuildPartitioned(successors [][]uint64, cfg Config, parts int) (graphBytes []byte, offs []uint64, stats Stats, err error) {
	n := len(successors)
	if parts < 1 {
		parts = 1
	}
	if n > 0 && parts > n {
		parts = n
	}
	if n == 0 {
		parts = 1
	}
	bounds := partitionBounds(n, parts)

	type partResult struct {
		data  []byte
		offs  []uint64
		stats Stats
	}
	results := make([]partResult, len(bounds)-1)

	g, _ := errgroup.WithContext(context.Background())
	for p := 0; p < len(bounds)-1; p++ {
		p := p
		g.Go(func() error {
			lo, hi := bounds[p], bounds[p+1]
			var buf bytes.Buffer
			b, err := newPartitionBuilder(&buf, cfg, uint64(lo))
			if err != nil {
				return err
			}
			for _, succ := range successors[lo:hi] {
				if err := b.Push(succ); err != nil {
					return err
				}
			}
			localOffs, _, err := b.Finish()
			if err != nil {
				return err
			}
			results[p] = partResult{data: buf.Bytes(), offs: localOffs, stats: b.stats}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, Stats{}, err
	}

	var out bytes.Buffer
	offs = make([]uint64, 1, n+1)
	var total Stats
	for _, r := range results {
		baseBits := uint64(out.Len()) * 8
		out.Write(r.data)
		for _, o := range r.offs[1:] {
			offs = append(offs, baseBits+o)
		}
		total.Nodes += r.stats.Nodes
		total.Arcs += r.stats.Arcs
		total.BitsForLinks += r.stats.BitsForLinks
		total.RefsUsed += r.stats.RefsUsed
	}
	return out.Bytes(), offs, total, nil
}

// partitionBounds splits [0,n) into parts contiguous ranges of as-equal
// size as possible, returning the parts+1 boundary indices.
func partitionBounds(n, parts int) []int {
	bounds := make([]int, parts+1)
	base, rem := n/parts, n%parts
	cur := 0
	for i := 0; i < parts; i++ {
		bounds[i] = cur
		sz := base
		if i < rem {
			sz++
		}
		cur += sz
	}
	bounds[parts] = n
	return bounds
}
