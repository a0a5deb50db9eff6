package bvgraph

import (
	"github.com/dsnet/golib/errs"

	"github.com/dsnet/bvgraph/internal/bitio"
)

// Iterator walks a Graph's nodes in ascending order, decoding each
// record exactly once from a single forward pass over the bitstream.
// It needs no offsets index: a reference delta only ever points at a
// node decoded earlier in the same pass, so the small ring buffer in
// win is enough to resolve it, unlike Graph.Successors which must be
// able to start from an arbitrary node and so depends on a ".ef" index.
type Iterator struct {
	g   *Graph
	br  *bitio.Reader
	win *window
	v   uint64
}

// Iterator returns a sequential iterator starting at node 0.
func (g *Graph) Iterator() *Iterator {
	return &Iterator{
		g:   g,
		br:  g.newReader(),
		win: newWindow(g.p.WindowSize + 1),
	}
}

// Next decodes the next node's successor list. ok is false once every
// node has been visited; a non-nil err means the stream was corrupt and
// the iterator must not be used further.
func (it *Iterator) Next() (v uint64, succ []uint64, ok bool, err error) {
	if it.v >= it.g.props.Nodes {
		return 0, nil, false, nil
	}
	v = it.v

	lookupRef := func(r uint64) record { return it.win.get(v - r) }

	var rec record
	decodeErr := func() (derr error) {
		defer errs.Recover(&derr)
		rec = decodeRecord(it.br, v, it.g.props.Nodes, it.g.p, it.g.cs, lookupRef)
		return nil
	}()
	if decodeErr != nil {
		return v, nil, false, newErr(classifyPanic(decodeErr), decodeErr)
	}

	it.win.put(v, rec)
	it.v++
	return v, rec.succ, true, nil
}
