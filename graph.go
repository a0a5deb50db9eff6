// Package bvgraph implements a compressed representation of a directed
// graph's adjacency lists: successor lists are delta- and reference-
// compressed against a bounded window of nearby lists, then packed with
// universal integer codes, giving both cheap sequential iteration over
// the whole graph and O(1) random access to any single node's
// successors via a succinct offsets index.
package bvgraph

import (
	"io"
	"os"

	"github.com/dsnet/golib/errs"
	"golang.org/x/exp/mmap"

	"github.com/dsnet/bvgraph/internal/bitio"
	"github.com/dsnet/bvgraph/internal/offsets"
)

// Graph is an opened, read-only compressed graph: a ".graph" bitstream
// plus the ".properties" parameters needed to interpret it, and
// optionally a ".ef" succinct offsets index enabling random access.
type Graph struct {
	props *Properties
	cs    codeSet
	p     params

	data  io.ReaderAt
	size  int64
	close func() error

	ef *offsets.EliasFano
}

// Open mmaps basename+".graph" and, if present, basename+".ef", and
// loads basename+".properties". want is the endianness the caller's
// bit reader is built for; it must match the producer's declared
// endianness, or Open fails with KindEndiannessMismatch. The returned
// Graph must be Closed once the caller is done with it.
func Open(basename string, want bitio.Order) (g *Graph, err error) {
	propFile, err := os.Open(basename + ".properties")
	if err != nil {
		return nil, newErr(KindIO, err)
	}
	props, err := LoadProperties(propFile)
	propFile.Close()
	if err != nil {
		return nil, err
	}
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if props.Endianness != want {
		return nil, newErr(KindEndiannessMismatch, Error("properties declare an endianness the caller did not open for"))
	}
	cs, err := props.codeSet()
	if err != nil {
		return nil, err
	}

	graphRA, err := mmap.Open(basename + ".graph")
	if err != nil {
		return nil, newErr(KindIO, err)
	}
	defer func() {
		if err != nil {
			graphRA.Close()
		}
	}()

	g = &Graph{
		props: props,
		cs:    cs,
		p: params{
			Nodes:             props.Nodes,
			WindowSize:        props.WindowSize,
			MaxRefCount:       props.MaxRefCount,
			MinIntervalLength: props.MinIntervalLength,
		},
		data:  graphRA,
		size:  int64(graphRA.Len()),
		close: graphRA.Close,
	}

	efRA, statErr := mmap.Open(basename + ".ef")
	if statErr == nil {
		buf := make([]byte, efRA.Len())
		if _, rerr := efRA.ReadAt(buf, 0); rerr != nil && rerr != io.EOF {
			efRA.Close()
			return nil, newErr(KindIO, rerr)
		}
		efRA.Close()
		ef, uerr := offsets.Unmarshal(buf)
		if uerr != nil {
			return nil, newErr(KindBadProperty, uerr)
		}
		g.ef = ef
	}

	return g, nil
}

// Close releases the graph's memory mapping(s).
func (g *Graph) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

// Nodes reports the number of nodes N; valid node ids are [0, N).
func (g *Graph) Nodes() uint64 { return g.props.Nodes }

// Arcs reports the total number of directed edges.
func (g *Graph) Arcs() uint64 { return g.props.Arcs }

// Properties returns the parsed properties file this graph was opened
// with. Callers must not mutate the returned value.
func (g *Graph) Properties() *Properties { return g.props }

// HasRandomAccess reports whether this Graph was opened with a ".ef"
// index, a prerequisite for Outdegree and Successors.
func (g *Graph) HasRandomAccess() bool { return g.ef != nil }

func (g *Graph) newReader() *bitio.Reader {
	return bitio.NewReader(g.data, g.size, g.props.Endianness)
}

// Outdegree returns node v's out-degree without decoding its successor
// list, the fast path for callers that only need degree statistics.
func (g *Graph) Outdegree(v uint64) (d uint64, err error) {
	if v >= g.props.Nodes {
		return 0, newErr(KindNodeOutOfRange, Error("node id out of range"))
	}
	if g.ef == nil {
		return 0, newErr(KindIO, Error("random access requires a .ef index"))
	}
	defer func() {
		if err != nil {
			err = newErr(classifyPanic(err), err)
		}
	}()
	defer errs.Recover(&err)
	br := g.newReader()
	br.Seek(g.ef.Lookup(v))
	return g.cs.Outdegree.Read(br), nil
}

// Successors returns node v's successor list by seeking directly to
// O[v] and decoding, recursively resolving any reference chain. It
// requires the graph to have been opened with a ".ef" index.
func (g *Graph) Successors(v uint64) ([]uint64, error) {
	if v >= g.props.Nodes {
		return nil, newErr(KindNodeOutOfRange, Error("node id out of range"))
	}
	if g.ef == nil {
		return nil, newErr(KindIO, Error("random access requires a .ef index"))
	}
	rec, err := g.decodeAt(v)
	if err != nil {
		return nil, newErr(classifyPanic(err), err)
	}
	return rec.succ, nil
}

// decodeAt decodes the record at node v by seeking to O[v], resolving
// any reference by recursing on v-r. Recursion depth is bounded by
// MaxRefCount, which decodeRecord itself enforces. It returns the raw,
// unwrapped panic value (a bitio.ErrTruncated or one of this package's
// sentinel invariant errors) so that a re-panic from an outer recursive
// call still classifies correctly; only the outermost public call site
// (Successors) wraps the result into a CodecError.
func (g *Graph) decodeAt(v uint64) (rec record, err error) {
	defer errs.Recover(&err)
	br := g.newReader()
	br.Seek(g.ef.Lookup(v))
	lookupRef := func(r uint64) record {
		ref, rerr := g.decodeAt(v - r)
		if rerr != nil {
			panic(rerr)
		}
		return ref
	}
	rec = decodeRecord(br, v, g.props.Nodes, g.p, g.cs, lookupRef)
	return rec, nil
}
