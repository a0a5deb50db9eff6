package bvgraph

import (
	"io"
	"strconv"

	"github.com/dsnet/bvgraph/internal/bitio"
	"github.com/dsnet/bvgraph/internal/offsets"
	"github.com/dsnet/bvgraph/internal/ucode"
)

// Config names the parameters a Builder compresses a graph with: the
// reference window and chain-depth bounds, the minimum run length worth
// spending an interval on, the wire endianness, and a code identifier
// per field role. Callers that don't have an opinion on a role can copy
// DefaultCodes.
type Config struct {
	WindowSize        int
	MaxRefCount       int
	MinIntervalLength int
	Endianness        bitio.Order
	Codes             map[string]string
	Policy            RefPolicy
}

// DefaultCodes is a reasonable default v-table: gamma for outdegree,
// interval counts and residual gaps, unary for the short reference
// delta and block-run counts, zeta3 for the typically larger gap values
// that dominate a real graph's residual lists.
var DefaultCodes = map[string]string{
	"outdegree": "gamma",
	"reference": "unary",
	"block":     "gamma",
	"interval":  "gamma",
	"residual":  "zeta3",
	"offset":    "gamma",
}

// Stats accumulates real encode-time measurements a Builder recorded,
// suitable for copying into a Properties' informational keys
// (bitsperlink, avgref) rather than leaving them unset or guessed.
type Stats struct {
	Nodes        uint64
	Arcs         uint64
	BitsForLinks uint64
	RefsUsed     uint64
}

// BitsPerLink reports the average number of bits spent per arc.
func (s Stats) BitsPerLink() float64 {
	if s.Arcs == 0 {
		return 0
	}
	return float64(s.BitsForLinks) / float64(s.Arcs)
}

// AvgRef reports the fraction of nodes whose record carries a
// reference.
func (s Stats) AvgRef() float64 {
	if s.Nodes == 0 {
		return 0
	}
	return float64(s.RefsUsed) / float64(s.Nodes)
}

// Builder encodes a graph's successor lists one node at a time, in
// ascending node id order, the only order the reference window and
// interval/residual delta coding are defined against.
type Builder struct {
	cfg Config
	cs  codeSet
	p   params
	w   *bitio.Writer
	win *window
	v   uint64
	offs []uint64
	stats Stats
}

// NewBuilder constructs a Builder that writes the graph bitstream to
// graphW as nodes are pushed, starting at node id 0.
func NewBuilder(graphW io.Writer, cfg Config) (*Builder, error) {
	return newBuilder(graphW, cfg, 0)
}

// newPartitionBuilder is like NewBuilder but starts numbering pushed
// nodes at startNode, for BuildPartitioned's independent partitions:
// the delta coding in encodeRecord must see each node's true global id
// even though the partition's own window starts empty.
func newPartitionBuilder(graphW io.Writer, cfg Config, startNode uint64) (*Builder, error) {
	return newBuilder(graphW, cfg, startNode)
}

func newBuilder(graphW io.Writer, cfg Config, startNode uint64) (*Builder, error) {
	codes := cfg.Codes
	if codes == nil {
		codes = DefaultCodes
	}
	cs, err := resolveCodes(codes)
	if err != nil {
		return nil, err
	}
	if cfg.MinIntervalLength < 2 {
		return nil, newErr(KindBadProperty, Error("MinIntervalLength must be >= 2"))
	}
	return &Builder{
		cfg:  cfg,
		cs:   cs,
		p:    params{WindowSize: cfg.WindowSize, MaxRefCount: cfg.MaxRefCount, MinIntervalLength: cfg.MinIntervalLength},
		w:    bitio.NewWriter(graphW, cfg.Endianness),
		win:  newWindow(cfg.WindowSize + 1),
		v:    startNode,
		offs: []uint64{0},
	}, nil
}

// Push encodes node b.v's successor list, which must already be sorted
// ascending with no duplicates. Nodes must be pushed in order
// 0, 1, 2, ....
func (b *Builder) Push(succ []uint64) error {
	v := b.v
	r, ref := chooseReference(b.cfg.Policy, v, succ, b.win, b.p, b.cs)

	before := b.w.Position()
	if err := encodeRecord(b.w, v, succ, r, ref.succ, b.p, b.cs); err != nil {
		return newErr(KindIO, err)
	}
	used := b.w.Position() - before

	depth := 0
	if r > 0 {
		depth = ref.depth + 1
	}
	b.win.put(v, record{succ: succ, depth: depth})

	b.stats.Nodes++
	b.stats.Arcs += uint64(len(succ))
	b.stats.BitsForLinks += used
	if r > 0 {
		b.stats.RefsUsed++
	}

	b.v++
	b.offs = append(b.offs, b.w.Position())
	return nil
}

// Finish flushes the graph bitstream and returns the node count, the
// offsets array O (one absolute bit offset per node plus a final
// sentinel equal to the stream's total bit length), and the properties
// this build used, ready to be passed to an EliasFano index builder and
// Properties.Save respectively.
func (b *Builder) Finish() (offs []uint64, props *Properties, err error) {
	if _, err := b.w.Flush(); err != nil {
		return nil, nil, newErr(KindIO, err)
	}
	props = &Properties{
		Nodes:             b.stats.Nodes,
		Arcs:              b.stats.Arcs,
		Version:           CurrentVersion,
		WindowSize:        b.cfg.WindowSize,
		MaxRefCount:       b.cfg.MaxRefCount,
		MinIntervalLength: b.cfg.MinIntervalLength,
		Endianness:        b.cfg.Endianness,
		Codes:             copyCodes(b.cfg.Codes),
		Extra: map[string]string{
			"bitsperlink": formatFloat(b.stats.BitsPerLink()),
			"avgref":      formatFloat(b.stats.AvgRef()),
		},
	}
	return b.offs, props, nil
}

// WriteOffsets gap-codes offs (as produced by Finish) to w using the
// offset role's code, the on-disk form read back by offsets.ReadAll
// during sequential iteration.
func WriteOffsets(w io.Writer, offs []uint64, code ucode.Code, order bitio.Order) error {
	bw := bitio.NewWriter(w, order)
	gw := offsets.NewGapWriter(bw, code)
	for _, o := range offs[1:] {
		if err := gw.WriteNext(o); err != nil {
			return newErr(KindIO, err)
		}
	}
	_, err := bw.Flush()
	return newErr(KindIO, err)
}

func resolveCodes(m map[string]string) (codeSet, error) {
	var cs codeSet
	var err error
	get := func(role string) ucode.Code {
		if err != nil {
			return nil
		}
		var c ucode.Code
		c, err = ucode.Parse(m[role])
		return c
	}
	cs.Outdegree = get("outdegree")
	cs.Reference = get("reference")
	cs.Block = get("block")
	cs.Interval = get("interval")
	cs.Residual = get("residual")
	cs.Offset = get("offset")
	if err != nil {
		return codeSet{}, newErr(KindUnknownCode, err)
	}
	return cs, nil
}

func copyCodes(m map[string]string) map[string]string {
	if m == nil {
		m = DefaultCodes
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
