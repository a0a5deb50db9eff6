package bvgraph

import "github.com/dsnet/bvgraph/internal/ucode"

// codeSet is the resolved v-table of codes for each field role, built
// once from a Properties by codeSet() and threaded through every encode
// and decode call.
type codeSet struct {
	Outdegree ucode.Code
	Reference ucode.Code
	Block     ucode.Code
	Interval  ucode.Code
	Residual  ucode.Code
	Offset    ucode.Code
}

// params collects the handful of per-graph integers the encoder and
// decoder need beyond the code set.
type params struct {
	Nodes             uint64
	WindowSize        int
	MaxRefCount       int
	MinIntervalLength int
}

// record is a single node's decoded successor list together with the
// reference chain depth it was built at (0 if it carries no reference).
// Both the sequential window and the random-access recursion track this
// so a CorruptChain violation can be detected without re-walking the
// whole chain from scratch.
type record struct {
	succ  []uint64
	depth int
}
