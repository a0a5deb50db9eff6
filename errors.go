package bvgraph

import "fmt"

// Kind enumerates the failure kinds surfaced at the core's boundary
// (spec section 7).
type Kind int

const (
	// KindIO wraps an underlying file I/O failure.
	KindIO Kind = iota
	// KindTruncated means a read ran past the end of the bitstream.
	KindTruncated
	// KindBadProperty means the properties file is missing a required
	// key or has a malformed value.
	KindBadProperty
	// KindUnsupportedVersion means the properties "version" key names a
	// format version this package does not implement.
	KindUnsupportedVersion
	// KindEndiannessMismatch means the producer's endianness does not
	// match the reader's expectation.
	KindEndiannessMismatch
	// KindUnknownCode means compressionflags names a code this package
	// does not implement.
	KindUnknownCode
	// KindCorruptOrder means decoded successors were non-increasing or
	// fell outside [0,N).
	KindCorruptOrder
	// KindCorruptChain means a reference delta exceeded its node id or
	// the reference chain exceeded max_ref_count.
	KindCorruptChain
	// KindNodeOutOfRange means a random-access call named a node id >= N.
	KindNodeOutOfRange
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindTruncated:
		return "truncated"
	case KindBadProperty:
		return "bad-property"
	case KindUnsupportedVersion:
		return "unsupported-version"
	case KindEndiannessMismatch:
		return "endianness-mismatch"
	case KindUnknownCode:
		return "unknown-code"
	case KindCorruptOrder:
		return "corrupt-order"
	case KindCorruptChain:
		return "corrupt-chain"
	case KindNodeOutOfRange:
		return "node-out-of-range"
	default:
		return "unknown"
	}
}

// CodecError is the error type returned at every exported boundary of
// this package. It names which of the spec's failure kinds occurred and
// wraps the underlying cause.
type CodecError struct {
	Kind Kind
	Err  error
}

func (e *CodecError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bvgraph: %s", e.Kind)
	}
	return fmt.Sprintf("bvgraph: %s: %v", e.Kind, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

func newErr(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &CodecError{Kind: kind, Err: err}
}

// Error is the plain string-error type used for invariant messages that
// get attached to a Kind via newErr; it mirrors the teacher's own
// "Error string" idiom (see flate.Error, bzip2.Error) for errors that
// carry no further wrapped cause.
type Error string

func (e Error) Error() string { return string(e) }

// The decoder enforces its invariants by panicking with one of these
// sentinel values (via errs.Assert) and recovering at the nearest
// exported boundary (via errs.Recover), the same pattern the teacher
// uses in xflate/meta for its own structural checks. classifyPanic maps
// the recovered value back to the Kind callers see.
var (
	errRefTooFar          error = Error("reference delta exceeds node id")
	errChainTooDeep       error = Error("reference chain exceeds max_ref_count")
	errCopyOverrun        error = Error("copy block runs past end of reference list")
	errCopyCountMismatch  error = Error("copied more successors than outdegree")
	errIntervalOverrun    error = Error("interval successors exceed remaining outdegree")
	errOutdegreeMismatch  error = Error("decoded successor count does not match outdegree")
	errSuccessorOutOfRange error = Error("successor out of range")
	errSuccessorsUnsorted error = Error("successors not strictly increasing")
	errWindowMiss         error = Error("reference points outside the sliding window")
)

func classifyPanic(err error) Kind {
	switch err {
	case errRefTooFar, errChainTooDeep, errWindowMiss:
		return KindCorruptChain
	case errCopyOverrun, errCopyCountMismatch, errIntervalOverrun, errOutdegreeMismatch,
		errSuccessorOutOfRange, errSuccessorsUnsorted:
		return KindCorruptOrder
	default:
		return KindTruncated
	}
}
