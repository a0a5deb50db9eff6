package bvgraph

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dsnet/bvgraph/internal/bitio"
	"github.com/dsnet/bvgraph/internal/ucode"
)

// CurrentVersion is the only on-disk format version this package writes,
// and the highest version it will open.
const CurrentVersion = 1

// Properties holds the parsed contents of a graph's ".properties" side
// file: the parameters needed to interpret its ".graph" and ".ef" files,
// plus whatever informational keys a Builder recorded about how the
// graph was produced.
type Properties struct {
	Nodes             uint64
	Arcs              uint64
	Version           int
	WindowSize        int
	MaxRefCount       int
	MinIntervalLength int
	Endianness        bitio.Order

	// Codes names the code identifier for each field role, keyed by role
	// name: "outdegree", "reference", "block", "interval", "residual",
	// "offset".
	Codes map[string]string

	// Extra carries every other key=value pair found in the properties
	// file verbatim, including informational statistics a Builder wrote
	// (bitsperlink, avgref, ...) and any unrecognized keys, so that
	// re-saving a Properties round-trips keys this package doesn't
	// itself interpret.
	Extra map[string]string
}

var roleNames = []string{"outdegree", "reference", "block", "interval", "residual", "offset"}

// LoadProperties parses a ".properties" file: ISO-8859-1 text, one
// key=value pair per line, "#" introducing a comment to end of line.
// Since every value this format uses is ASCII, no charset translation is
// performed.
func LoadProperties(r io.Reader) (*Properties, error) {
	p := &Properties{
		Codes: make(map[string]string, len(roleNames)),
		Extra: make(map[string]string),
	}
	kv := make(map[string]string)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, '=')
		if i < 0 {
			return nil, newErr(KindBadProperty, Error("malformed line: "+line))
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		kv[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, newErr(KindIO, err)
	}

	var err error
	if p.Nodes, err = popUint(kv, "nodes"); err != nil {
		return nil, err
	}
	if p.Arcs, err = popUint(kv, "arcs"); err != nil {
		return nil, err
	}
	if p.Version, err = popInt(kv, "version"); err != nil {
		return nil, err
	}
	if p.WindowSize, err = popInt(kv, "windowsize"); err != nil {
		return nil, err
	}
	if p.MaxRefCount, err = popInt(kv, "maxrefcount"); err != nil {
		return nil, err
	}
	if p.MinIntervalLength, err = popInt(kv, "minintervallength"); err != nil {
		return nil, err
	}
	endianness, ok := kv["endianness"]
	if !ok {
		return nil, newErr(KindBadProperty, Error("missing key: endianness"))
	}
	delete(kv, "endianness")
	switch endianness {
	case "LITTLE":
		p.Endianness = bitio.LSB
	case "BIG":
		p.Endianness = bitio.MSB
	default:
		return nil, newErr(KindBadProperty, Error("unknown endianness: "+endianness))
	}

	flags, ok := kv["compressionflags"]
	if !ok {
		return nil, newErr(KindBadProperty, Error("missing key: compressionflags"))
	}
	delete(kv, "compressionflags")
	parts := strings.Split(flags, ":")
	if len(parts) != len(roleNames) {
		return nil, newErr(KindBadProperty, Error(fmt.Sprintf("compressionflags has %d fields, want %d", len(parts), len(roleNames))))
	}
	for i, role := range roleNames {
		p.Codes[role] = parts[i]
	}

	for k, v := range kv {
		p.Extra[k] = v
	}
	return p, nil
}

// Save serializes p back to its ".properties" text form. Keys this
// package recognizes are written first in a stable order, followed by
// Extra in sorted key order, so repeated saves of an unchanged
// Properties are byte-identical.
func (p *Properties) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "nodes=%d\n", p.Nodes)
	fmt.Fprintf(bw, "arcs=%d\n", p.Arcs)
	fmt.Fprintf(bw, "version=%d\n", p.Version)
	fmt.Fprintf(bw, "windowsize=%d\n", p.WindowSize)
	fmt.Fprintf(bw, "maxrefcount=%d\n", p.MaxRefCount)
	fmt.Fprintf(bw, "minintervallength=%d\n", p.MinIntervalLength)
	switch p.Endianness {
	case bitio.LSB:
		fmt.Fprintf(bw, "endianness=LITTLE\n")
	case bitio.MSB:
		fmt.Fprintf(bw, "endianness=BIG\n")
	}
	flags := make([]string, len(roleNames))
	for i, role := range roleNames {
		flags[i] = p.Codes[role]
	}
	fmt.Fprintf(bw, "compressionflags=%s\n", strings.Join(flags, ":"))

	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(bw, "%s=%s\n", k, p.Extra[k])
	}
	return bw.Flush()
}

// Validate checks that p describes a graph this package can open: a
// supported version, a usable minimum interval length, and code
// identifiers this package's ucode package can parse.
func (p *Properties) Validate() error {
	if p.Version > CurrentVersion {
		return newErr(KindUnsupportedVersion, Error(fmt.Sprintf("version %d not supported", p.Version)))
	}
	if p.MinIntervalLength < 2 {
		return newErr(KindBadProperty, Error("minintervallength must be >= 2"))
	}
	if p.WindowSize < 0 {
		return newErr(KindBadProperty, Error("windowsize must be >= 0"))
	}
	if p.MaxRefCount < 0 {
		return newErr(KindBadProperty, Error("maxrefcount must be >= 0"))
	}
	for _, role := range roleNames {
		name, ok := p.Codes[role]
		if !ok {
			return newErr(KindBadProperty, Error("missing code for role: "+role))
		}
		if _, err := ucode.Parse(name); err != nil {
			return newErr(KindUnknownCode, err)
		}
	}
	return nil
}

func (p *Properties) codeSet() (codeSet, error) {
	var cs codeSet
	var err error
	if cs.Outdegree, err = ucode.Parse(p.Codes["outdegree"]); err != nil {
		return cs, newErr(KindUnknownCode, err)
	}
	if cs.Reference, err = ucode.Parse(p.Codes["reference"]); err != nil {
		return cs, newErr(KindUnknownCode, err)
	}
	if cs.Block, err = ucode.Parse(p.Codes["block"]); err != nil {
		return cs, newErr(KindUnknownCode, err)
	}
	if cs.Interval, err = ucode.Parse(p.Codes["interval"]); err != nil {
		return cs, newErr(KindUnknownCode, err)
	}
	if cs.Residual, err = ucode.Parse(p.Codes["residual"]); err != nil {
		return cs, newErr(KindUnknownCode, err)
	}
	if cs.Offset, err = ucode.Parse(p.Codes["offset"]); err != nil {
		return cs, newErr(KindUnknownCode, err)
	}
	return cs, nil
}

func popUint(kv map[string]string, key string) (uint64, error) {
	s, ok := kv[key]
	if !ok {
		return 0, newErr(KindBadProperty, Error("missing key: "+key))
	}
	delete(kv, key)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, newErr(KindBadProperty, Error("malformed value for "+key+": "+s))
	}
	return v, nil
}

func popInt(kv map[string]string, key string) (int, error) {
	s, ok := kv[key]
	if !ok {
		return 0, newErr(KindBadProperty, Error("missing key: "+key))
	}
	delete(kv, key)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, newErr(KindBadProperty, Error("malformed value for "+key+": "+s))
	}
	return v, nil
}
