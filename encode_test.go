package bvgraph

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/dsnet/bvgraph/internal/bitio"
	"github.com/dsnet/bvgraph/internal/ucode"
)

func TestCopyBlocksRoundTrip(t *testing.T) {
	ref := []uint64{2, 5, 9, 13, 20, 21, 22, 40}
	tests := [][]bool{
		{true, true, true, true, true, true, true, true},   // all copied
		{false, false, false, false, false, false, false, false}, // none copied
		{false, true, true, false, true, true, true, false},
		{true, false, true, false, true, false, true, false},
	}
	for _, mask := range tests {
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf, bitio.LSB)
		if err := encodeCopyBlocks(w, mask, ucode.Gamma{}); err != nil {
			t.Fatalf("encodeCopyBlocks(%v): %v", mask, err)
		}
		if _, err := w.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}

		r := bitio.NewReader(memBuf(buf.Bytes()), int64(buf.Len()), bitio.LSB)
		got := decodeCopyBlocks(r, ref, ucode.Gamma{})

		var want []uint64
		for i, m := range mask {
			if m {
				want = append(want, ref[i])
			}
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("mask %v: decodeCopyBlocks = %v, want %v", mask, got, want)
		}
	}
}

func TestExtractIntervals(t *testing.T) {
	vals := []uint64{1, 2, 3, 4, 5, 10, 20, 21, 22, 23, 30}
	ivs, resid := extractIntervals(vals, 4)
	wantIvs := []interval{{left: 1, length: 5}, {left: 20, length: 4}}
	if !reflect.DeepEqual(ivs, wantIvs) {
		t.Fatalf("intervals = %+v, want %+v", ivs, wantIvs)
	}
	wantResid := []uint64{10, 30}
	if !reflect.DeepEqual(resid, wantResid) {
		t.Fatalf("residuals = %v, want %v", resid, wantResid)
	}
}

func TestIntervalResidualRoundTrip(t *testing.T) {
	v := uint64(100)
	vals := []uint64{50, 51, 52, 53, 54, 60, 90, 91, 92, 93, 200}
	ivs, resid := extractIntervals(vals, 4)

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf, bitio.LSB)
	if len(vals) > 0 {
		if err := encodeIntervals(w, v, ivs, 4, ucode.Gamma{}); err != nil {
			t.Fatalf("encodeIntervals: %v", err)
		}
	}
	if err := encodeResiduals(w, v, resid, ucode.Zeta{K: 3}); err != nil {
		t.Fatalf("encodeResiduals: %v", err)
	}
	if _, err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := bitio.NewReader(memBuf(buf.Bytes()), int64(buf.Len()), bitio.LSB)
	var extra uint64
	for _, iv := range ivs {
		extra += iv.length
	}
	extra += uint64(len(resid))
	gotIvs := decodeIntervals(r, v, extra, 4, ucode.Gamma{})
	var decodedIntervalCount uint64
	for _, iv := range gotIvs {
		decodedIntervalCount += iv.length
	}
	gotResid := decodeResiduals(r, v, extra-decodedIntervalCount, ucode.Zeta{K: 3})

	merged := mergeSuccessors(nil, gotIvs, gotResid)
	if !reflect.DeepEqual(merged, vals) {
		t.Fatalf("round trip = %v, want %v", merged, vals)
	}
}

type memBuf []byte

func (m memBuf) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m)) {
		return 0, errEOFTest{}
	}
	return copy(p, m[off:]), nil
}

type errEOFTest struct{}

func (errEOFTest) Error() string { return "EOF" }

func TestChooseReferencePicksExactCopy(t *testing.T) {
	cfg := testConfig()
	win := newWindow(cfg.WindowSize + 1)
	win.put(0, record{succ: []uint64{1, 2, 3, 4, 5}})

	cs, err := resolveCodes(DefaultCodes)
	if err != nil {
		t.Fatalf("resolveCodes: %v", err)
	}
	p := params{WindowSize: cfg.WindowSize, MaxRefCount: cfg.MaxRefCount, MinIntervalLength: cfg.MinIntervalLength}

	r, ref := chooseReference(PolicyExhaustive, 1, []uint64{1, 2, 3, 4, 5, 6}, win, p, cs)
	if r != 1 {
		t.Fatalf("chooseReference() r = %d, want 1", r)
	}
	if !reflect.DeepEqual(ref.succ, []uint64{1, 2, 3, 4, 5}) {
		t.Fatalf("chooseReference() ref = %v", ref.succ)
	}

	r2, _ := chooseReference(PolicyFast, 1, []uint64{1, 2, 3, 4, 5, 6}, win, p, cs)
	if r2 != 1 {
		t.Fatalf("chooseReference(fast) r = %d, want 1", r2)
	}
}

func TestChooseReferenceNoCandidates(t *testing.T) {
	cfg := testConfig()
	win := newWindow(cfg.WindowSize + 1)
	cs, _ := resolveCodes(DefaultCodes)
	p := params{WindowSize: cfg.WindowSize, MaxRefCount: cfg.MaxRefCount, MinIntervalLength: cfg.MinIntervalLength}

	r, _ := chooseReference(PolicyExhaustive, 0, []uint64{1, 2, 3}, win, p, cs)
	if r != 0 {
		t.Fatalf("chooseReference() at v=0: r = %d, want 0", r)
	}
}
