package bvgraph

// window is the bounded ring buffer of the last few materialized
// successor records, shared by the sequential iterator (which reads
// records as it decodes them) and the encoder (which reads records as it
// builds them). A reference delta r names the record v-r, which is only
// ever addressable while it is still within the last WindowSize slots,
// so a fixed-size ring buffer is all either side needs: no record is
// kept around past the point nothing can reference it anymore.
type window struct {
	size    int
	entries []record
	ids     []int64 // node id stored in each slot, or -1 if unset
}

func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}
	w := &window{size: size, entries: make([]record, size), ids: make([]int64, size)}
	for i := range w.ids {
		w.ids[i] = -1
	}
	return w
}

// put records v's decoded/encoded successor list in the ring buffer.
func (w *window) put(v uint64, r record) {
	slot := int(v) % w.size
	w.entries[slot] = r
	w.ids[slot] = int64(v)
}

// get returns the record most recently stored for node id, which must
// be a node within the last w.size puts; it panics otherwise, since that
// signals the caller asked for a reference delta larger than the window
// allows.
func (w *window) get(id uint64) record {
	slot := int(id) % w.size
	if w.ids[slot] != int64(id) {
		panic(errWindowMiss)
	}
	return w.entries[slot]
}
