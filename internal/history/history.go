package history

// Buffer is a bounded FIFO of scalar values kept for live display. Append
// always succeeds; once full, each append evicts exactly the oldest
// element, so the length never exceeds the capacity.
//
// A Buffer is single-writer state owned by the pipeline worker. Readers
// get copies through Snapshot, published out-of-band by the worker.
type Buffer struct {
	buf      []float64
	capacity int
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 512
	}
	return &Buffer{capacity: capacity}
}

func (b *Buffer) Append(v float64) {
	if len(b.buf) < b.capacity {
		b.buf = append(b.buf, v)
		return
	}
	copy(b.buf, b.buf[1:])
	b.buf[len(b.buf)-1] = v
}

func (b *Buffer) Len() int {
	return len(b.buf)
}

func (b *Buffer) Cap() int {
	return b.capacity
}

// Snapshot returns the buffered values oldest-first as a fresh slice.
func (b *Buffer) Snapshot() []float64 {
	out := make([]float64, len(b.buf))
	copy(out, b.buf)
	return out
}

func (b *Buffer) Clear() {
	b.buf = b.buf[:0]
}
