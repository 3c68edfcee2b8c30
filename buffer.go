package wirecodec

import "sync"

// defaultChunkSize is the size of each chunk in a Buffer's backing list.
// Chosen, like the teacher's flat-slice growth, to amortize allocation
// without over-committing for small documents.
const defaultChunkSize = 256

// chunk is one fixed-size node in a Buffer's singly-linked chunk list.
type chunk struct {
	data [defaultChunkSize]byte
	n    int
	next *chunk
}

// Buffer is an append-only byte sink (spec.md §4.A). Writes never fail for
// lack of capacity; it grows by appending chunks as needed. Unlike the
// teacher's flat []byte buffer, the internal representation is a singly
// linked list of fixed-size chunks so that a long-lived encode of a huge
// value never needs to repeatedly double-and-copy a single backing array.
type Buffer struct {
	first, last *chunk
	length      int
}

var bufferPool = sync.Pool{
	New: func() any { return &Buffer{} },
}

// NewBufferFromPool obtains a reset Buffer from the pool. Call ReturnToPool
// when finished with it.
func NewBufferFromPool() *Buffer {
	b := bufferPool.Get().(*Buffer)
	b.Reset()
	return b
}

// ReturnToPool releases the buffer back to the pool. Using the buffer after
// this call is undefined behavior.
func (b *Buffer) ReturnToPool() {
	bufferPool.Put(b)
}

// Reset clears the buffer's contents. The chunk list is dropped rather than
// reused across chunk boundaries; the sync.Pool only amortizes the struct
// header and the first chunk.
func (b *Buffer) Reset() {
	if b.first != nil {
		b.first.n = 0
		b.first.next = nil
		b.last = b.first
	}
	b.length = 0
}

func (b *Buffer) growChunk() *chunk {
	c := &chunk{}
	if b.first == nil {
		b.first = c
	} else {
		b.last.next = c
	}
	b.last = c
	return c
}

// PutByte appends a single byte.
func (b *Buffer) PutByte(v byte) {
	if b.last == nil || b.last.n == defaultChunkSize {
		b.growChunk()
	}
	b.last.data[b.last.n] = v
	b.last.n++
	b.length++
}

// PutBytes appends src in its entirety.
func (b *Buffer) PutBytes(src []byte) {
	b.PutBytesRange(src, 0, len(src))
}

// PutBytesRange appends length bytes from src starting at start.
func (b *Buffer) PutBytesRange(src []byte, start, length int) {
	src = src[start : start+length]
	for len(src) > 0 {
		if b.last == nil || b.last.n == defaultChunkSize {
			b.growChunk()
		}
		n := copy(b.last.data[b.last.n:], src)
		b.last.n += n
		b.length += n
		src = src[n:]
	}
}

// Length returns the exact number of bytes written so far.
func (b *Buffer) Length() int {
	return b.length
}

// Snapshot returns a contiguous view over everything written. When the
// buffer still fits in its first chunk this is a zero-copy slice of it;
// otherwise the chunks are flattened into one newly allocated region.
func (b *Buffer) Snapshot() []byte {
	if b.length == 0 {
		return nil
	}
	if b.first.next == nil {
		return b.first.data[:b.first.n]
	}

	out := make([]byte, 0, b.length)
	for c := b.first; c != nil; c = c.next {
		out = append(out, c.data[:c.n]...)
	}
	return out
}

// appendVarintBuf writes value as a base-128 varint directly to the buffer.
func (b *Buffer) appendVarintBuf(value uint64) {
	for value >= 0x80 {
		b.PutByte(byte(value) | 0x80)
		value >>= 7
	}
	b.PutByte(byte(value))
}

func (b *Buffer) appendZigzagBuf(value int64) {
	b.appendVarintBuf(zigzagEncode(value))
}
