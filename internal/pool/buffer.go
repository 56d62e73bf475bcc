// Package pool provides part-buffer reuse for streaming uploads.
//
// Every in-flight part of a streaming upload holds a buffer of the upload's
// part size. Pooling those buffers keeps a long-lived session from allocating
// a fresh multi-megabyte slice per part.
package pool

import (
	"sync"
)

// BufferPool manages reusable part buffers of a single fixed capacity.
// Buffers are handed out with zero length and full capacity.
type BufferPool struct {
	size int
	pool *sync.Pool
}

// NewBufferPool creates a pool of buffers with the given capacity.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 0, size)
				return &buf
			},
		},
	}
}

// Size returns the capacity of buffers managed by this pool.
func (bp *BufferPool) Size() int {
	return bp.size
}

// Get returns a zero-length buffer from the pool.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	// Reset length to 0 but keep capacity
	return (*bufPtr)[:0]
}

// Put returns a buffer to the pool. Buffers of a different capacity, such as
// those grown by an append, are dropped rather than pooled.
// The buffer should not be used after calling Put.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:0]
	bp.pool.Put(&buf)
}
