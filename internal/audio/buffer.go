package audio

import (
	"sync"
)

// RingBuffer is a thread-safe byte ring buffer. The frame source uses it to
// assemble exact hop-sized frames out of arbitrarily sized producer writes.
type RingBuffer struct {
	buf   []byte
	size  int
	read  int
	write int
	mu    sync.Mutex
}

// NewRingBuffer creates a ring buffer holding up to size-1 bytes.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		buf:  make([]byte, size),
		size: size,
	}
}

// Write appends data, returning the number of bytes stored. A full buffer
// stores fewer bytes than requested; the caller decides whether to drop.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	free := rb.size - 1 - rb.available()
	if len(data) > free {
		data = data[:free]
	}

	// At most two copies: up to the end of the slice, then from the start.
	n := copy(rb.buf[rb.write:], data)
	if n < len(data) {
		n += copy(rb.buf, data[n:])
	}
	rb.write = (rb.write + n) % rb.size
	return n
}

// Read fills p with buffered bytes, returning how many were copied.
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	avail := rb.available()
	if len(p) > avail {
		p = p[:avail]
	}

	n := copy(p, rb.buf[rb.read:])
	if n < len(p) {
		n += copy(p[n:], rb.buf)
	}
	rb.read = (rb.read + n) % rb.size
	return n
}

// Available returns the number of buffered bytes.
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.available()
}

func (rb *RingBuffer) available() int {
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}

// Clear discards all buffered bytes.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.read = 0
	rb.write = 0
}
