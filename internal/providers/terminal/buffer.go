package terminal

import "sync"

// Buffer is a thread-safe circular buffer holding the most recent output
// of a session. Once full, new bytes overwrite the oldest ones.
type Buffer struct {
	data []byte
	size int
	head int
	full bool
	mu   sync.RWMutex
}

// NewBuffer creates a new circular buffer
func NewBuffer(size int) *Buffer {
	return &Buffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write writes data to the buffer
func (b *Buffer) Write(p []byte) (n int, err error) {
	n = len(p)
	if b.size == 0 {
		return n, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Only the tail of an oversized write survives
	if len(p) >= b.size {
		copy(b.data, p[len(p)-b.size:])
		b.head = 0
		b.full = true
		return n, nil
	}

	c := copy(b.data[b.head:], p)
	if c < len(p) {
		copy(b.data, p[c:])
		b.full = true
	}
	next := b.head + len(p)
	if next >= b.size {
		next -= b.size
		b.full = true
	}
	b.head = next

	return n, nil
}

// Bytes returns a copy of the buffered data, oldest first
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		result := make([]byte, b.head)
		copy(result, b.data[:b.head])
		return result
	}

	// Buffer wrapped around
	result := make([]byte, b.size)
	n := copy(result, b.data[b.head:])
	copy(result[n:], b.data[:b.head])
	return result
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.full {
		return b.size
	}
	return b.head
}

// Reset discards all buffered data
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.full = false
}
