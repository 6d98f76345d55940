package logsink

import (
	"fmt"
	"sync"
)

const (
	// DefaultCapacity is the maximum number of bytes retained by the log buffer
	DefaultCapacity = 5000

	// DefaultTerminator is appended after every message
	DefaultTerminator = "\n"
)

// WithTerminator sets the line terminator appended after every message.
func WithTerminator(terminator string) func(*Buffer) {
	return func(b *Buffer) {
		b.terminator = terminator
	}
}

// Buffer is a fixed-capacity ring of text. Producers append messages, readers get
// the retained content verbatim. When an append overflows the capacity, the oldest
// bytes are dropped, even if that cuts an entry in half.
//
// Buffer is safe for concurrent use, although the control loop is its only writer.
type Buffer struct {
	terminator string

	mu    sync.Mutex
	data  []byte
	start int // index of the oldest byte
	size  int // number of retained bytes
}

// NewBuffer creates a new log buffer holding at most capacity bytes.
func NewBuffer(capacity int, options ...func(*Buffer)) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid log buffer capacity: %d", capacity)
	}

	b := Buffer{
		terminator: DefaultTerminator,
		data:       make([]byte, capacity),
	}

	for _, option := range options {
		option(&b)
	}

	return &b, nil
}

// Append adds message followed by the line terminator.
func (b *Buffer) Append(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.write([]byte(message))
	b.write([]byte(b.terminator))
}

// Write implements io.Writer. p is stored as is, with the same eviction rule as Append.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.write(p)
	return len(p), nil
}

// String returns the retained content, oldest byte first.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, b.size)
	n := copy(out, b.data[b.start:min(b.start+b.size, len(b.data))])
	copy(out[n:], b.data[:b.size-n])

	return string(out)
}

// Len returns the number of retained bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the buffer capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// write expects the lock to be held.
func (b *Buffer) write(p []byte) {
	capacity := len(b.data)

	// only the tail of an oversized write can survive
	if len(p) >= capacity {
		copy(b.data, p[len(p)-capacity:])
		b.start = 0
		b.size = capacity
		return
	}

	// evict just enough of the oldest content to make room
	if overflow := b.size + len(p) - capacity; overflow > 0 {
		b.start = (b.start + overflow) % capacity
		b.size -= overflow
	}

	end := (b.start + b.size) % capacity
	n := copy(b.data[end:], p)
	copy(b.data, p[n:])
	b.size += len(p)
}
