package ringbuffer

import (
	"sync"
	"time"
)

// BytesPerSecond is the number of bytes per second for PCM s16le, 16kHz, mono audio.
const BytesPerSecond = 16000 * 2

// RingBuffer keeps the most recent audio of a stream as PCM s16le, 16kHz, mono.
// It is safe for concurrent use.
type RingBuffer struct {
	mu       sync.Mutex
	buf      []byte
	writePos int
	capacity int
	written  int
}

// New creates a ring buffer holding the given number of seconds of audio.
func New(seconds int) *RingBuffer {
	if seconds <= 0 {
		seconds = 1
	}
	capacity := seconds * BytesPerSecond
	return &RingBuffer{
		buf:      make([]byte, capacity),
		capacity: capacity,
	}
}

func bytesFor(d time.Duration) int {
	n := int(d * BytesPerSecond / time.Second)
	return n &^ 1 // whole samples only
}

// Write appends PCM data, overwriting the oldest audio when full.
func (rb *RingBuffer) Write(data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(data) > rb.capacity {
		rb.written += len(data) - rb.capacity
		data = data[len(data)-rb.capacity:]
	}
	for len(data) > 0 {
		n := copy(rb.buf[rb.writePos:], data)
		data = data[n:]
		rb.writePos = (rb.writePos + n) % rb.capacity
		rb.written += n
	}
}

// Snapshot returns a copy of the most recent d of audio, or less if less is buffered.
func (rb *RingBuffer) Snapshot(d time.Duration) []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	requested := bytesFor(d)
	if available := rb.availableLocked(); requested > available {
		requested = available
	}
	if requested <= 0 {
		return nil
	}

	out := make([]byte, requested)
	start := (rb.writePos - requested + rb.capacity) % rb.capacity
	if start+requested <= rb.capacity {
		copy(out, rb.buf[start:start+requested])
	} else {
		first := rb.capacity - start
		copy(out[:first], rb.buf[start:])
		copy(out[first:], rb.buf[:requested-first])
	}
	return out
}

// Available returns how much audio is currently stored.
func (rb *RingBuffer) Available() time.Duration {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return time.Duration(rb.availableLocked()) * time.Second / BytesPerSecond
}

// Reset drops all buffered audio.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.writePos = 0
	rb.written = 0
}

func (rb *RingBuffer) availableLocked() int {
	if rb.written > rb.capacity {
		return rb.capacity
	}
	return rb.written
}
