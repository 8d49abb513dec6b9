package sshserver

import "sync"

// lineBuffer stores the line a terminal user is typing. Appends are shared
// between the reader and the writer that redraws the prompt, hence the lock.
type lineBuffer struct {
	mu    sync.RWMutex
	data  []rune
	limit int
}

// newLineBuffer returns a buffer holding at most limit runes. A non-positive
// limit means unbounded.
func newLineBuffer(limit int) *lineBuffer {
	capacity := limit
	if capacity <= 0 || capacity > 128 {
		capacity = 128
	}
	return &lineBuffer{
		data:  make([]rune, 0, capacity),
		limit: limit,
	}
}

// Append adds r and reports false if the buffer is full.
func (b *lineBuffer) Append(r rune) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit > 0 && len(b.data) >= b.limit {
		return false
	}
	b.data = append(b.data, r)
	return true
}

func (b *lineBuffer) TrimLast() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.data)
	if n == 0 {
		return false
	}
	b.data = b.data[:n-1]
	return true
}

func (b *lineBuffer) Reset() {
	b.mu.Lock()
	b.data = b.data[:0]
	b.mu.Unlock()
}

func (b *lineBuffer) Drain() string {
	b.mu.Lock()
	text := string(b.data)
	b.data = b.data[:0]
	b.mu.Unlock()
	return text
}

func (b *lineBuffer) Snapshot() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.data)
}

func (b *lineBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
