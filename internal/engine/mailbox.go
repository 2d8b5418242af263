package engine

import (
	"sync"
)

// Mailbox is a bounded multi-producer queue drained by the tick loop. When
// full, the oldest command is discarded to make room.
type Mailbox struct {
	mu      sync.Mutex
	buf     []Command
	head    int
	size    int
	evicted uint64
}

func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Mailbox{buf: make([]Command, capacity)}
}

// Put enqueues cmd and reports whether an older command was evicted.
func (m *Mailbox) Put(cmd Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := false
	if m.size == len(m.buf) {
		m.buf[m.head] = nil
		m.head = (m.head + 1) % len(m.buf)
		m.size--
		m.evicted++
		evicted = true
	}
	m.buf[(m.head+m.size)%len(m.buf)] = cmd
	m.size++
	return evicted
}

// Drain removes and returns every queued command in arrival order. It
// never blocks on producers.
func (m *Mailbox) Drain() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.size == 0 {
		return nil
	}
	out := make([]Command, m.size)
	for i := range out {
		idx := (m.head + i) % len(m.buf)
		out[i] = m.buf[idx]
		m.buf[idx] = nil
	}
	m.head, m.size = 0, 0
	return out
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

func (m *Mailbox) Cap() int {
	return len(m.buf)
}

// Evicted is the total number of commands dropped for lack of room.
func (m *Mailbox) Evicted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}
