package eventbus

import (
	"log/slog"
	"sync"
)

const defaultBuffer = 64

// Bus is a multi-producer single-consumer ordered queue. Enqueueing wakes
// the consumer; events keep their arrival order. Posting after Close
// reports false instead of panicking, because engine workers can race a
// shutdown.
type Bus struct {
	ch   chan Event
	done chan struct{}

	mu     sync.Mutex
	posted uint64
	lost   uint64
	closed bool
}

// Stats contains bus counters.
type Stats struct {
	Posted uint64
	Lost   uint64
}

// New creates a bus with the given buffer size (<=0 picks the default).
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Post enqueues an event, blocking while the buffer is full so ordering
// survives bursts. Returns false once the bus is closed.
func (b *Bus) Post(ev Event) bool {
	select {
	case <-b.done:
		b.count(&b.lost)
		return false
	case b.ch <- ev:
		b.count(&b.posted)
		return true
	}
}

// Events returns the consumer channel, drained by the control loop only.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Close releases blocked producers. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	slog.Debug("eventbus: closed", "posted", b.posted, "lost", b.lost)
}

// Stats returns the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Posted: b.posted, Lost: b.lost}
}

func (b *Bus) count(field *uint64) {
	b.mu.Lock()
	*field++
	b.mu.Unlock()
}
