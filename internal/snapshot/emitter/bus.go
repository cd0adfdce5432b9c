package emitter

import (
	"context"
	"sync"
)

// Bus is an in-process emitter. Subscribers receive events on buffered
// channels; an event is dropped for a subscriber whose buffer is full
// rather than blocking the pipeline.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan *Event
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan *Event)}
}

// Subscribe registers a subscriber with the given channel buffer size and
// returns the receive channel plus an unsubscribe function.
func (b *Bus) Subscribe(buffer int) (<-chan *Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan *Event, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Emit delivers the event to every subscriber that has buffer space.
func (b *Bus) Emit(ctx context.Context, event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up; drop.
		}
	}
}

// Close closes all subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
