// Package broadcast fans projection views out to any number of readers.
package broadcast

import "sync"

// Broadcaster delivers published values to every subscriber through a
// buffered channel. A subscriber whose buffer is full misses the value.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[chan T]struct{}
	buffer int
}

// New creates a broadcaster with the given per-subscriber buffer.
func New[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 16
	}
	return &Broadcaster[T]{
		subs:   make(map[chan T]struct{}),
		buffer: buffer,
	}
}

// Publish sends v to all subscribers without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// slow reader
		}
	}
}

// Render implements the projection render hook.
func (b *Broadcaster[T]) Render(v T) {
	b.Publish(v)
}

// Subscribe returns a channel that receives values until Unsubscribe.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch. Unknown channels are ignored.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Len returns the number of subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
