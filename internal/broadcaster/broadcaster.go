// Package broadcaster fans out the latest value to subscribers.
package broadcaster

import "sync"

// Broadcaster manages message broadcasting to subscribers.
//
// It is safe for concurrent use.
type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers []chan T // Intentionally not send only, so we can drain them.
	closed      bool
}

// New creates a new [Broadcaster].
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{}
}

// Subscribe returns a subscriber channel for a new subscriber.
// If the broadcaster is already closed, the returned channel is closed.
func (b *Broadcaster[T]) Subscribe() <-chan T {
	ch := make(chan T, 1) // One slot for the latest message.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Broadcast sends a message to all subscribers.
// It always drains the subscriber channel before sending, so the operation never blocks,
// and the subscriber can always receive the latest message.
func (b *Broadcaster[T]) Broadcast(msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- msg
	}
}

// Close closes every subscriber channel. Broadcasts after Close are dropped.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
