// Package broadcast fans values out to subscribers that only care about the latest one.
package broadcast

import "sync"

// defaultBuffer is the per-subscriber queue length.
const defaultBuffer = 16

// Broker fans out published values to subscribers.
// A slow subscriber loses its oldest queued value, never the newest.
type Broker[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Subscription receives values published after it was created.
type Subscription[T any] struct {
	broker *Broker[T]
	ch     chan T
	// closed is guarded by broker.mu.
	closed bool
}

// Subscribe registers a new subscriber. After Close it returns a
// subscription whose channel is already closed.
func (b *Broker[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{broker: b, ch: make(chan T, defaultBuffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.closed = true
		close(sub.ch)

		return sub
	}

	b.subs[sub] = struct{}{}

	return sub
}

// Close ends every subscription and makes later publishes no-ops.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for sub := range b.subs {
		sub.closed = true
		close(sub.ch)
	}

	clear(b.subs)
}

// Publish delivers v to every subscriber without blocking.
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- v:
			continue
		default:
		}

		// Queue is full: drop the oldest value to make room for v.
		select {
		case <-sub.ch:
		default:
		}

		select {
		case sub.ch <- v:
		default:
		}
	}
}

// Len returns the number of active subscribers.
func (b *Broker[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Updates returns the channel values are delivered on. It is closed by
// Close on either the subscription or the broker.
func (s *Subscription[T]) Updates() <-chan T {
	return s.ch
}

// Close unregisters the subscriber and closes its channel.
func (s *Subscription[T]) Close() {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	delete(s.broker.subs, s)
	close(s.ch)
}
