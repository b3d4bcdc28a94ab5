// Package events is a small typed fan-out pub/sub.
package events

import "sync"

// Buffer is the channel capacity handed to each subscriber.
const Buffer = 64

// Bus fans values out to every subscriber. Publish never blocks: a
// subscriber whose buffer is full misses the value.
type Bus[T any] struct {
	mu   sync.RWMutex
	subs map[chan T]struct{}
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[chan T]struct{})}
}

// Publish sends v to all subscribers (non-blocking).
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives published values.
func (b *Bus[T]) Subscribe() chan T {
	ch := make(chan T, Buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Len reports the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
