// Package notify fans out the latest value of some state to any number of
// subscribers. Slow subscribers skip intermediate values; they never block the
// publisher.
package notify

import "sync"

// Hub holds the latest published value of type T.
type Hub[T any] struct {
	mu     sync.Mutex
	latest T
	subs   map[int]chan T
	nextID int
	closed bool
}

// NewHub returns a hub whose current value is initial.
func NewHub[T any](initial T) *Hub[T] {
	return &Hub[T]{latest: initial, subs: make(map[int]chan T)}
}

// Publish records v as the latest value and offers it to every subscriber,
// replacing any value a subscriber has not consumed yet.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = v
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Latest returns the most recently published value.
func (h *Hub[T]) Latest() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Subscribe returns a channel primed with the latest value. The returned
// function unsubscribes and closes the channel.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	ch <- h.latest

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
