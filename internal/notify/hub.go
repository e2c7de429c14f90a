// Package notify fans state changes out to listeners.
package notify

import "sync"

// Hub holds the latest state of type T and delivers each change to its listeners.
//
// The owner stamps every state with a version taken under its own lock, so a
// listener never observes an older state after a newer one, whether the older
// state arrives through Publish or as the initial delivery of Subscribe.
type Hub[T any] struct {
	mu        sync.Mutex
	version   uint64
	cur       T
	listeners map[uint64]*listener[T]
	nextID    uint64
}

type listener[T any] struct {
	fn   func(T)
	mu   sync.Mutex
	seen uint64
}

// deliver calls fn with v unless this listener already saw version or a later one.
func (l *listener[T]) deliver(v T, version uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if version <= l.seen {
		return
	}
	l.seen = version
	l.fn(v)
}

// Publish records v as version and delivers it to every listener.
// Versions start at 1; a version not newer than the recorded one is still
// delivered to listeners that have not seen it but does not replace the current state.
func (h *Hub[T]) Publish(v T, version uint64) {
	h.mu.Lock()
	if version > h.version {
		h.version, h.cur = version, v
	}
	ls := make([]*listener[T], 0, len(h.listeners))
	for _, l := range h.listeners {
		ls = append(ls, l)
	}
	h.mu.Unlock()

	for _, l := range ls {
		l.deliver(v, version)
	}
}

// Subscribe registers fn. If a state was published, fn receives it before returning.
// fn must not publish to the same hub synchronously.
func (h *Hub[T]) Subscribe(fn func(T)) (cancel func()) {
	l := &listener[T]{fn: fn}

	h.mu.Lock()
	if h.listeners == nil {
		h.listeners = map[uint64]*listener[T]{}
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	cur, ver := h.cur, h.version
	h.mu.Unlock()

	if ver > 0 {
		l.deliver(cur, ver)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Clear drops every listener.
func (h *Hub[T]) Clear() {
	h.mu.Lock()
	h.listeners = nil
	h.mu.Unlock()
}

// Len returns the number of registered listeners.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
