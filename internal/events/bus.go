// Package events provides the typed publish/subscribe bus embedded in each
// tester engine.
//
// Every event name is declared once as a Key carrying its payload type, so a
// listener for "messageReceived" can only ever be registered with a handler
// that accepts the matching payload:
//
//	var MessageReceived = events.NewKey[Message]("messageReceived")
//
//	id := events.On(bus, MessageReceived, func(m Message) { ... })
//	defer events.Off(bus, MessageReceived, id)
//
// Delivery is ordered. Events posted while an engine holds its own lock are
// queued and delivered by Flush once the lock is released; a listener may call
// back into the engine without deadlocking. A panicking listener is recovered
// and logged and does not stop delivery to the remaining listeners.
package events

import (
	"sync"
)

// Key names an event and fixes its payload type.
type Key[T any] struct {
	name string
}

// NewKey declares an event key.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the event name.
func (k Key[T]) Name() string {
	return k.name
}

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// Logger is the logging interface used to report listener panics.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

type listener struct {
	id ListenerID
	fn func(any)
}

type delivery struct {
	name    string
	payload any
}

// Bus maps event names to ordered listener lists.
//
// Thread Safety: all methods are safe for concurrent use.
type Bus struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners map[string][]listener
	logger    Logger

	queue       []delivery
	dispatching bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[string][]listener),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger used for listener panics.
func (b *Bus) SetLogger(logger Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
}

// On registers fn for events of key k and returns its listener ID.
func On[T any](b *Bus, k Key[T], fn func(T)) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[k.name] = append(b.listeners[k.name], listener{
		id: id,
		fn: func(payload any) {
			v, _ := payload.(T) //nolint:errcheck // Post[T] guarantees the payload type
			fn(v)
		},
	})
	return id
}

// Off removes the listeners with the given IDs from key k.
// With no IDs, every listener for k is removed.
func Off[T any](b *Bus, k Key[T], ids ...ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(ids) == 0 {
		delete(b.listeners, k.name)
		return
	}

	remove := make(map[ListenerID]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	kept := b.listeners[k.name][:0]
	for _, l := range b.listeners[k.name] {
		if _, drop := remove[l.id]; !drop {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(b.listeners, k.name)
		return
	}
	b.listeners[k.name] = kept
}

// Post queues an event for delivery on the next Flush.
func Post[T any](b *Bus, k Key[T], v T) {
	b.mu.Lock()
	b.queue = append(b.queue, delivery{name: k.name, payload: v})
	b.mu.Unlock()
}

// Emit queues an event and flushes the queue immediately.
func Emit[T any](b *Bus, k Key[T], v T) {
	Post(b, k, v)
	b.Flush()
}

// Flush delivers queued events in order.
//
// If another goroutine (or an outer frame of this one) is already flushing,
// Flush returns at once and the active flusher delivers the new events.
func (b *Bus) Flush() {
	b.mu.Lock()
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true

	for len(b.queue) > 0 {
		batch := b.queue
		b.queue = nil

		for _, d := range batch {
			targets := make([]listener, len(b.listeners[d.name]))
			copy(targets, b.listeners[d.name])
			logger := b.logger
			b.mu.Unlock()

			for _, l := range targets {
				deliver(logger, d, l)
			}

			b.mu.Lock()
		}
	}

	b.dispatching = false
	b.mu.Unlock()
}

// ListenerCount returns the number of listeners registered for name.
func (b *Bus) ListenerCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[name])
}

// Clear drops every listener and any undelivered events.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[string][]listener)
	b.queue = nil
}

// deliver calls a single listener, recovering from panics.
func deliver(logger Logger, d delivery, l listener) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event listener panic recovered",
				"event", d.name,
				"listener", uint64(l.id),
				"panic", r,
			)
		}
	}()
	l.fn(d.payload)
}
