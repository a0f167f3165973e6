package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Listener receives events.
type Listener func(Event)

// Handle identifies a subscription for Unsubscribe.
type Handle struct {
	typ Type
	id  uint64
}

// Type returns the event type the handle was subscribed to.
func (h Handle) Type() Type { return h.typ }

type entry struct {
	typ Type
	id  uint64
	fn  Listener
}

// queued is either an event or a flush barrier.
type queued struct {
	event   Event
	barrier chan struct{}
}

// Bus dispatches events to listeners on a dedicated goroutine. It is safe
// for concurrent use.
type Bus struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners []entry
	nextID    uint64
	queue     []queued
	closed    bool

	wake chan struct{}
	done chan struct{}
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used to report panicking listeners.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// NewBus creates a bus and starts its dispatcher.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.dispatch()
	return b
}

// Subscribe registers l for events of type t, or for every event when t is
// Any.
func (b *Bus) Subscribe(t Type, l Listener) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners = append(b.listeners, entry{typ: t, id: b.nextID, fn: l})
	return Handle{typ: t, id: b.nextID}
}

// Unsubscribe removes the listener registered under h. Events already queued
// are not delivered to it.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.listeners {
		if e.id == h.id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// UnsubscribeAll removes every listener of the given types, or every
// listener when no type is given.
func (b *Bus) UnsubscribeAll(types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		b.listeners = nil
		return
	}
	drop := make(map[Type]bool, len(types))
	for _, t := range types {
		drop[t] = true
	}
	kept := b.listeners[:0:0]
	for _, e := range b.listeners {
		if !drop[e.typ] {
			kept = append(kept, e)
		}
	}
	b.listeners = kept
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Publish queues e for delivery and returns immediately. Events published
// after Close are dropped.
func (b *Bus) Publish(e Event) {
	b.enqueue(queued{event: e})
}

// Flush blocks until every event published before the call has been
// delivered, or ctx is done.
func (b *Bus) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !b.enqueue(queued{barrier: barrier}) {
		return nil
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close delivers the events still queued, stops the dispatcher and drops
// every listener. It is safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	already := b.closed
	b.closed = true
	b.mu.Unlock()

	if !already {
		b.signal()
	}
	<-b.done

	b.mu.Lock()
	b.listeners = nil
	b.mu.Unlock()
}

func (b *Bus) enqueue(q queued) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, q)
	b.mu.Unlock()
	b.signal()
	return true
}

func (b *Bus) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			closed := b.closed
			b.mu.Unlock()
			if closed {
				return
			}
			<-b.wake
			continue
		}
		q := b.queue[0]
		b.queue[0] = queued{}
		b.queue = b.queue[1:]
		if q.barrier != nil {
			b.mu.Unlock()
			close(q.barrier)
			continue
		}
		targets := make([]entry, 0, len(b.listeners))
		for _, e := range b.listeners {
			if e.typ == q.event.Type || e.typ == Any {
				targets = append(targets, e)
			}
		}
		b.mu.Unlock()

		for _, e := range targets {
			b.deliver(e, q.event)
		}
	}
}

func (b *Bus) deliver(e entry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				"event_type", string(ev.Type),
				"event_id", ev.ID.String(),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	e.fn(ev)
}
