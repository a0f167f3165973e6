// Package dedup serializes asynchronous work per key and collapses
// duplicates that arrive while a key is busy.
//
// At most one run is active per key. While a key is active, Add keeps only
// the most recent item as the next one to run; earlier queued items are
// discarded. This absorbs the repeated notifications stores deliver for the
// same transaction without building a backlog.
package dedup

import (
	"context"
	"log/slog"
	"sync"
)

// Processor runs process for items of type T, one at a time per key.
type Processor[T any] struct {
	process func(context.Context, T) error
	keyOf   func(T) string
	onError func(T, error)
	logger  *slog.Logger
	ctx     context.Context

	mu    sync.Mutex
	slots map[string]*slot[T]
	wg    sync.WaitGroup
}

type slot[T any] struct {
	next *T
	idle chan struct{}
}

// Option configures a Processor.
type Option[T any] func(*Processor[T])

// WithErrorHandler receives errors returned by process for items submitted
// with Add. Without a handler the error is logged.
func WithErrorHandler[T any](fn func(T, error)) Option[T] {
	return func(p *Processor[T]) { p.onError = fn }
}

// WithLogger sets the logger used for unhandled errors.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(p *Processor[T]) { p.logger = logger }
}

// WithContext sets the context passed to process for items submitted with
// Add. Defaults to context.Background().
func WithContext[T any](ctx context.Context) Option[T] {
	return func(p *Processor[T]) { p.ctx = ctx }
}

// New creates a Processor.
func New[T any](process func(context.Context, T) error, keyOf func(T) string, opts ...Option[T]) *Processor[T] {
	p := &Processor[T]{
		process: process,
		keyOf:   keyOf,
		logger:  slog.Default(),
		ctx:     context.Background(),
		slots:   make(map[string]*slot[T]),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add submits item. If its key is idle the item starts running on a new
// goroutine; otherwise it replaces the queued-next item for the key and runs
// after the active run.
func (p *Processor[T]) Add(item T) {
	key := p.keyOf(item)

	p.mu.Lock()
	if s, busy := p.slots[key]; busy {
		s.next = &item
		p.mu.Unlock()
		return
	}
	p.slots[key] = &slot[T]{idle: make(chan struct{})}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(key, item)
}

func (p *Processor[T]) run(key string, item T) {
	defer p.wg.Done()
	for {
		if err := p.process(p.ctx, item); err != nil {
			p.handle(item, err)
		}

		p.mu.Lock()
		s := p.slots[key]
		if s.next != nil {
			item = *s.next
			s.next = nil
			p.mu.Unlock()
			continue
		}
		p.release(key, s)
		p.mu.Unlock()
		return
	}
}

// release frees the key. Callers hold p.mu.
func (p *Processor[T]) release(key string, s *slot[T]) {
	delete(p.slots, key)
	close(s.idle)
}

func (p *Processor[T]) handle(item T, err error) {
	if p.onError != nil {
		p.onError(item, err)
		return
	}
	p.logger.Error("dedup: process failed", "key", p.keyOf(item), "error", err)
}

// Do waits until the item's key is idle, runs item on the calling goroutine
// and returns its error. Items added for the key while Do runs are queued
// and run afterwards, as with Add.
func (p *Processor[T]) Do(ctx context.Context, item T) error {
	key := p.keyOf(item)

	for {
		p.mu.Lock()
		s, busy := p.slots[key]
		if !busy {
			s = &slot[T]{idle: make(chan struct{})}
			p.slots[key] = s
			p.wg.Add(1)
			p.mu.Unlock()
			break
		}
		idle := s.idle
		p.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := p.process(ctx, item)

	p.mu.Lock()
	s := p.slots[key]
	if s.next != nil {
		next := *s.next
		s.next = nil
		p.mu.Unlock()
		// The key stays claimed; the queued item inherits the slot.
		go p.run(key, next)
		return err
	}
	p.release(key, s)
	p.mu.Unlock()
	p.wg.Done()
	return err
}

// Active reports whether a run is in progress for key.
func (p *Processor[T]) Active(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.slots[key]
	return ok
}

// Wait blocks until every key is idle.
func (p *Processor[T]) Wait() {
	p.wg.Wait()
}
