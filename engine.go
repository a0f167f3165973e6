package iap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/dedup"
	"github.com/xraph/iap/event"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/plugin"
	"github.com/xraph/iap/purchase"
	"github.com/xraph/iap/store"
)

// Validator checks a native purchase with the remote receipt validator.
// validator.Client implements it.
type Validator interface {
	Validate(ctx context.Context, data purchase.ValidationData) (*purchase.ValidationResult, error)
}

// Engine reconciles native store events with the receipt validator and
// keeps the verified purchase store current.
type Engine struct {
	store     store.Store
	bridge    native.Bridge
	validator Validator
	catalog   *catalog.Catalog
	plugins   *plugin.Registry
	logger    *slog.Logger
	localizer Localizer
	now       func() time.Time

	bus       *event.Bus
	tracker   *pending.Tracker
	processor *dedup.Processor[*job]
	cache     *nativeCache

	// Configuration
	cacheTTL        time.Duration
	cacheSize       int
	finishUnmatched bool
	stopTimeout     time.Duration

	// ctx is handed to background work and cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	started     bool
	stopped     bool
	username    string
	subs        []native.Subscription
	pluginHook  *event.Handle
	nativeCodes map[string]struct{}
}

// New creates a new Engine. The catalog may be nil, in which case every
// product is treated as a non-consumable without entitlements.
func New(s store.Store, bridge native.Bridge, v Validator, cat *catalog.Catalog, opts ...Option) *Engine {
	if cat == nil {
		cat = catalog.MustNew(nil)
	}

	e := &Engine{
		store:           s,
		bridge:          bridge,
		validator:       v,
		catalog:         cat,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		localizer:       English,
		now:             time.Now,
		cacheTTL:        DefaultNativeCacheTTL,
		cacheSize:       DefaultNativeCacheSize,
		finishUnmatched: true,
		stopTimeout:     DefaultStopTimeout,
		nativeCodes:     make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.bus = event.NewBus(event.WithLogger(e.logger))
	e.cache = newNativeCache(e.cacheTTL, e.cacheSize, e.now)
	e.tracker = pending.NewTracker(e.onPendingUpdated, pending.WithClock(e.now))
	e.processor = dedup.New(e.runJob, jobKey,
		dedup.WithLogger[*job](e.logger),
		dedup.WithContext[*job](e.ctx),
	)

	return e
}

// Start opens the native connection, registers the bridge listeners and
// migrates the store.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.mu.Unlock()

	if err := e.bridge.InitConnection(ctx); err != nil {
		ierr := localize(e.localizer, NewError(CodeSetup, SeverityWarning, "init connection failed", err))
		e.logger.Warn("iap: native connection failed", "error", err)
		return ierr
	}

	if err := e.store.Migrate(ctx); err != nil {
		e.logger.Error("iap: store migration failed", "error", err)
		return NewError(CodeSetup, SeverityError, "migrate store", err)
	}

	e.mu.Lock()
	e.subs = append(e.subs,
		e.bridge.OnPurchaseUpdated(e.onNativePurchase),
		e.bridge.OnPurchaseError(e.onNativeError),
	)
	if e.plugins.HasEventHooks() {
		h := e.bus.Subscribe(event.Any, e.forwardToPlugins)
		e.pluginHook = &h
	}
	e.started = true
	e.mu.Unlock()

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	e.logger.Info("iap engine started",
		"platform", e.bridge.Platform(),
		"products", len(e.catalog.List()),
		"plugins", e.plugins.Count(),
		"cache_ttl", e.cacheTTL,
	)

	return nil
}

// Stop removes the native listeners, waits for in-flight processing,
// drains the event bus and closes the store. Processing still running after
// the stop timeout (see WithStopTimeout) is cancelled.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	e.started = false
	e.stopped = true
	subs := e.subs
	e.subs = nil
	e.pluginHook = nil
	e.mu.Unlock()

	for _, s := range subs {
		s.Remove()
	}

	e.drain()
	e.bus.Close()

	e.plugins.EmitShutdown(context.Background())

	return e.store.Close()
}

// drain waits up to stopTimeout for in-flight processing, then cancels the
// background context so blocked validator calls return.
func (e *Engine) drain() {
	done := make(chan struct{})
	go func() {
		e.processor.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.stopTimeout):
		e.logger.Warn("iap: cancelling in-flight processing", "stop_timeout", e.stopTimeout)
		e.cancel()
		<-done
	}
	e.cancel()
}

func (e *Engine) isStarted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

// Catalog returns the engine's product catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// ──────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────

// AddEventListener subscribes l to events of type t (event.Any for all).
func (e *Engine) AddEventListener(t event.Type, l event.Listener) event.Handle {
	return e.bus.Subscribe(t, l)
}

// RemoveEventListener removes a listener added with AddEventListener.
func (e *Engine) RemoveEventListener(h event.Handle) {
	e.bus.Unsubscribe(h)
}

// RemoveAllEventListeners removes every listener of the given types, or
// every listener when no type is given. The engine's own plugin forwarding
// is restored afterwards.
func (e *Engine) RemoveAllEventListeners(types ...event.Type) {
	e.bus.UnsubscribeAll(types...)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pluginHook == nil {
		return
	}
	removed := len(types) == 0
	for _, t := range types {
		if t == event.Any {
			removed = true
		}
	}
	if removed {
		h := e.bus.Subscribe(event.Any, e.forwardToPlugins)
		e.pluginHook = &h
	}
}

// FlushEvents blocks until every event published so far was delivered.
func (e *Engine) FlushEvents(ctx context.Context) error {
	return e.bus.Flush(ctx)
}

func (e *Engine) forwardToPlugins(ev event.Event) {
	e.plugins.EmitEvent(e.ctx, ev)
}

func (e *Engine) onPendingUpdated(p pending.Purchase) {
	e.bus.Publish(event.Pending(p))
	e.plugins.EmitPendingUpdated(e.ctx, p)
}

// report publishes err as an error event.
func (e *Engine) report(err *Error) {
	if err == nil {
		return
	}
	e.bus.Publish(event.Failure(err))
}

// ──────────────────────────────────────────────────
// Native listeners
// ──────────────────────────────────────────────────

func (e *Engine) onNativePurchase(p native.Purchase) {
	e.logger.Debug("iap: purchase updated",
		"product_id", p.ProductID,
		"transaction_id", p.TransactionID,
	)
	e.processor.Add(&job{purchase: p, mode: background})
}

// onNativeError reports native purchase errors. The same code is reported
// once until a purchase succeeds again.
func (e *Engine) onNativeError(pe native.PurchaseError) {
	e.mu.Lock()
	_, seen := e.nativeCodes[pe.Code]
	e.nativeCodes[pe.Code] = struct{}{}
	e.mu.Unlock()

	if pe.ProductID != "" {
		e.tracker.Remove(pe.ProductID)
	}
	if seen {
		return
	}

	sev := SeverityError
	if pe.UserCancelled() {
		sev = SeverityInfo
	}
	ierr := &Error{
		Code:             CodePurchase,
		Severity:         sev,
		Message:          pe.Message,
		LocalizedMessage: e.localizer.PurchaseErrorMessage(pe.Code),
		Err:              pe,
	}
	if m, ok := e.localizer.(Messages); ok {
		ierr.LocalizedTitle = m.Get("PurchaseError_title", pe.Code)
	}
	ierr = localize(e.localizer, ierr)

	e.logger.Log(context.Background(), logLevel(sev), "iap: native purchase error",
		"code", pe.Code,
		"product_id", pe.ProductID,
		"message", pe.Message,
	)
	e.report(ierr)
}

func (e *Engine) resetNativeCodes() {
	e.mu.Lock()
	clear(e.nativeCodes)
	e.mu.Unlock()
}

func logLevel(s Severity) slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	}
	return slog.LevelError
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// PendingPurchases returns a snapshot of in-flight purchases.
func (e *Engine) PendingPurchases() []pending.Purchase {
	return e.tracker.Get()
}

// VerifiedPurchases returns every purchase confirmed by the validator.
func (e *Engine) VerifiedPurchases(ctx context.Context) ([]*purchase.Verified, error) {
	return e.store.ListPurchases(ctx)
}

// Owned reports whether productID is currently owned.
func (e *Engine) Owned(ctx context.Context, productID string) (bool, error) {
	v, err := e.store.GetPurchase(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			return false, nil
		}
		return false, err
	}
	return v.Owned(e.now()), nil
}

// CanPurchase reports whether productID is neither owned nor pending.
func (e *Engine) CanPurchase(ctx context.Context, productID string) (bool, error) {
	if e.tracker.Has(productID) {
		return false, nil
	}
	owned, err := e.Owned(ctx, productID)
	if err != nil {
		return false, err
	}
	return !owned, nil
}

// SetApplicationUsername sets the user identifier attached to purchase
// requests and validations.
func (e *Engine) SetApplicationUsername(username string) {
	e.mu.Lock()
	e.username = username
	e.mu.Unlock()
}

// ApplicationUsername returns the current application username.
func (e *Engine) ApplicationUsername() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.username
}

// FlushTransactions drops failed purchases the platform still holds as
// pending. Only bridges implementing native.Flusher support it.
func (e *Engine) FlushTransactions(ctx context.Context) error {
	f, ok := e.bridge.(native.Flusher)
	if !ok || e.bridge.Platform() != purchase.PlatformGooglePlay {
		return ErrFlushUnsupported
	}
	if err := f.FlushFailedPurchases(ctx); err != nil {
		return localize(e.localizer, NewError(CodeFinish, SeverityWarning, "flush failed purchases", err))
	}
	return nil
}
