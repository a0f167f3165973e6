package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/iap/event"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/purchase"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onPurchaseVerified []OnPurchaseVerified
	onPurchaseFinished []OnPurchaseFinished
	onPendingUpdated   []OnPendingUpdated
	onValidationFailed []OnValidationFailed
	onRestoreCompleted []OnRestoreCompleted
	onEvent            []OnEvent
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPurchaseVerified); ok {
		r.onPurchaseVerified = append(r.onPurchaseVerified, v)
	}
	if v, ok := p.(OnPurchaseFinished); ok {
		r.onPurchaseFinished = append(r.onPurchaseFinished, v)
	}
	if v, ok := p.(OnPendingUpdated); ok {
		r.onPendingUpdated = append(r.onPendingUpdated, v)
	}
	if v, ok := p.(OnValidationFailed); ok {
		r.onValidationFailed = append(r.onValidationFailed, v)
	}
	if v, ok := p.(OnRestoreCompleted); ok {
		r.onRestoreCompleted = append(r.onRestoreCompleted, v)
	}
	if v, ok := p.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnPurchaseVerified)(nil)).Elem(), "OnPurchaseVerified")
	checkInterface(reflect.TypeOf((*OnPurchaseFinished)(nil)).Elem(), "OnPurchaseFinished")
	checkInterface(reflect.TypeOf((*OnPendingUpdated)(nil)).Elem(), "OnPendingUpdated")
	checkInterface(reflect.TypeOf((*OnValidationFailed)(nil)).Elem(), "OnValidationFailed")
	checkInterface(reflect.TypeOf((*OnRestoreCompleted)(nil)).Elem(), "OnRestoreCompleted")
	checkInterface(reflect.TypeOf((*OnEvent)(nil)).Elem(), "OnEvent")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// HasEventHooks reports whether any plugin wants bus events.
func (r *Registry) HasEventHooks() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.onEvent) > 0
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.warn("OnInit", p.Name(), err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.warn("OnShutdown", p.Name(), err)
		}
	}
}

// EmitPurchaseVerified emits a purchase verified event.
func (r *Registry) EmitPurchaseVerified(ctx context.Context, v *purchase.Verified) {
	r.mu.RLock()
	plugins := r.onPurchaseVerified
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchaseVerified(ctx, v)
		}); err != nil {
			r.warn("OnPurchaseVerified", p.Name(), err)
		}
	}
}

// EmitPurchaseFinished emits a purchase finished event.
func (r *Registry) EmitPurchaseFinished(ctx context.Context, np native.Purchase, isConsumable bool) {
	r.mu.RLock()
	plugins := r.onPurchaseFinished
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchaseFinished(ctx, np, isConsumable)
		}); err != nil {
			r.warn("OnPurchaseFinished", p.Name(), err)
		}
	}
}

// EmitPendingUpdated emits a pending purchase transition.
func (r *Registry) EmitPendingUpdated(ctx context.Context, pp pending.Purchase) {
	r.mu.RLock()
	plugins := r.onPendingUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPendingUpdated(ctx, pp)
		}); err != nil {
			r.warn("OnPendingUpdated", p.Name(), err)
		}
	}
}

// EmitValidationFailed emits a validation failure.
func (r *Registry) EmitValidationFailed(ctx context.Context, np native.Purchase, cause error) {
	r.mu.RLock()
	plugins := r.onValidationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnValidationFailed(ctx, np, cause)
		}); err != nil {
			r.warn("OnValidationFailed", p.Name(), err)
		}
	}
}

// EmitRestoreCompleted emits the outcome of a restore.
func (r *Registry) EmitRestoreCompleted(ctx context.Context, processed, total int, elapsed time.Duration, cause error) {
	r.mu.RLock()
	plugins := r.onRestoreCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRestoreCompleted(ctx, processed, total, elapsed, cause)
		}); err != nil {
			r.warn("OnRestoreCompleted", p.Name(), err)
		}
	}
}

// EmitEvent forwards a bus event.
func (r *Registry) EmitEvent(ctx context.Context, e event.Event) {
	r.mu.RLock()
	plugins := r.onEvent
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEvent(ctx, e)
		}); err != nil {
			r.warn("OnEvent", p.Name(), err)
		}
	}
}

func (r *Registry) warn(hook, name string, err error) {
	r.logger.Warn("plugin "+hook+" failed",
		"plugin", name,
		"error", err,
	)
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the purchase pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
