// Package plugin provides an extensible plugin system for the purchase
// engine. Plugins hook into purchase lifecycle events to add auditing,
// metrics or fan-out without touching the reconciliation pipeline.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/iap/event"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/purchase"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Purchase pipeline hooks
// ──────────────────────────────────────────────────

// OnPurchaseVerified is called for every validator-confirmed purchase
// written to the store.
type OnPurchaseVerified interface {
	Plugin
	OnPurchaseVerified(ctx context.Context, v *purchase.Verified) error
}

// OnPurchaseFinished is called after a native transaction was finished.
type OnPurchaseFinished interface {
	Plugin
	OnPurchaseFinished(ctx context.Context, p native.Purchase, isConsumable bool) error
}

// OnPendingUpdated is called on every pending purchase transition.
type OnPendingUpdated interface {
	Plugin
	OnPendingUpdated(ctx context.Context, p pending.Purchase) error
}

// OnValidationFailed is called when the validator rejects a purchase or
// cannot be reached.
type OnValidationFailed interface {
	Plugin
	OnValidationFailed(ctx context.Context, p native.Purchase, err error) error
}

// OnRestoreCompleted is called when a restore finished, successfully or not.
type OnRestoreCompleted interface {
	Plugin
	OnRestoreCompleted(ctx context.Context, processed, total int, elapsed time.Duration, err error) error
}

// ──────────────────────────────────────────────────
// Event forwarding
// ──────────────────────────────────────────────────

// OnEvent receives every event published on the engine's bus.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, e event.Event) error
}
