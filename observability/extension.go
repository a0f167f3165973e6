// Package observability provides a metrics extension for the purchase
// engine that records lifecycle counts via a go-utils style MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/iap/event"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/plugin"
	"github.com/xraph/iap/purchase"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseVerified = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseFinished = (*MetricsExtension)(nil)
	_ plugin.OnPendingUpdated   = (*MetricsExtension)(nil)
	_ plugin.OnValidationFailed = (*MetricsExtension)(nil)
	_ plugin.OnRestoreCompleted = (*MetricsExtension)(nil)
	_ plugin.OnEvent            = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records purchase lifecycle metrics.
// Register it as an engine plugin.
type MetricsExtension struct {
	factory MetricFactory

	EngineStarted Counter

	// Purchase metrics
	PurchasesVerified  Counter
	PurchasesOwned     Counter
	PurchasesFinished  Counter
	PurchasesConsumed  Counter
	PendingTransitions Counter
	PendingCompleted   Counter

	// Validation metrics
	ValidationFailures Counter

	// Restore metrics
	RestoreCompleted Counter
	RestoreFailed    Counter
	RestorePurchases Histogram
	RestoreLatency   Histogram

	// Event metrics
	Events            Counter
	ErrorEvents       Counter
	SubscriptionEvent Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		EngineStarted: factory.Counter("iap.engine.started"),

		PurchasesVerified:  factory.Counter("iap.purchase.verified"),
		PurchasesOwned:     factory.Counter("iap.purchase.owned"),
		PurchasesFinished:  factory.Counter("iap.purchase.finished"),
		PurchasesConsumed:  factory.Counter("iap.purchase.consumed"),
		PendingTransitions: factory.Counter("iap.pending.transitions"),
		PendingCompleted:   factory.Counter("iap.pending.completed"),

		ValidationFailures: factory.Counter("iap.validation.failures"),

		RestoreCompleted: factory.Counter("iap.restore.completed"),
		RestoreFailed:    factory.Counter("iap.restore.failed"),
		RestorePurchases: factory.Histogram("iap.restore.purchases"),
		RestoreLatency:   factory.Histogram("iap.restore.latency_ms"),

		Events:            factory.Counter("iap.events.published"),
		ErrorEvents:       factory.Counter("iap.events.errors"),
		SubscriptionEvent: factory.Counter("iap.events.subscription"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	m.EngineStarted.Inc()
	return nil
}

// OnPurchaseVerified implements plugin.OnPurchaseVerified.
func (m *MetricsExtension) OnPurchaseVerified(_ context.Context, v *purchase.Verified) error {
	m.PurchasesVerified.Inc()
	if v.Owned(time.Now()) {
		m.PurchasesOwned.Inc()
	}
	return nil
}

// OnPurchaseFinished implements plugin.OnPurchaseFinished.
func (m *MetricsExtension) OnPurchaseFinished(_ context.Context, _ native.Purchase, isConsumable bool) error {
	if isConsumable {
		m.PurchasesConsumed.Inc()
	} else {
		m.PurchasesFinished.Inc()
	}
	return nil
}

// OnPendingUpdated implements plugin.OnPendingUpdated.
func (m *MetricsExtension) OnPendingUpdated(_ context.Context, p pending.Purchase) error {
	m.PendingTransitions.Inc()
	if p.Status == pending.StatusCompleted {
		m.PendingCompleted.Inc()
	}
	return nil
}

// OnValidationFailed implements plugin.OnValidationFailed.
func (m *MetricsExtension) OnValidationFailed(_ context.Context, _ native.Purchase, _ error) error {
	m.ValidationFailures.Inc()
	return nil
}

// OnRestoreCompleted implements plugin.OnRestoreCompleted.
func (m *MetricsExtension) OnRestoreCompleted(_ context.Context, processed, _ int, elapsed time.Duration, err error) error {
	if err != nil {
		m.RestoreFailed.Inc()
	} else {
		m.RestoreCompleted.Inc()
	}
	m.RestorePurchases.Observe(float64(processed))
	m.RestoreLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnEvent implements plugin.OnEvent.
func (m *MetricsExtension) OnEvent(_ context.Context, e event.Event) error {
	m.Events.Inc()
	switch e.Type {
	case event.Error:
		m.ErrorEvents.Inc()
	case event.SubscriptionUpdated:
		m.SubscriptionEvent.Inc()
	}
	return nil
}
