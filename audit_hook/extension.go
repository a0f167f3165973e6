// Package audithook bridges purchase lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/iap/native"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/plugin"
	"github.com/xraph/iap/purchase"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnInit             = (*Extension)(nil)
	_ plugin.OnShutdown         = (*Extension)(nil)
	_ plugin.OnPurchaseVerified = (*Extension)(nil)
	_ plugin.OnPurchaseFinished = (*Extension)(nil)
	_ plugin.OnPendingUpdated   = (*Extension)(nil)
	_ plugin.OnValidationFailed = (*Extension)(nil)
	_ plugin.OnRestoreCompleted = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly. Callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges purchase lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Engine lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit implements plugin.OnInit.
func (e *Extension) OnInit(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionEngineStarted, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategoryLifecycle, nil,
	)
}

// OnShutdown implements plugin.OnShutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionEngineStopped, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategoryLifecycle, nil,
	)
}

// ──────────────────────────────────────────────────
// Purchase hooks
// ──────────────────────────────────────────────────

// OnPurchaseVerified implements plugin.OnPurchaseVerified.
func (e *Extension) OnPurchaseVerified(ctx context.Context, v *purchase.Verified) error {
	kv := []any{
		"product_id", v.ProductID,
		"platform", string(v.Platform),
		"transaction_id", v.TransactionID,
		"owned", v.Owned(time.Now()),
	}
	if v.ExpiryDate != nil {
		kv = append(kv, "expiry_date", v.ExpiryDate.UTC().Format(time.RFC3339))
	}
	if v.CancelationReason.IsCanceled() {
		kv = append(kv, "cancelation_reason", string(v.CancelationReason))
	}
	return e.record(ctx, ActionPurchaseVerified, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, v.Key(), CategoryPurchase, nil,
		kv...,
	)
}

// OnPurchaseFinished implements plugin.OnPurchaseFinished. Consumed
// purchases are recorded under their own action.
func (e *Extension) OnPurchaseFinished(ctx context.Context, p native.Purchase, isConsumable bool) error {
	action := ActionPurchaseFinished
	if isConsumable {
		action = ActionPurchaseConsumed
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, p.Key(), CategoryPurchase, nil,
		"product_id", p.ProductID,
		"platform", string(p.Platform),
	)
}

// OnPendingUpdated implements plugin.OnPendingUpdated.
func (e *Extension) OnPendingUpdated(ctx context.Context, p pending.Purchase) error {
	return e.record(ctx, ActionPendingUpdated, SeverityInfo, OutcomeSuccess,
		ResourcePending, p.ID.String(), CategoryPurchase, nil,
		"product_id", p.ProductID,
		"status", string(p.Status),
	)
}

// ──────────────────────────────────────────────────
// Validation and restore hooks
// ──────────────────────────────────────────────────

// OnValidationFailed implements plugin.OnValidationFailed.
func (e *Extension) OnValidationFailed(ctx context.Context, p native.Purchase, err error) error {
	return e.record(ctx, ActionValidationFailed, SeverityWarning, OutcomeFailure,
		ResourcePurchase, p.Key(), CategoryValidation, err,
		"product_id", p.ProductID,
		"platform", string(p.Platform),
	)
}

// OnRestoreCompleted implements plugin.OnRestoreCompleted.
func (e *Extension) OnRestoreCompleted(ctx context.Context, processed, total int, elapsed time.Duration, err error) error {
	action, severity, outcome := ActionRestoreCompleted, SeverityInfo, OutcomeSuccess
	if err != nil {
		action, severity, outcome = ActionRestoreFailed, SeverityError, OutcomeFailure
		if processed > 0 {
			outcome = OutcomePartial
		}
	}
	return e.record(ctx, action, severity, outcome,
		ResourceRestore, "", CategoryLifecycle, err,
		"processed", processed,
		"total", total,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
