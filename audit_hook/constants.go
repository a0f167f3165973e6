package audithook

// Action constants for audit events.
const (
	// Engine actions
	ActionEngineStarted = "engine.started"
	ActionEngineStopped = "engine.stopped"

	// Purchase actions
	ActionPurchaseVerified = "purchase.verified"
	ActionPurchaseFinished = "purchase.finished"
	ActionPurchaseConsumed = "purchase.consumed"
	ActionPendingUpdated   = "pending.updated"

	// Validation actions
	ActionValidationFailed = "validation.failed"

	// Restore actions
	ActionRestoreCompleted = "restore.completed"
	ActionRestoreFailed    = "restore.failed"
)

// Resource constants for audit events.
const (
	ResourceEngine   = "engine"
	ResourcePurchase = "purchase"
	ResourcePending  = "pending_purchase"
	ResourceRestore  = "restore"
)

// Category constants for audit events.
const (
	CategoryLifecycle  = "lifecycle"
	CategoryPurchase   = "purchase"
	CategoryValidation = "validation"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
