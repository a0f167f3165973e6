package iap

import (
	"log/slog"
	"time"

	"github.com/xraph/iap/plugin"
)

// Defaults for the native purchase cache and shutdown.
const (
	DefaultNativeCacheTTL  = 60 * time.Second
	DefaultNativeCacheSize = 256
	DefaultStopTimeout     = 5 * time.Second
)

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithNativeCacheTTL sets how long native purchases stay available to
// Consume after they were processed.
func WithNativeCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// WithNativeCacheSize bounds the number of cached native purchases.
func WithNativeCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// WithApplicationUsername sets the initial application username.
func WithApplicationUsername(username string) Option {
	return func(e *Engine) {
		e.username = username
	}
}

// WithLocalizer replaces the English messages.
func WithLocalizer(l Localizer) Option {
	return func(e *Engine) {
		if l != nil {
			e.localizer = l
		}
	}
}

// WithClock sets the time source used for ownership and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithFinishUnmatched controls whether a native purchase the validator
// reports no entry for is finished anyway. Defaults to true, which stops the
// store from redelivering a transaction that will never validate.
func WithFinishUnmatched(finish bool) Option {
	return func(e *Engine) {
		e.finishUnmatched = finish
	}
}

// WithStopTimeout bounds how long Stop waits for in-flight validations
// before cancelling them.
func WithStopTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.stopTimeout = d
		}
	}
}
