package extension

import (
	"time"

	"github.com/xraph/iap"
	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/plugin"
	"github.com/xraph/iap/store"
)

// Option configures the iap Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithBridge sets the native store bridge. Required.
func WithBridge(b native.Bridge) Option {
	return func(e *Extension) { e.bridge = b }
}

// WithValidator replaces the validator client built from the config.
func WithValidator(v iap.Validator) Option {
	return func(e *Extension) { e.validator = v }
}

// WithCatalog sets the product catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Extension) { e.catalog = c }
}

// WithEngineOption passes an iap.Option through to the underlying engine.
func WithEngineOption(opt iap.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, iap.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCatalogFile sets the YAML catalog loaded on Register.
func WithCatalogFile(path string) Option {
	return func(e *Extension) { e.config.CatalogFile = path }
}

// WithApplicationUsername sets the signed-in user.
func WithApplicationUsername(username string) Option {
	return func(e *Extension) { e.config.ApplicationUsername = username }
}

// WithNativeCacheTTL sets how long native purchases stay consumable.
func WithNativeCacheTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.NativeCacheTTL = d }
}

// WithDisableWebhook prevents the webhook handler from being provided.
func WithDisableWebhook() Option {
	return func(e *Extension) { e.config.DisableWebhook = true }
}

// WithWebhookPassword sets the password webhook notifications must carry.
func WithWebhookPassword(password string) Option {
	return func(e *Extension) { e.config.WebhookPassword = password }
}
