package extension

import (
	"time"

	"github.com/xraph/iap"
	"github.com/xraph/iap/validator"
)

// Config holds the iap extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.iap" or "iap" keys).
type Config struct {
	// Validator holds the receipt validator credentials.
	Validator validator.Config `json:"validator" mapstructure:"validator" yaml:"validator"`

	// CatalogFile is a YAML product catalog loaded on Register when no
	// catalog was provided programmatically.
	CatalogFile string `json:"catalog_file" mapstructure:"catalog_file" yaml:"catalog_file"`

	// ApplicationUsername identifies the signed-in user to the stores and
	// the validator.
	ApplicationUsername string `json:"application_username" mapstructure:"application_username" yaml:"application_username"`

	// NativeCacheTTL is how long a native purchase stays available for
	// Consume after validation (default: 60s).
	NativeCacheTTL time.Duration `json:"native_cache_ttl" mapstructure:"native_cache_ttl" yaml:"native_cache_ttl"`

	// NativeCacheSize bounds the native purchase cache (default: 256).
	NativeCacheSize int `json:"native_cache_size" mapstructure:"native_cache_size" yaml:"native_cache_size"`

	// KeepUnmatched leaves purchases the validator did not report
	// unfinished instead of finishing them.
	KeepUnmatched bool `json:"keep_unmatched" mapstructure:"keep_unmatched" yaml:"keep_unmatched"`

	// DisableWebhook prevents the webhook handler from being provided.
	DisableWebhook bool `json:"disable_webhook" mapstructure:"disable_webhook" yaml:"disable_webhook"`

	// WebhookPassword, when set, must accompany every webhook notification.
	WebhookPassword string `json:"webhook_password" mapstructure:"webhook_password" yaml:"webhook_password"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Validator: validator.Config{
			BaseURL: validator.DefaultBaseURL,
			Timeout: validator.DefaultTimeout,
		},
		NativeCacheTTL:  iap.DefaultNativeCacheTTL,
		NativeCacheSize: iap.DefaultNativeCacheSize,
	}
}
