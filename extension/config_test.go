package extension

import (
	"testing"
	"time"

	"github.com/xraph/iap"
	"github.com/xraph/iap/validator"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{NativeCacheSize: 16})

	if cfg.NativeCacheSize != 16 {
		t.Errorf("cache size = %d, want 16", cfg.NativeCacheSize)
	}
	if cfg.NativeCacheTTL != iap.DefaultNativeCacheTTL {
		t.Errorf("cache ttl = %v", cfg.NativeCacheTTL)
	}
	if cfg.Validator.BaseURL != validator.DefaultBaseURL || cfg.Validator.Timeout != validator.DefaultTimeout {
		t.Errorf("validator = %+v", cfg.Validator)
	}
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{
		Validator:      validator.Config{AppName: "from.yaml"},
		NativeCacheTTL: 2 * time.Minute,
	}
	programmatic := Config{
		Validator:       validator.Config{AppName: "from.code", PublicKey: "key"},
		NativeCacheTTL:  time.Second,
		KeepUnmatched:   true,
		WebhookPassword: "secret",
	}

	cfg := mergeConfigurations(yaml, programmatic)

	if cfg.Validator.AppName != "from.yaml" {
		t.Errorf("app name = %q, yaml should win", cfg.Validator.AppName)
	}
	if cfg.Validator.PublicKey != "key" {
		t.Errorf("public key = %q, code should fill the gap", cfg.Validator.PublicKey)
	}
	if cfg.NativeCacheTTL != 2*time.Minute {
		t.Errorf("cache ttl = %v", cfg.NativeCacheTTL)
	}
	if !cfg.KeepUnmatched || cfg.WebhookPassword != "secret" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.NativeCacheSize != iap.DefaultNativeCacheSize {
		t.Errorf("cache size = %d", cfg.NativeCacheSize)
	}
}
