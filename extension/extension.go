// Package extension provides the Forge extension adapter for the purchase
// engine.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle management.
// The engine and, unless disabled, the validator webhook handler are
// provided to the container.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.iap" or "iap" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/iap"
	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/store"
	"github.com/xraph/iap/store/memory"
	"github.com/xraph/iap/validator"
	"github.com/xraph/iap/webhook"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "iap"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "In-app purchase reconciliation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *iap.Engine
	webhook    *webhook.Handler
	store      store.Store
	bridge     native.Bridge
	validator  iap.Validator
	catalog    *catalog.Catalog
	engineOpts []iap.Option
}

// New creates a new iap Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *iap.Engine { return e.engine }

// Webhook returns the webhook handler, or nil when disabled.
func (e *Extension) Webhook() *webhook.Handler { return e.webhook }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.bridge == nil {
		return errors.New("iap: a native bridge is required; use WithBridge")
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	if e.catalog == nil && e.config.CatalogFile != "" {
		cat, err := catalog.LoadFile(e.config.CatalogFile)
		if err != nil {
			return fmt.Errorf("iap: load catalog: %w", err)
		}
		e.catalog = cat
	}

	if e.validator == nil {
		var vopts []validator.Option
		if e.catalog != nil {
			vopts = append(vopts, validator.WithCatalog(e.catalog))
		}
		e.validator = validator.New(e.config.Validator, vopts...)
	}

	e.engine = iap.New(e.store, e.bridge, e.validator, e.catalog, e.buildEngineOpts()...)

	if err := vessel.Provide(fapp.Container(), func() (*iap.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableWebhook {
		return nil
	}
	var wopts []webhook.Option
	if e.config.WebhookPassword != "" {
		wopts = append(wopts, webhook.WithPassword(e.config.WebhookPassword))
	}
	e.webhook = webhook.New(e.store, wopts...)
	return vessel.Provide(fapp.Container(), func() (*webhook.Handler, error) {
		return e.webhook, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("iap: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("iap: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs iap.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []iap.Option {
	opts := make([]iap.Option, 0, len(e.engineOpts)+4)

	if e.config.NativeCacheTTL > 0 {
		opts = append(opts, iap.WithNativeCacheTTL(e.config.NativeCacheTTL))
	}
	if e.config.NativeCacheSize > 0 {
		opts = append(opts, iap.WithNativeCacheSize(e.config.NativeCacheSize))
	}
	if e.config.ApplicationUsername != "" {
		opts = append(opts, iap.WithApplicationUsername(e.config.ApplicationUsername))
	}
	if e.config.KeepUnmatched {
		opts = append(opts, iap.WithFinishUnmatched(false))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("iap: configuration is required but not found in config files; " +
				"ensure 'extensions.iap' or 'iap' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("iap: configuration loaded",
		forge.F("validator_base_url", e.config.Validator.BaseURL),
		forge.F("catalog_file", e.config.CatalogFile),
		forge.F("native_cache_ttl", e.config.NativeCacheTTL),
		forge.F("native_cache_size", e.config.NativeCacheSize),
		forge.F("keep_unmatched", e.config.KeepUnmatched),
		forge.F("disable_webhook", e.config.DisableWebhook),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.iap", "iap"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("iap: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("iap: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Validator.BaseURL == "" {
		cfg.Validator.BaseURL = defaults.Validator.BaseURL
	}
	if cfg.Validator.Timeout == 0 {
		cfg.Validator.Timeout = defaults.Validator.Timeout
	}
	if cfg.NativeCacheTTL == 0 {
		cfg.NativeCacheTTL = defaults.NativeCacheTTL
	}
	if cfg.NativeCacheSize == 0 {
		cfg.NativeCacheSize = defaults.NativeCacheSize
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.KeepUnmatched {
		yamlConfig.KeepUnmatched = true
	}
	if programmaticConfig.DisableWebhook {
		yamlConfig.DisableWebhook = true
	}

	if yamlConfig.Validator.AppName == "" {
		yamlConfig.Validator.AppName = programmaticConfig.Validator.AppName
	}
	if yamlConfig.Validator.PublicKey == "" {
		yamlConfig.Validator.PublicKey = programmaticConfig.Validator.PublicKey
	}
	if yamlConfig.Validator.BaseURL == "" {
		yamlConfig.Validator.BaseURL = programmaticConfig.Validator.BaseURL
	}
	if yamlConfig.Validator.IOSBundleID == "" {
		yamlConfig.Validator.IOSBundleID = programmaticConfig.Validator.IOSBundleID
	}
	if yamlConfig.Validator.Timeout == 0 {
		yamlConfig.Validator.Timeout = programmaticConfig.Validator.Timeout
	}
	if yamlConfig.CatalogFile == "" {
		yamlConfig.CatalogFile = programmaticConfig.CatalogFile
	}
	if yamlConfig.ApplicationUsername == "" {
		yamlConfig.ApplicationUsername = programmaticConfig.ApplicationUsername
	}
	if yamlConfig.WebhookPassword == "" {
		yamlConfig.WebhookPassword = programmaticConfig.WebhookPassword
	}
	if yamlConfig.NativeCacheTTL == 0 {
		yamlConfig.NativeCacheTTL = programmaticConfig.NativeCacheTTL
	}
	if yamlConfig.NativeCacheSize == 0 {
		yamlConfig.NativeCacheSize = programmaticConfig.NativeCacheSize
	}

	return mergeWithDefaults(yamlConfig)
}
