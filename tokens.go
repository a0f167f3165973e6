package iap

import "github.com/xraph/iap/tokens"

var _ tokens.Source = (*Engine)(nil)

// NewTokenManager creates a token ledger fed by the engine's consumable
// events and persisted in the engine's store.
func (e *Engine) NewTokenManager(opts ...tokens.Option) *tokens.Manager {
	opts = append([]tokens.Option{tokens.WithLogger(e.logger)}, opts...)
	return tokens.NewManager(e, e.store, opts...)
}
