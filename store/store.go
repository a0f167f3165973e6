package store

import (
	"context"

	"github.com/xraph/iap/purchase"
	"github.com/xraph/iap/tokens"
)

// Store is the unified storage interface for everything the engine
// persists. Methods are declared explicitly rather than by embedding the
// per-package interfaces, so backends see the full contract in one place.
type Store interface {
	// Verified purchase methods
	AddPurchase(ctx context.Context, v *purchase.Verified) error
	GetPurchase(ctx context.Context, productID string) (*purchase.Verified, error)
	ListPurchases(ctx context.Context) ([]*purchase.Verified, error)
	Reset(ctx context.Context) error

	// Token ledger methods
	AddTokenTransaction(ctx context.Context, t *tokens.Transaction) error
	RemoveTokenTransaction(ctx context.Context, transactionID string) error
	ListTokenTransactions(ctx context.Context, tokenType string) ([]*tokens.Transaction, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ purchase.Store = Store(nil)
	_ tokens.Store   = Store(nil)
)
