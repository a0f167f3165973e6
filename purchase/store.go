package purchase

import "context"

// Store persists verified purchases keyed by product id.
type Store interface {
	// AddPurchase inserts v or replaces the entry for v.ProductID whole. A
	// record validated before the stored one is rejected with
	// iap.ErrStalePurchase.
	AddPurchase(ctx context.Context, v *Verified) error
	GetPurchase(ctx context.Context, productID string) (*Verified, error)
	ListPurchases(ctx context.Context) ([]*Verified, error)
	// Reset deletes every verified purchase.
	Reset(ctx context.Context) error
}
