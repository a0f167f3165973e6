package iap

import (
	"context"

	"github.com/xraph/iap/entitlement"
)

// CheckEntitlement reports whether an owned product grants tag.
func (e *Engine) CheckEntitlement(ctx context.Context, tag string) (entitlement.Result, error) {
	purchases, err := e.store.ListPurchases(ctx)
	if err != nil {
		return entitlement.Result{Entitlement: tag}, err
	}
	return entitlement.Check(purchases, e.catalog, tag, e.now()), nil
}

// ListEntitlements returns the sorted set of entitlements granted by owned
// products.
func (e *Engine) ListEntitlements(ctx context.Context) ([]string, error) {
	purchases, err := e.store.ListPurchases(ctx)
	if err != nil {
		return nil, err
	}
	return entitlement.List(purchases, e.catalog, e.now()), nil
}

// OwnedProducts returns the ids of every owned product.
func (e *Engine) OwnedProducts(ctx context.Context) ([]string, error) {
	purchases, err := e.store.ListPurchases(ctx)
	if err != nil {
		return nil, err
	}
	return entitlement.Owned(purchases, e.now()), nil
}
