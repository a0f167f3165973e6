package iap

import (
	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/event"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/purchase"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages for everyday use.

// Offer is re-exported from the catalog package.
type Offer = catalog.Offer

// Product is re-exported from the catalog package.
type Product = catalog.Product

// VerifiedPurchase is re-exported from the purchase package.
type VerifiedPurchase = purchase.Verified

// PendingPurchase is re-exported from the pending package.
type PendingPurchase = pending.Purchase

// Event is re-exported from the event package.
type Event = event.Event

// EventType is re-exported from the event package.
type EventType = event.Type

// Re-export event types
const (
	EventPendingPurchaseUpdated = event.PendingPurchaseUpdated
	EventPurchaseUpdated        = event.PurchaseUpdated
	EventSubscriptionUpdated    = event.SubscriptionUpdated
	EventNonConsumableOwned     = event.NonConsumableOwned
	EventNonConsumableUpdated   = event.NonConsumableUpdated
	EventConsumablePurchased    = event.ConsumablePurchased
	EventConsumableRefunded     = event.ConsumableRefunded
	EventError                  = event.Error
	EventAny                    = event.Any
)
