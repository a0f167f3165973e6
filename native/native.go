// Package native declares the contract of the platform store bridge (App
// Store, Google Play) that the engine drives. The engine never implements
// the bridge; hosts wire their platform SDK behind this interface.
package native

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/iap/purchase"
)

// ErrCodeUserCancelled is reported by bridges when the user dismissed the
// purchase sheet.
const ErrCodeUserCancelled = "E_USER_CANCELLED"

// Purchase is the store's raw representation of a purchase event. The engine
// reads it and never mutates it.
type Purchase struct {
	ProductID string `json:"productId"`

	// TransactionID may be empty (some flows finish before the store assigns
	// one) or repeated across deliveries of the same purchase.
	TransactionID string `json:"transactionId,omitempty"`

	Receipt         string            `json:"transactionReceipt,omitempty"`
	PurchaseToken   string            `json:"purchaseToken,omitempty"`
	Signature       string            `json:"signatureAndroid,omitempty"`
	TransactionDate time.Time         `json:"transactionDate"`
	Platform        purchase.Platform `json:"platform,omitempty"`
}

// Key is the deduplication key of the purchase: the transaction id, or the
// product id when the store has not assigned one.
func (p Purchase) Key() string {
	if p.TransactionID != "" {
		return p.TransactionID
	}
	return p.ProductID
}

// PurchaseError is a failure reported through the purchase-error listener.
type PurchaseError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"productId,omitempty"`
}

func (e PurchaseError) Error() string {
	return fmt.Sprintf("native: %s: %s", e.Code, e.Message)
}

// UserCancelled reports whether the user dismissed the purchase flow.
func (e PurchaseError) UserCancelled() bool { return e.Code == ErrCodeUserCancelled }

// SubscriptionOffer selects a Play Billing offer for a subscription request.
type SubscriptionOffer struct {
	SKU        string
	OfferToken string
}

// Request is a purchase or subscription request. Only the fields relevant to
// the bridge's platform are read.
type Request struct {
	SKU string

	// AppAccountToken is the App Store account token, a UUID.
	AppAccountToken string
	// ObfuscatedAccountID is the Play Billing account id, at most 64
	// characters.
	ObfuscatedAccountID string

	SubscriptionOffers []SubscriptionOffer
}

// Subscription is a removable listener registration.
type Subscription interface {
	Remove()
}

// Bridge is the platform store SDK.
type Bridge interface {
	InitConnection(ctx context.Context) error
	Platform() purchase.Platform

	RequestPurchase(ctx context.Context, req Request) error
	RequestSubscription(ctx context.Context, req Request) error

	GetAvailablePurchases(ctx context.Context) ([]Purchase, error)
	FinishTransaction(ctx context.Context, p Purchase, isConsumable bool) error

	OnPurchaseUpdated(fn func(Purchase)) Subscription
	OnPurchaseError(fn func(PurchaseError)) Subscription
}

// Flusher is implemented by bridges that can drop failed purchases the
// platform still caches as pending (Google Play).
type Flusher interface {
	FlushFailedPurchases(ctx context.Context) error
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Remove calls f.
func (f SubscriptionFunc) Remove() { f() }
