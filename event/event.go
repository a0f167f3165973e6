// Package event is the engine's in-process publish/subscribe bus.
//
// Publish never calls listeners on the publisher's goroutine. Events are
// appended to an unbounded FIFO queue drained by a single dispatcher
// goroutine, so listeners observe events in publish order and listeners of
// the same event are called in registration order.
package event

import (
	"time"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/purchase"
)

// Type names an event.
type Type string

const (
	PendingPurchaseUpdated Type = "pendingPurchase.updated"
	PurchaseUpdated        Type = "purchase.updated"
	SubscriptionUpdated    Type = "subscription.updated"
	NonConsumableOwned     Type = "nonConsumable.owned"
	NonConsumableUpdated   Type = "nonConsumable.updated"
	ConsumablePurchased    Type = "consumable.purchased"
	ConsumableRefunded     Type = "consumable.refunded"
	Error                  Type = "error"

	// Any subscribes a listener to every event type.
	Any Type = "*"
)

// Types lists every concrete event type.
func Types() []Type {
	return []Type{
		PendingPurchaseUpdated,
		PurchaseUpdated,
		SubscriptionUpdated,
		NonConsumableOwned,
		NonConsumableUpdated,
		ConsumablePurchased,
		ConsumableRefunded,
		Error,
	}
}

// Reason qualifies a subscription.updated event.
type Reason string

const (
	ReasonPurchased Reason = "purchased"
	ReasonRenewed   Reason = "renewed"
	ReasonCancelled Reason = "cancelled"
	ReasonExpired   Reason = "expired"
	ReasonChanged   Reason = "changed"
)

// Event is a single bus message. Only the payload fields relevant to Type
// are set.
type Event struct {
	ID   id.EventID `json:"id"`
	Type Type       `json:"type"`
	Time time.Time  `json:"time"`

	Pending  *pending.Purchase  `json:"pending,omitempty"`
	Purchase *purchase.Verified `json:"purchase,omitempty"`
	Reason   Reason             `json:"reason,omitempty"`
	Err      error              `json:"-"`
}

// New creates an event of type t stamped with a fresh id and the current
// time.
func New(t Type) Event {
	return Event{ID: id.NewEventID(), Type: t, Time: time.Now().UTC()}
}

// Pending creates a pendingPurchase.updated event.
func Pending(p pending.Purchase) Event {
	e := New(PendingPurchaseUpdated)
	e.Pending = &p
	return e
}

// Purchase creates an event of type t about v.
func Purchase(t Type, v *purchase.Verified) Event {
	e := New(t)
	e.Purchase = v
	return e
}

// Subscription creates a subscription.updated event.
func Subscription(reason Reason, v *purchase.Verified) Event {
	e := Purchase(SubscriptionUpdated, v)
	e.Reason = reason
	return e
}

// Failure creates an error event.
func Failure(err error) Event {
	e := New(Error)
	e.Err = err
	return e
}
