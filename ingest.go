package iap

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/event"
	"github.com/xraph/iap/purchase"
)

// ingest writes every entry of a validation result to the store and
// publishes the events describing how each one changed. Entries older than
// what the store holds are skipped.
func (e *Engine) ingest(ctx context.Context, res *purchase.ValidationResult) error {
	var errs MultiError

	for _, v := range res.Collection {
		if v == nil || v.ProductID == "" {
			continue
		}
		if v.ValidatedAt.IsZero() {
			v.ValidatedAt = res.Date
		}

		prev, err := e.store.GetPurchase(ctx, v.ProductID)
		if err != nil && !errors.Is(err, ErrPurchaseNotFound) {
			errs.Add(err)
			continue
		}

		if err := e.store.AddPurchase(ctx, v); err != nil {
			if errors.Is(err, ErrStalePurchase) {
				e.logger.Debug("iap: skipped stale purchase",
					"product_id", v.ProductID,
					"validated_at", v.ValidatedAt,
				)
				continue
			}
			errs.Add(err)
			continue
		}

		snap := v.Clone()
		e.plugins.EmitPurchaseVerified(ctx, snap)
		for _, ev := range changeEvents(prev, snap, e.catalog.Type(v.ProductID), e.now()) {
			e.bus.Publish(ev)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return NewError(CodeUnknown, SeverityError, "store verified purchases", err)
	}
	return nil
}

// changeEvents describes the transition from prev (nil when the product was
// never seen) to cur. purchase.updated is always included.
func changeEvents(prev, cur *purchase.Verified, ptype catalog.ProductType, now time.Time) []event.Event {
	events := []event.Event{event.Purchase(event.PurchaseUpdated, cur)}

	wasOwned := prev.Owned(now)
	isOwned := cur.Owned(now)

	switch {
	case ptype.IsSubscription():
		if reason, ok := subscriptionReason(prev, cur, wasOwned, isOwned); ok {
			events = append(events, event.Subscription(reason, cur))
		}

	case ptype.IsConsumable():
		newTransaction := prev == nil || prev.Key() != cur.Key()
		switch {
		case newTransaction && isOwned:
			events = append(events, event.Purchase(event.ConsumablePurchased, cur))
		case !newTransaction && wasOwned && cur.CancelationReason.IsCanceled():
			events = append(events, event.Purchase(event.ConsumableRefunded, cur))
		}

	default:
		switch {
		case !wasOwned && isOwned:
			events = append(events, event.Purchase(event.NonConsumableOwned, cur))
		case prev != nil && changed(prev, cur):
			events = append(events, event.Purchase(event.NonConsumableUpdated, cur))
		}
	}

	return events
}

func subscriptionReason(prev, cur *purchase.Verified, wasOwned, isOwned bool) (event.Reason, bool) {
	switch {
	case prev == nil:
		return event.ReasonPurchased, true
	case wasOwned && !isOwned:
		if cur.CancelationReason.IsCanceled() {
			return event.ReasonCancelled, true
		}
		return event.ReasonExpired, true
	case !wasOwned && isOwned:
		return event.ReasonPurchased, true
	case extended(prev.ExpiryDate, cur.ExpiryDate):
		return event.ReasonRenewed, true
	case changed(prev, cur):
		return event.ReasonChanged, true
	}
	return "", false
}

func extended(prev, cur *time.Time) bool {
	return prev != nil && cur != nil && cur.After(*prev)
}

// changed reports whether anything but the validation time differs.
func changed(prev, cur *purchase.Verified) bool {
	a, b := prev, cur
	return !sameTime(a.PurchaseDate, b.PurchaseDate) ||
		!sameTime(a.ExpiryDate, b.ExpiryDate) ||
		!sameTime(a.LastRenewalDate, b.LastRenewalDate) ||
		!sameTime(a.RenewalIntentChangeDate, b.RenewalIntentChangeDate) ||
		a.Platform != b.Platform ||
		a.PurchaseID != b.PurchaseID ||
		a.TransactionID != b.TransactionID ||
		a.IsExpired != b.IsExpired ||
		a.CancelationReason != b.CancelationReason ||
		a.IsBillingRetryPeriod != b.IsBillingRetryPeriod ||
		a.IsTrialPeriod != b.IsTrialPeriod ||
		a.IsIntroPeriod != b.IsIntroPeriod ||
		a.RenewalIntent != b.RenewalIntent ||
		a.DiscountID != b.DiscountID ||
		a.PriceConsentStatus != b.PriceConsentStatus
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
