package iap

import (
	"context"
	"crypto/md5" //nolint:gosec // used for a stable identifier, not for security
	"errors"

	"github.com/google/uuid"

	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/purchase"
)

// maxObfuscatedAccountID is the Play Billing limit on account ids.
const maxObfuscatedAccountID = 64

// Order starts the native purchase flow for offer.
//
// Ordering a product that is already pending is a no-op. The purchase is
// completed asynchronously: follow pendingPurchase.updated and
// purchase.updated events for the outcome.
func (e *Engine) Order(ctx context.Context, offer catalog.Offer) error {
	if !e.isStarted() {
		return ErrNotStarted
	}
	if !e.tracker.Add(offer) {
		e.logger.Debug("iap: order ignored, purchase already pending",
			"product_id", offer.ProductID,
		)
		return nil
	}

	req := e.nativeRequest(offer.ProductID)

	var err error
	if e.catalog.Type(offer.ProductID) == catalog.TypePaidSubscription {
		if e.bridge.Platform() == purchase.PlatformGooglePlay && offer.OfferToken != "" {
			req.SubscriptionOffers = []native.SubscriptionOffer{{
				SKU:        offer.ProductID,
				OfferToken: offer.OfferToken,
			}}
		}
		err = e.bridge.RequestSubscription(ctx, req)
	} else {
		err = e.bridge.RequestPurchase(ctx, req)
	}

	if err != nil {
		e.tracker.Remove(offer.ProductID)

		sev := SeverityError
		var pe native.PurchaseError
		if errors.As(err, &pe) && pe.UserCancelled() {
			sev = SeverityInfo
		}
		ierr := localize(e.localizer, NewError(CodePurchase, sev, "purchase request failed", err))
		e.logger.Log(ctx, logLevel(sev), "iap: order failed",
			"product_id", offer.ProductID,
			"offer_id", offer.ID,
			"error", err,
		)
		return ierr
	}

	e.tracker.Update(offer.ProductID, pending.StatusProcessing)
	return nil
}

// nativeRequest builds the bridge request for sku, attaching the
// application username in the form the platform expects.
func (e *Engine) nativeRequest(sku string) native.Request {
	req := native.Request{SKU: sku}

	username := e.ApplicationUsername()
	if username == "" {
		return req
	}

	switch e.bridge.Platform() {
	case purchase.PlatformAppleAppStore:
		req.AppAccountToken = AppAccountToken(username)
	case purchase.PlatformGooglePlay:
		req.ObfuscatedAccountID = ObfuscatedAccountID(username)
	}
	return req
}

// AppAccountToken returns the App Store account token for username: the
// username itself when it is a UUID, otherwise a UUID derived from its MD5
// digest.
func AppAccountToken(username string) string {
	if u, err := uuid.Parse(username); err == nil {
		return u.String()
	}
	sum := md5.Sum([]byte(username)) //nolint:gosec // see import
	u := uuid.UUID(sum)
	u[6] = (u[6] & 0x0f) | 0x30 // version 3
	u[8] = (u[8] & 0x3f) | 0x80 // RFC 4122 variant
	return u.String()
}

// ObfuscatedAccountID truncates username to the Play Billing limit.
func ObfuscatedAccountID(username string) string {
	if len(username) > maxObfuscatedAccountID {
		return username[:maxObfuscatedAccountID]
	}
	return username
}
