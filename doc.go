// Package iap reconciles in-app purchases reported by a mobile store with a
// remote receipt validator and derives what the user currently owns.
//
// Store events are asynchronous, may be duplicated and may arrive out of
// order. The Engine serializes them per transaction, validates each one,
// records every validator-confirmed purchase and finishes native
// transactions exactly when it is safe to do so:
//
//   - Non-consumables and subscriptions are finished automatically after a
//     successful validation.
//   - Consumables stay unfinished until the application calls Consume, after
//     it delivered the goods.
//   - A finish failure is reported as a warning and never revokes ownership.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/iap"
//	    "github.com/xraph/iap/catalog"
//	    "github.com/xraph/iap/store/memory"
//	    "github.com/xraph/iap/validator"
//	)
//
//	cat, err := catalog.LoadFile("products.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	v := validator.New(validator.Config{AppName: "my.app", PublicKey: key})
//
//	engine := iap.New(memory.New(), bridge, v, cat,
//	    iap.WithLogger(slog.Default()),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Ordering
//
// Order starts the platform purchase sheet. The outcome arrives through
// events:
//
//	engine.AddEventListener(iap.EventPurchaseUpdated, func(e iap.Event) {
//	    log.Printf("purchase %s updated", e.Purchase.ProductID)
//	})
//	err := engine.Order(ctx, offer)
//
// # Entitlements
//
// Catalog products list the entitlement tags they unlock. Only owned
// purchases grant entitlements: a purchase is owned unless it is expired,
// canceled or past its expiry date.
//
//	res, err := engine.CheckEntitlement(ctx, "premium")
//	if res.Allowed {
//	    // unlock
//	}
//
// # Errors
//
// Every error surfaced by engine operations and error events is an *Error
// carrying a Code shared with the validator and a Severity telling the
// presentation layer how loudly to report it. Use errors.Is with the code
// sentinels (ErrCommunication, ErrFinish, ...) and the IsRetryable and
// IsUserCancelled helpers.
//
// # Plugins
//
// Plugins registered with WithPlugin observe the purchase lifecycle. The
// audit_hook, observability and natsbridge packages provide an audit trail,
// metrics and NATS fan-out. The webhook package keeps a server-side store in
// sync with validator notifications.
package iap
