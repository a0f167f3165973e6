package iap

import (
	"context"
	"errors"

	"github.com/xraph/iap/native"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/purchase"
)

// mode selects how processPurchase surfaces failures.
type mode int

const (
	// background processing reports failures as error events.
	background mode = iota
	// foreground processing returns failures to the caller.
	foreground
)

// job is a unit of work for the dedup processor. Background deliveries and
// foreground restores share its key slots, so a transaction is never
// processed twice at once.
type job struct {
	purchase native.Purchase
	mode     mode
	result   *purchase.Verified
}

func jobKey(j *job) string { return j.purchase.Key() }

func (e *Engine) runJob(ctx context.Context, j *job) error {
	v, err := e.processPurchase(ctx, j.purchase, j.mode)
	j.result = v
	return err
}

// processForeground processes p on the calling goroutine once no other
// processing of the same transaction is active.
func (e *Engine) processForeground(ctx context.Context, p native.Purchase) (*purchase.Verified, error) {
	j := &job{purchase: p, mode: foreground}
	if err := e.processor.Do(ctx, j); err != nil {
		return nil, err
	}
	return j.result, nil
}

// processPurchase validates a native purchase, records the result and
// finishes the transaction when its product type allows it.
//
// It returns the verified purchase matching p.ProductID, or nil when the
// validator accepted the receipt without reporting that product.
func (e *Engine) processPurchase(ctx context.Context, p native.Purchase, m mode) (*purchase.Verified, error) {
	e.cache.put(p)

	e.tracker.Ensure(p.ProductID, pending.StatusProcessing)
	e.tracker.Update(p.ProductID, pending.StatusValidating)

	ptype := e.catalog.Type(p.ProductID)

	v, err := e.validate(ctx, p)
	if err != nil {
		e.tracker.Remove(p.ProductID)
		ierr := localize(e.localizer, AsError(err, SeverityWarning, CodeVerificationFailed, "validation failed"))
		e.plugins.EmitValidationFailed(ctx, p, ierr)
		e.logger.Warn("iap: validation failed",
			"product_id", p.ProductID,
			"transaction_id", p.TransactionID,
			"code", int(ierr.Code),
			"error", err,
		)
		if m == background {
			e.report(ierr)
			return nil, nil
		}
		return nil, ierr
	}
	e.resetNativeCodes()

	if v == nil {
		e.logger.Info("iap: no verified entry for purchase",
			"product_id", p.ProductID,
			"transaction_id", p.TransactionID,
			"finish", e.finishUnmatched,
		)
		if e.finishUnmatched {
			_ = e.finish(ctx, p, ptype.IsConsumable()) //nolint:errcheck // reported as an error event
		}
		e.tracker.Update(p.ProductID, pending.StatusCompleted)
		return nil, nil
	}

	// Consumables stay unfinished until Consume is called.
	if !ptype.IsConsumable() {
		e.tracker.Update(p.ProductID, pending.StatusFinishing)
		_ = e.finish(ctx, p, false) //nolint:errcheck // reported as an error event
	}

	e.tracker.Update(p.ProductID, pending.StatusCompleted)
	return v, nil
}

// validate sends p to the validator, ingests every returned entry and
// returns the one for p.ProductID.
func (e *Engine) validate(ctx context.Context, p native.Purchase) (*purchase.Verified, error) {
	platform := p.Platform
	if platform == "" {
		platform = e.bridge.Platform()
	}

	res, err := e.validator.Validate(ctx, purchase.ValidationData{
		ProductID:           p.ProductID,
		ProductType:         e.catalog.Type(p.ProductID),
		Platform:            platform,
		TransactionID:       p.TransactionID,
		Receipt:             p.Receipt,
		PurchaseToken:       p.PurchaseToken,
		Signature:           p.Signature,
		ApplicationUsername: e.ApplicationUsername(),
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	if res.Warning != "" {
		e.logger.Warn("iap: validator warning",
			"product_id", p.ProductID,
			"warning", res.Warning,
		)
	}

	if err := e.ingest(ctx, res); err != nil {
		return nil, err
	}
	return res.Find(p.ProductID), nil
}

// finish finishes p on the bridge. A failure is reported as a warning and
// never rolls back ownership.
func (e *Engine) finish(ctx context.Context, p native.Purchase, isConsumable bool) error {
	if err := e.bridge.FinishTransaction(ctx, p, isConsumable); err != nil {
		ierr := localize(e.localizer, AsError(err, SeverityWarning, CodeFinish, "finish transaction failed"))
		e.logger.Warn("iap: finish transaction failed",
			"product_id", p.ProductID,
			"transaction_id", p.TransactionID,
			"consumable", isConsumable,
			"error", err,
		)
		e.report(ierr)
		return ierr
	}

	e.plugins.EmitPurchaseFinished(ctx, p, isConsumable)
	if isConsumable {
		e.cache.remove(p.Key())
	}
	return nil
}

// Consume finishes the native transaction behind a verified consumable.
// The native purchase must still be cached, see WithNativeCacheTTL.
func (e *Engine) Consume(ctx context.Context, v *purchase.Verified) error {
	if v == nil || v.ProductID == "" {
		return ErrInvalidPurchase
	}

	p, ok := e.cache.get(v.TransactionID)
	if !ok {
		p, ok = e.cache.get(v.ProductID)
	}
	if !ok {
		e.logger.Warn("iap: consume without cached native purchase",
			"product_id", v.ProductID,
			"transaction_id", v.TransactionID,
		)
		return localize(e.localizer, NewError(CodeFinish, SeverityWarning, "native purchase not found", ErrNativePurchaseUnavailable))
	}

	if err := e.finish(ctx, p, true); err != nil {
		return err
	}
	return nil
}

// LoadPurchases validates every purchase the platform still reports and
// returns the verified entries that matched.
func (e *Engine) LoadPurchases(ctx context.Context) ([]*purchase.Verified, error) {
	available, err := e.bridge.GetAvailablePurchases(ctx)
	if err != nil {
		return nil, localize(e.localizer, NewError(CodeLoadReceipts, SeverityWarning, "get available purchases", err))
	}
	return e.validateAll(ctx, available)
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
