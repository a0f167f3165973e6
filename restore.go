package iap

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/iap/native"
	"github.com/xraph/iap/purchase"
)

// ProgressFunc reports restore progress. It is called with (-1, 0) before
// the platform is queried, then with (processed, total) after each
// purchase.
type ProgressFunc func(processed, total int)

// RestorePurchases reprocesses every purchase the platform still reports,
// one at a time, and returns the number processed. The first failure aborts
// the restore.
func (e *Engine) RestorePurchases(ctx context.Context, progress ProgressFunc) (int, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	start := time.Now()

	progress(-1, 0)

	available, err := e.bridge.GetAvailablePurchases(ctx)
	if err != nil {
		ierr := localize(e.localizer, NewError(CodeRefreshReceipts, SeverityError, "get available purchases", err))
		e.plugins.EmitRestoreCompleted(ctx, 0, 0, time.Since(start), ierr)
		return 0, ierr
	}

	total := len(available)
	for i, p := range available {
		if _, err := e.processForeground(ctx, p); err != nil {
			ierr := AsError(err, SeverityError, CodeRefreshReceipts, "restore purchase")
			if isCancelled(err) {
				ierr = NewError(CodeRefreshReceipts, SeverityError, "restore cancelled", err)
			}
			ierr = localize(e.localizer, ierr)
			e.logger.Error("iap: restore aborted",
				"product_id", p.ProductID,
				"processed", i,
				"total", total,
				"error", err,
			)
			e.plugins.EmitRestoreCompleted(ctx, i, total, time.Since(start), ierr)
			return i, ierr
		}
		progress(i+1, total)
	}

	e.logger.Info("iap: restore completed",
		"total", total,
		"elapsed", time.Since(start),
	)
	e.plugins.EmitRestoreCompleted(ctx, total, total, time.Since(start), nil)
	return total, nil
}

// maxConcurrentValidations bounds LoadPurchases fan-out.
const maxConcurrentValidations = 8

// validateAll validates purchases concurrently and returns the matched
// entries in input order. Purchases that fail validation are logged and
// left out. Each purchase still goes through the per-key serialization, so
// a concurrent native delivery of the same transaction waits.
func (e *Engine) validateAll(ctx context.Context, purchases []native.Purchase) ([]*purchase.Verified, error) {
	results := make([]*purchase.Verified, len(purchases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentValidations)
	for i, p := range purchases {
		g.Go(func() error {
			v, err := e.processForeground(gctx, p)
			if err != nil {
				if isCancelled(err) {
					return err
				}
				e.logger.Warn("iap: load purchase failed",
					"product_id", p.ProductID,
					"transaction_id", p.TransactionID,
					"error", err,
				)
				return nil
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	verified := make([]*purchase.Verified, 0, len(results))
	for _, v := range results {
		if v != nil {
			verified = append(verified, v)
		}
	}
	return verified, nil
}
