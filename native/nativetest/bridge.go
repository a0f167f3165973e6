// Package nativetest provides an in-memory native.Bridge for tests.
package nativetest

import (
	"context"
	"sync"

	"github.com/xraph/iap/native"
	"github.com/xraph/iap/purchase"
)

// Finished records one FinishTransaction call.
type Finished struct {
	Purchase     native.Purchase
	IsConsumable bool
}

// Bridge is a scriptable fake store. The zero value is not usable; call New.
type Bridge struct {
	mu sync.Mutex

	platform purchase.Platform

	// Error injection. A non-nil value is returned by the matching call.
	InitErr     error
	RequestErr  error
	FinishErr   error
	AvailErr    error
	FlushErr    error
	Available   []native.Purchase
	BlockOrders chan struct{}

	requests    []native.Request
	subRequests []native.Request
	finished    []Finished
	flushed     int

	nextID    int
	updateFns map[int]func(native.Purchase)
	errorFns  map[int]func(native.PurchaseError)
}

// New creates a fake bridge for platform.
func New(platform purchase.Platform) *Bridge {
	return &Bridge{
		platform:  platform,
		updateFns: make(map[int]func(native.Purchase)),
		errorFns:  make(map[int]func(native.PurchaseError)),
	}
}

var (
	_ native.Bridge  = (*Bridge)(nil)
	_ native.Flusher = (*Bridge)(nil)
)

func (b *Bridge) InitConnection(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.InitErr
}

func (b *Bridge) Platform() purchase.Platform { return b.platform }

func (b *Bridge) RequestPurchase(ctx context.Context, req native.Request) error {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	block, err := b.BlockOrders, b.RequestErr
	b.mu.Unlock()
	return wait(ctx, block, err)
}

func (b *Bridge) RequestSubscription(ctx context.Context, req native.Request) error {
	b.mu.Lock()
	b.subRequests = append(b.subRequests, req)
	block, err := b.BlockOrders, b.RequestErr
	b.mu.Unlock()
	return wait(ctx, block, err)
}

func wait(ctx context.Context, block chan struct{}, err error) error {
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (b *Bridge) GetAvailablePurchases(context.Context) ([]native.Purchase, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.AvailErr != nil {
		return nil, b.AvailErr
	}
	out := make([]native.Purchase, len(b.Available))
	copy(out, b.Available)
	return out, nil
}

func (b *Bridge) FinishTransaction(_ context.Context, p native.Purchase, isConsumable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FinishErr != nil {
		return b.FinishErr
	}
	b.finished = append(b.finished, Finished{Purchase: p, IsConsumable: isConsumable})
	return nil
}

func (b *Bridge) FlushFailedPurchases(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushed++
	return b.FlushErr
}

func (b *Bridge) OnPurchaseUpdated(fn func(native.Purchase)) native.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.updateFns[id] = fn
	return native.SubscriptionFunc(func() {
		b.mu.Lock()
		delete(b.updateFns, id)
		b.mu.Unlock()
	})
}

func (b *Bridge) OnPurchaseError(fn func(native.PurchaseError)) native.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.errorFns[id] = fn
	return native.SubscriptionFunc(func() {
		b.mu.Lock()
		delete(b.errorFns, id)
		b.mu.Unlock()
	})
}

// EmitPurchase delivers p to every purchase-updated listener.
func (b *Bridge) EmitPurchase(p native.Purchase) {
	b.mu.Lock()
	fns := make([]func(native.Purchase), 0, len(b.updateFns))
	for _, fn := range b.updateFns {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

// EmitError delivers e to every purchase-error listener.
func (b *Bridge) EmitError(e native.PurchaseError) {
	b.mu.Lock()
	fns := make([]func(native.PurchaseError), 0, len(b.errorFns))
	for _, fn := range b.errorFns {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

// Requests returns the purchase requests seen so far.
func (b *Bridge) Requests() []native.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]native.Request(nil), b.requests...)
}

// SubscriptionRequests returns the subscription requests seen so far.
func (b *Bridge) SubscriptionRequests() []native.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]native.Request(nil), b.subRequests...)
}

// Finished returns the successful FinishTransaction calls.
func (b *Bridge) Finished() []Finished {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Finished(nil), b.finished...)
}

// Flushed returns how many times FlushFailedPurchases was called.
func (b *Bridge) Flushed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushed
}

// Listeners returns the number of live purchase-updated and purchase-error
// registrations.
func (b *Bridge) Listeners() (updates, errs int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.updateFns), len(b.errorFns)
}

// SetFinishErr changes the error returned by FinishTransaction.
func (b *Bridge) SetFinishErr(err error) {
	b.mu.Lock()
	b.FinishErr = err
	b.mu.Unlock()
}
