package iap_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/iap"
	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/event"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/native/nativetest"
	"github.com/xraph/iap/purchase"
	"github.com/xraph/iap/store/memory"
)

// fakeValidator confirms every purchase unless an error or an empty result
// is configured for its product. Extra entries are appended to every
// collection it returns.
type fakeValidator struct {
	mu       sync.Mutex
	calls    []purchase.ValidationData
	errs     map[string]error
	empty    map[string]bool
	extra    []*purchase.Verified
	gate     chan struct{}
	inflight atomic.Int32
	peak     atomic.Int32
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{errs: map[string]error{}, empty: map[string]bool{}}
}

func (f *fakeValidator) Validate(ctx context.Context, d purchase.ValidationData) (*purchase.ValidationResult, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, d)
	gate := f.gate
	err := f.errs[d.ProductID]
	empty := f.empty[d.ProductID]
	extra := make([]*purchase.Verified, 0, len(f.extra))
	for _, v := range f.extra {
		extra = append(extra, v.Clone())
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	res := &purchase.ValidationResult{ID: d.ProductID, Date: time.Now().UTC()}
	if !empty {
		res.Collection = []*purchase.Verified{{
			ProductID:     d.ProductID,
			Platform:      d.Platform,
			TransactionID: d.TransactionID,
		}}
	}
	res.Collection = append(res.Collection, extra...)
	return res, nil
}

func (f *fakeValidator) setErr(productID string, err error) {
	f.mu.Lock()
	f.errs[productID] = err
	f.mu.Unlock()
}

func (f *fakeValidator) setExtra(entries ...*purchase.Verified) {
	f.mu.Lock()
	f.extra = entries
	f.mu.Unlock()
}

func (f *fakeValidator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recorder collects bus events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) listen(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) forProduct(t event.Type, productID string) []event.Event {
	var out []event.Event
	for _, e := range r.ofType(t) {
		if e.Purchase != nil && e.Purchase.ProductID == productID {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) ofType(t event.Type) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var testCatalog = catalog.MustNew([]catalog.Product{
	{ID: "coins_100", Type: catalog.TypeConsumable, TokenType: "coins", TokenAmount: 100},
	{ID: "pro_monthly", Type: catalog.TypePaidSubscription, Entitlements: []string{"pro"}},
	{ID: "remove_ads", Type: catalog.TypeNonConsumable, Entitlements: []string{"no_ads"}},
	{ID: "theme_pack", Type: catalog.TypeNonConsumable},
})

type harness struct {
	engine    *iap.Engine
	bridge    *nativetest.Bridge
	validator *fakeValidator
	store     *memory.Store
	events    *recorder
}

func newHarness(t *testing.T, platform purchase.Platform, opts ...iap.Option) *harness {
	t.Helper()
	h := &harness{
		bridge:    nativetest.New(platform),
		validator: newFakeValidator(),
		store:     memory.New(),
		events:    &recorder{},
	}
	h.engine = iap.New(h.store, h.bridge, h.validator, testCatalog, opts...)
	h.engine.AddEventListener(event.Any, h.events.listen)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.engine.Stop() })
	return h
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.engine.FlushEvents(ctx); err != nil {
		t.Fatalf("FlushEvents: %v", err)
	}
}

func (h *harness) owned(t *testing.T, productID string) bool {
	t.Helper()
	ok, err := h.engine.Owned(context.Background(), productID)
	if err != nil {
		t.Fatalf("Owned: %v", err)
	}
	return ok
}

func (h *harness) settled(t *testing.T, productID string) {
	t.Helper()
	eventually(t, productID+" to settle", func() bool {
		return len(h.engine.PendingPurchases()) == 0 && h.owned(t, productID)
	})
}

func TestOrderTwiceRequestsOnce(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	ctx := context.Background()
	offer := catalog.Offer{ID: "o1", ProductID: "remove_ads"}

	if err := h.engine.Order(ctx, offer); err != nil {
		t.Fatalf("first Order: %v", err)
	}
	if err := h.engine.Order(ctx, offer); err != nil {
		t.Fatalf("second Order: %v", err)
	}

	if got := len(h.bridge.Requests()); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
	pend := h.engine.PendingPurchases()
	if len(pend) != 1 || pend[0].Status != "processing" {
		t.Fatalf("pending = %+v, want one processing entry", pend)
	}
	if can, _ := h.engine.CanPurchase(ctx, "remove_ads"); can {
		t.Error("CanPurchase = true while pending")
	}
}

func TestOrderBeforeStart(t *testing.T) {
	e := iap.New(memory.New(), nativetest.New(purchase.PlatformTest), newFakeValidator(), testCatalog)
	if err := e.Order(context.Background(), catalog.Offer{ProductID: "remove_ads"}); !errors.Is(err, iap.ErrNotStarted) {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
}

func TestOrderFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		severity  iap.Severity
		cancelled bool
	}{
		{"user cancelled", native.PurchaseError{Code: native.ErrCodeUserCancelled}, iap.SeverityInfo, true},
		{"store error", native.PurchaseError{Code: "E_SERVICE_ERROR"}, iap.SeverityError, false},
		{"plain error", errors.New("boom"), iap.SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, purchase.PlatformAppleAppStore)
			h.bridge.RequestErr = tt.err

			err := h.engine.Order(context.Background(), catalog.Offer{ProductID: "remove_ads"})
			if !errors.Is(err, iap.ErrPurchase) {
				t.Fatalf("err = %v, want purchase error", err)
			}
			if sev := iap.SeverityOf(err); sev != tt.severity {
				t.Errorf("severity = %v, want %v", sev, tt.severity)
			}
			if got := iap.IsUserCancelled(err); got != tt.cancelled {
				t.Errorf("IsUserCancelled = %v, want %v", got, tt.cancelled)
			}
			if n := len(h.engine.PendingPurchases()); n != 0 {
				t.Errorf("pending = %d, want 0", n)
			}
		})
	}
}

func TestOrderSubscriptionOnGooglePlay(t *testing.T) {
	h := newHarness(t, purchase.PlatformGooglePlay)
	long := "user-0123456789-0123456789-0123456789-0123456789-0123456789-0123456789"
	h.engine.SetApplicationUsername(long)

	err := h.engine.Order(context.Background(), catalog.Offer{ProductID: "pro_monthly", OfferToken: "tok-1"})
	if err != nil {
		t.Fatal(err)
	}

	reqs := h.bridge.SubscriptionRequests()
	if len(reqs) != 1 {
		t.Fatalf("subscription requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if len(req.SubscriptionOffers) != 1 || req.SubscriptionOffers[0].OfferToken != "tok-1" {
		t.Errorf("offers = %+v", req.SubscriptionOffers)
	}
	if req.ObfuscatedAccountID != long[:64] {
		t.Errorf("account id = %q", req.ObfuscatedAccountID)
	}
	if req.AppAccountToken != "" {
		t.Errorf("app account token set on Google Play")
	}
	if len(h.bridge.Requests()) != 0 {
		t.Error("subscription ordered through RequestPurchase")
	}
}

func TestOrderOnAppStoreSetsAccountToken(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	h.engine.SetApplicationUsername("alice")

	if err := h.engine.Order(context.Background(), catalog.Offer{ProductID: "coins_100"}); err != nil {
		t.Fatal(err)
	}
	reqs := h.bridge.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d", len(reqs))
	}
	if reqs[0].AppAccountToken != iap.AppAccountToken("alice") {
		t.Errorf("token = %q", reqs[0].AppAccountToken)
	}
}

func TestAppAccountToken(t *testing.T) {
	const id = "7f1c8e2a-3b4d-4e5f-8a9b-0c1d2e3f4a5b"
	if got := iap.AppAccountToken(id); got != id {
		t.Errorf("uuid username rewritten: %q", got)
	}

	a, b := iap.AppAccountToken("alice"), iap.AppAccountToken("alice")
	if a != b {
		t.Errorf("derived token not stable: %q vs %q", a, b)
	}
	if a == iap.AppAccountToken("bob") {
		t.Error("different usernames share a token")
	}
	if len(a) != 36 || a[14] != '3' {
		t.Errorf("derived token %q is not a version 3 uuid", a)
	}
}

func TestSubscriptionIsFinishedAutomatically(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)

	h.bridge.EmitPurchase(native.Purchase{ProductID: "pro_monthly", TransactionID: "t1", Receipt: "r"})
	h.settled(t, "pro_monthly")

	fin := h.bridge.Finished()
	if len(fin) != 1 || fin[0].IsConsumable || fin[0].Purchase.TransactionID != "t1" {
		t.Fatalf("finished = %+v, want one non-consumable finish", fin)
	}

	h.flush(t)
	subs := h.events.ofType(event.SubscriptionUpdated)
	if len(subs) != 1 || subs[0].Reason != event.ReasonPurchased {
		t.Errorf("subscription events = %+v", subs)
	}

	res, err := h.engine.CheckEntitlement(context.Background(), "pro")
	if err != nil || !res.Allowed || res.ProductID != "pro_monthly" {
		t.Errorf("CheckEntitlement = %+v, %v", res, err)
	}
}

func TestPendingTransitionsArePublished(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	ctx := context.Background()

	if err := h.engine.Order(ctx, catalog.Offer{ProductID: "remove_ads"}); err != nil {
		t.Fatal(err)
	}
	h.bridge.EmitPurchase(native.Purchase{ProductID: "remove_ads", TransactionID: "t9"})
	h.settled(t, "remove_ads")
	h.flush(t)

	var got []string
	for _, e := range h.events.ofType(event.PendingPurchaseUpdated) {
		got = append(got, string(e.Pending.Status))
	}
	want := []string{"purchasing", "processing", "validating", "finishing", "completed"}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}
	if owned := h.events.ofType(event.NonConsumableOwned); len(owned) != 1 {
		t.Errorf("nonConsumable.owned events = %d, want 1", len(owned))
	}
}

func TestConsumableWaitsForConsume(t *testing.T) {
	h := newHarness(t, purchase.PlatformGooglePlay)
	ctx := context.Background()

	h.bridge.EmitPurchase(native.Purchase{ProductID: "coins_100", TransactionID: "GPA.1", PurchaseToken: "tok"})
	h.settled(t, "coins_100")

	if fin := h.bridge.Finished(); len(fin) != 0 {
		t.Fatalf("consumable finished before Consume: %+v", fin)
	}

	v, err := h.store.GetPurchase(ctx, "coins_100")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.engine.Consume(ctx, v); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	fin := h.bridge.Finished()
	if len(fin) != 1 || !fin[0].IsConsumable {
		t.Fatalf("finished = %+v, want one consumable finish", fin)
	}

	// The native purchase is gone once consumed.
	err = h.engine.Consume(ctx, v)
	if !iap.IsNotFound(err) {
		t.Fatalf("second Consume err = %v, want not found", err)
	}

	h.flush(t)
	if got := h.events.ofType(event.ConsumablePurchased); len(got) != 1 {
		t.Errorf("consumable.purchased events = %d, want 1", len(got))
	}
}

func TestConsumeExpiresFromCache(t *testing.T) {
	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	h := newHarness(t, purchase.PlatformGooglePlay, iap.WithClock(clock), iap.WithNativeCacheTTL(time.Minute))
	ctx := context.Background()

	h.bridge.EmitPurchase(native.Purchase{ProductID: "coins_100", TransactionID: "GPA.2", PurchaseToken: "tok"})
	h.settled(t, "coins_100")

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	v, _ := h.store.GetPurchase(ctx, "coins_100")
	if err := h.engine.Consume(ctx, v); !errors.Is(err, iap.ErrNativePurchaseUnavailable) {
		t.Fatalf("Consume err = %v, want ErrNativePurchaseUnavailable", err)
	}
}

func TestFinishFailureKeepsOwnership(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	h.bridge.SetFinishErr(errors.New("store offline"))

	h.bridge.EmitPurchase(native.Purchase{ProductID: "remove_ads", TransactionID: "t2"})
	h.settled(t, "remove_ads")
	h.flush(t)

	errs := h.events.ofType(event.Error)
	if len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	if !errors.Is(errs[0].Err, iap.ErrFinish) || iap.SeverityOf(errs[0].Err) != iap.SeverityWarning {
		t.Errorf("error event = %v", errs[0].Err)
	}
	if !h.owned(t, "remove_ads") {
		t.Error("ownership rolled back after finish failure")
	}
}

func TestBackgroundValidationErrorEmitsEvent(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	h.validator.setErr("remove_ads", iap.NewError(iap.CodeCommunication, iap.SeverityWarning, "down", nil))

	h.bridge.EmitPurchase(native.Purchase{ProductID: "remove_ads", TransactionID: "t3"})

	eventually(t, "error event", func() bool {
		return len(h.events.ofType(event.Error)) == 1
	})
	err := h.events.ofType(event.Error)[0].Err
	if !errors.Is(err, iap.ErrCommunication) {
		t.Errorf("err = %v, want communication error", err)
	}
	if !iap.IsRetryable(err) {
		t.Error("communication error not retryable")
	}
	if len(h.engine.PendingPurchases()) != 0 {
		t.Error("pending entry kept after validation failure")
	}
	if len(h.bridge.Finished()) != 0 {
		t.Error("unvalidated purchase finished")
	}
	if h.owned(t, "remove_ads") {
		t.Error("store changed by failed validation")
	}
}

func TestUnmatchedPurchase(t *testing.T) {
	tests := []struct {
		name   string
		opts   []iap.Option
		finish int
	}{
		{"finished by default", nil, 1},
		{"kept when disabled", []iap.Option{iap.WithFinishUnmatched(false)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, purchase.PlatformAppleAppStore, tt.opts...)
			h.validator.mu.Lock()
			h.validator.empty["remove_ads"] = true
			h.validator.mu.Unlock()

			v, err := h.engine.LoadPurchases(context.Background())
			if err != nil || len(v) != 0 {
				t.Fatalf("LoadPurchases with nothing available = %v, %v", v, err)
			}

			h.bridge.Available = []native.Purchase{{ProductID: "remove_ads", TransactionID: "t4"}}
			v, err = h.engine.LoadPurchases(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(v) != 0 {
				t.Errorf("verified = %+v, want none", v)
			}
			if got := len(h.bridge.Finished()); got != tt.finish {
				t.Errorf("finished = %d, want %d", got, tt.finish)
			}
		})
	}
}

func TestDuplicateDeliveriesCollapse(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	gate := make(chan struct{})
	h.validator.mu.Lock()
	h.validator.gate = gate
	h.validator.mu.Unlock()

	p := native.Purchase{ProductID: "remove_ads", TransactionID: "dup"}
	h.bridge.EmitPurchase(p)
	eventually(t, "first validation", func() bool { return h.validator.callCount() == 1 })
	for i := 0; i < 5; i++ {
		h.bridge.EmitPurchase(p)
	}
	close(gate)

	eventually(t, "queued validation", func() bool { return h.validator.callCount() == 2 })
	h.settled(t, "remove_ads")
	time.Sleep(20 * time.Millisecond)

	if got := h.validator.callCount(); got != 2 {
		t.Errorf("validations = %d, want 2", got)
	}
	if peak := h.validator.peak.Load(); peak != 1 {
		t.Errorf("concurrent validations = %d, want 1", peak)
	}
}

func TestRestorePurchasesProgress(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	h.bridge.Available = []native.Purchase{
		{ProductID: "remove_ads", TransactionID: "r1"},
		{ProductID: "pro_monthly", TransactionID: "r2"},
		{ProductID: "coins_100", TransactionID: "r3"},
	}

	var got [][2]int
	n, err := h.engine.RestorePurchases(context.Background(), func(processed, total int) {
		got = append(got, [2]int{processed, total})
	})
	if err != nil {
		t.Fatalf("RestorePurchases: %v", err)
	}
	if n != 3 {
		t.Errorf("restored = %d, want 3", n)
	}

	want := [][2]int{{-1, 0}, {1, 3}, {2, 3}, {3, 3}}
	if len(got) != len(want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("progress = %v, want %v", got, want)
		}
	}

	ents, err := h.engine.ListEntitlements(context.Background())
	if err != nil || len(ents) != 2 || ents[0] != "no_ads" || ents[1] != "pro" {
		t.Errorf("entitlements = %v, %v", ents, err)
	}
}

func TestRestorePurchasesAborts(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	h.bridge.Available = []native.Purchase{
		{ProductID: "remove_ads", TransactionID: "r1"},
		{ProductID: "pro_monthly", TransactionID: "r2"},
		{ProductID: "coins_100", TransactionID: "r3"},
	}
	h.validator.setErr("pro_monthly", iap.NewError(iap.CodeCommunication, iap.SeverityWarning, "down", nil))

	var got [][2]int
	n, err := h.engine.RestorePurchases(context.Background(), func(processed, total int) {
		got = append(got, [2]int{processed, total})
	})
	if !errors.Is(err, iap.ErrCommunication) {
		t.Fatalf("err = %v, want communication error", err)
	}
	if iap.SeverityOf(err) != iap.SeverityError {
		t.Errorf("severity = %v, want error", iap.SeverityOf(err))
	}
	if n != 1 {
		t.Errorf("restored = %d, want 1", n)
	}
	want := [][2]int{{-1, 0}, {1, 3}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("progress = %v, want %v", got, want)
	}
	if h.validator.callCount() != 2 {
		t.Errorf("validations = %d, want 2", h.validator.callCount())
	}
	// Foreground failures are returned, not published.
	h.flush(t)
	if errs := h.events.ofType(event.Error); len(errs) != 0 {
		t.Errorf("error events = %d, want 0", len(errs))
	}
}

func TestRestoreWithNothingAvailable(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)

	var calls int
	n, err := h.engine.RestorePurchases(context.Background(), func(int, int) { calls++ })
	if err != nil || n != 0 {
		t.Fatalf("RestorePurchases = %d, %v", n, err)
	}
	if calls != 1 {
		t.Errorf("progress calls = %d, want 1", calls)
	}
}

func TestNativeErrorsAreDeduplicated(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)
	ctx := context.Background()

	if err := h.engine.Order(ctx, catalog.Offer{ProductID: "remove_ads"}); err != nil {
		t.Fatal(err)
	}
	cancel := native.PurchaseError{Code: native.ErrCodeUserCancelled, Message: "cancelled", ProductID: "remove_ads"}
	h.bridge.EmitError(cancel)
	h.bridge.EmitError(cancel)
	h.flush(t)

	errs := h.events.ofType(event.Error)
	if len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	if !iap.IsUserCancelled(errs[0].Err) {
		t.Errorf("err = %v, want user cancellation", errs[0].Err)
	}
	var ierr *iap.Error
	if errors.As(errs[0].Err, &ierr) && ierr.LocalizedMessage != "The user cancelled the purchase." {
		t.Errorf("localized message = %q", ierr.LocalizedMessage)
	}
	if can, _ := h.engine.CanPurchase(ctx, "remove_ads"); !can {
		t.Error("pending entry kept after native error")
	}
}

func TestStartAndStop(t *testing.T) {
	t.Run("setup failure", func(t *testing.T) {
		b := nativetest.New(purchase.PlatformAppleAppStore)
		b.InitErr = errors.New("no billing")
		e := iap.New(memory.New(), b, newFakeValidator(), testCatalog)

		err := e.Start(context.Background())
		if !errors.Is(err, iap.ErrSetup) {
			t.Fatalf("err = %v, want setup error", err)
		}
		if iap.SeverityOf(err) != iap.SeverityWarning {
			t.Errorf("severity = %v, want warning", iap.SeverityOf(err))
		}
	})

	t.Run("stop removes listeners", func(t *testing.T) {
		b := nativetest.New(purchase.PlatformAppleAppStore)
		e := iap.New(memory.New(), b, newFakeValidator(), testCatalog)
		ctx := context.Background()

		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		if err := e.Start(ctx); !errors.Is(err, iap.ErrAlreadyStarted) {
			t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
		}
		if u, errs := b.Listeners(); u != 1 || errs != 1 {
			t.Fatalf("listeners = %d/%d, want 1/1", u, errs)
		}
		if err := e.Stop(); err != nil {
			t.Fatal(err)
		}
		if u, errs := b.Listeners(); u != 0 || errs != 0 {
			t.Errorf("listeners after Stop = %d/%d", u, errs)
		}
		if err := e.Start(ctx); !errors.Is(err, iap.ErrStopped) {
			t.Errorf("Start after Stop = %v, want ErrStopped", err)
		}
	})
}

func TestFlushTransactions(t *testing.T) {
	t.Run("google play", func(t *testing.T) {
		h := newHarness(t, purchase.PlatformGooglePlay)
		if err := h.engine.FlushTransactions(context.Background()); err != nil {
			t.Fatal(err)
		}
		if h.bridge.Flushed() != 1 {
			t.Errorf("flushed = %d, want 1", h.bridge.Flushed())
		}
	})

	t.Run("app store", func(t *testing.T) {
		h := newHarness(t, purchase.PlatformAppleAppStore)
		if err := h.engine.FlushTransactions(context.Background()); !errors.Is(err, iap.ErrFlushUnsupported) {
			t.Fatalf("err = %v, want ErrFlushUnsupported", err)
		}
	})
}

func TestRemoveEventListeners(t *testing.T) {
	h := newHarness(t, purchase.PlatformAppleAppStore)

	var n atomic.Int32
	handle := h.engine.AddEventListener(event.PurchaseUpdated, func(event.Event) { n.Add(1) })
	h.engine.RemoveEventListener(handle)
	h.engine.RemoveAllEventListeners(event.Error)

	h.bridge.EmitPurchase(native.Purchase{ProductID: "remove_ads", TransactionID: "t5"})
	h.settled(t, "remove_ads")
	h.flush(t)

	if n.Load() != 0 {
		t.Errorf("removed listener called %d times", n.Load())
	}
	if len(h.events.ofType(event.PurchaseUpdated)) != 1 {
		t.Error("remaining listener did not receive purchase.updated")
	}
}
