package pending_test

import (
	"sync"
	"testing"

	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/pending"
)

type recorder struct {
	mu     sync.Mutex
	events []pending.Purchase
}

func (r *recorder) notify(p pending.Purchase) {
	r.mu.Lock()
	r.events = append(r.events, p)
	r.mu.Unlock()
}

func (r *recorder) all() []pending.Purchase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pending.Purchase(nil), r.events...)
}

func TestAddIsIdempotent(t *testing.T) {
	rec := &recorder{}
	tr := pending.NewTracker(rec.notify)

	offer := catalog.Offer{ID: "monthly", ProductID: "pro"}
	if !tr.Add(offer) {
		t.Fatal("first Add should create an entry")
	}
	if tr.Add(offer) {
		t.Error("second Add should be a no-op")
	}

	got := tr.Get()
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Status != pending.StatusPurchasing {
		t.Errorf("status = %q, want purchasing", got[0].Status)
	}
	if got[0].ID.IsNil() {
		t.Error("entry should carry an attempt id")
	}
	if n := len(rec.all()); n != 1 {
		t.Errorf("expected 1 notification, got %d", n)
	}
}

func TestCompletedRemovesAndNotifiesOnce(t *testing.T) {
	rec := &recorder{}
	tr := pending.NewTracker(rec.notify)
	tr.Add(catalog.Offer{ProductID: "gems"})

	before := len(rec.all())
	if !tr.Update("gems", pending.StatusCompleted) {
		t.Fatal("Update to completed should succeed")
	}
	if tr.Has("gems") {
		t.Error("completed entry should be removed")
	}
	if len(tr.Get()) != 0 {
		t.Error("Get should not return completed entries")
	}

	events := rec.all()[before:]
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(events))
	}
	if events[0].Status != pending.StatusCompleted || events[0].ProductID != "gems" {
		t.Errorf("unexpected final event %+v", events[0])
	}

	if tr.Update("gems", pending.StatusCompleted) {
		t.Error("second completion should be ignored")
	}
	if len(rec.all()[before:]) != 1 {
		t.Error("second completion should not notify")
	}
}

func TestTransitionsAreMonotonic(t *testing.T) {
	tests := []struct {
		name string
		from pending.Status
		to   pending.Status
		want bool
	}{
		{"forward one", pending.StatusPurchasing, pending.StatusProcessing, true},
		{"forward skip", pending.StatusPurchasing, pending.StatusFinishing, true},
		{"same", pending.StatusValidating, pending.StatusValidating, false},
		{"backward", pending.StatusFinishing, pending.StatusValidating, false},
		{"unknown", pending.StatusProcessing, pending.Status("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := pending.NewTracker(nil)
			tr.Ensure("p", tt.from)
			if got := tr.Update("p", tt.to); got != tt.want {
				t.Errorf("Update(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
			status, _ := tr.Status("p")
			want := tt.from
			if tt.want {
				want = tt.to
			}
			if status != want {
				t.Errorf("status = %q, want %q", status, want)
			}
		})
	}
}

func TestUpdateUnknownProduct(t *testing.T) {
	rec := &recorder{}
	tr := pending.NewTracker(rec.notify)
	if tr.Update("missing", pending.StatusValidating) {
		t.Error("Update on unknown product should report false")
	}
	if len(rec.all()) != 0 {
		t.Error("Update on unknown product should not notify")
	}
}

func TestRemove(t *testing.T) {
	rec := &recorder{}
	tr := pending.NewTracker(rec.notify)
	tr.Add(catalog.Offer{ProductID: "pro"})

	if !tr.Remove("pro") {
		t.Fatal("Remove should report true for an existing entry")
	}
	if tr.Has("pro") {
		t.Error("entry should be gone")
	}
	if tr.Remove("pro") {
		t.Error("second Remove should report false")
	}
	if !tr.Add(catalog.Offer{ProductID: "pro"}) {
		t.Error("product should be purchasable again after Remove")
	}
}

func TestEnsureDoesNotOverride(t *testing.T) {
	tr := pending.NewTracker(nil)
	tr.Add(catalog.Offer{ProductID: "pro"})
	if tr.Ensure("pro", pending.StatusProcessing) {
		t.Error("Ensure should not replace an existing entry")
	}
	if s, _ := tr.Status("pro"); s != pending.StatusPurchasing {
		t.Errorf("status = %q, want purchasing", s)
	}
}
