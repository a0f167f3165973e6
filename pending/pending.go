// Package pending tracks purchases that are in flight, from the moment the
// user starts them until the engine has validated and finished them.
package pending

import (
	"sort"
	"sync"
	"time"

	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/id"
)

// Status is the lifecycle stage of a pending purchase.
type Status string

const (
	StatusPurchasing Status = "purchasing"
	StatusProcessing Status = "processing"
	StatusValidating Status = "validating"
	StatusFinishing  Status = "finishing"
	StatusCompleted  Status = "completed"
)

var rank = map[Status]int{
	StatusPurchasing: 1,
	StatusProcessing: 2,
	StatusValidating: 3,
	StatusFinishing:  4,
	StatusCompleted:  5,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return rank[s] > 0 }

// Before reports whether s comes strictly earlier than o in the lifecycle.
func (s Status) Before(o Status) bool { return rank[s] < rank[o] }

// Purchase is one in-flight purchase.
type Purchase struct {
	ID        id.PendingID `json:"id"`
	ProductID string       `json:"product_id"`
	OfferID   string       `json:"offer_id,omitempty"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Tracker holds at most one Purchase per product id. It is safe for
// concurrent use. The notify callback runs outside the tracker's lock.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Purchase
	notify  func(Purchase)
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker. notify is called with a copy of the entry
// after every effective change; it may be nil.
func NewTracker(notify func(Purchase), opts ...Option) *Tracker {
	t := &Tracker{
		entries: make(map[string]*Purchase),
		notify:  notify,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add starts tracking a purchase of the offer's product in the purchasing
// state. It returns false and changes nothing when the product is already
// pending.
func (t *Tracker) Add(offer catalog.Offer) bool {
	return t.start(offer.ProductID, offer.ID, StatusPurchasing)
}

// Ensure starts tracking productID at status unless an entry exists, and
// reports whether it created one. The engine uses it for purchases that
// reach it without an Order call (restores, renewals, other devices).
func (t *Tracker) Ensure(productID string, status Status) bool {
	return t.start(productID, "", status)
}

func (t *Tracker) start(productID, offerID string, status Status) bool {
	t.mu.Lock()
	if _, ok := t.entries[productID]; ok {
		t.mu.Unlock()
		return false
	}
	now := t.now()
	p := &Purchase{
		ID:        id.NewPendingID(),
		ProductID: productID,
		OfferID:   offerID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.entries[productID] = p
	snap := *p
	t.mu.Unlock()

	t.emit(snap)
	return true
}

// Update moves the entry for productID forward to status. Backward and
// same-state transitions are ignored, as are unknown products. Moving to
// StatusCompleted removes the entry; observers are still notified once with
// the completed state.
func (t *Tracker) Update(productID string, status Status) bool {
	if !status.Valid() {
		return false
	}

	t.mu.Lock()
	p, ok := t.entries[productID]
	if !ok || !p.Status.Before(status) {
		t.mu.Unlock()
		return false
	}
	p.Status = status
	p.UpdatedAt = t.now()
	snap := *p
	if status == StatusCompleted {
		delete(t.entries, productID)
	}
	t.mu.Unlock()

	t.emit(snap)
	return true
}

// Remove drops the entry for productID without a terminal transition. It is
// used on cancellation and failure, and does not notify.
func (t *Tracker) Remove(productID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[productID]; !ok {
		return false
	}
	delete(t.entries, productID)
	return true
}

// Has reports whether productID is pending.
func (t *Tracker) Has(productID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[productID]
	return ok
}

// Status returns the current status of productID, if pending.
func (t *Tracker) Status(productID string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[productID]
	if !ok {
		return "", false
	}
	return p.Status, true
}

// Get returns a snapshot of every pending purchase, oldest first.
func (t *Tracker) Get() []Purchase {
	t.mu.Lock()
	out := make([]Purchase, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, *p)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (t *Tracker) emit(p Purchase) {
	if t.notify != nil {
		t.notify(p)
	}
}
