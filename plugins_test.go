package iap_test

import (
	"context"
	"sync"
	"testing"

	"github.com/xraph/iap"
	audithook "github.com/xraph/iap/audit_hook"
	"github.com/xraph/iap/native"
	"github.com/xraph/iap/natsbridge"
	"github.com/xraph/iap/purchase"
)

type subjects struct {
	mu  sync.Mutex
	got []string
}

func (s *subjects) Publish(subject string, _ []byte) error {
	s.mu.Lock()
	s.got = append(s.got, subject)
	s.mu.Unlock()
	return nil
}

func (s *subjects) has(subject string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.got {
		if g == subject {
			return true
		}
	}
	return false
}

type auditLog struct {
	mu      sync.Mutex
	actions map[string]int
}

func (a *auditLog) Record(_ context.Context, e *audithook.AuditEvent) error {
	a.mu.Lock()
	a.actions[e.Action]++
	a.mu.Unlock()
	return nil
}

func (a *auditLog) count(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.actions[action]
}

func TestPluginsObservePurchase(t *testing.T) {
	pub := &subjects{}
	audit := &auditLog{actions: map[string]int{}}

	h := newHarness(t, purchase.PlatformAppleAppStore,
		iap.WithPlugin(natsbridge.New(pub)),
		iap.WithPlugin(audithook.New(audit)),
	)

	h.bridge.EmitPurchase(native.Purchase{ProductID: "remove_ads", TransactionID: "t1"})
	h.settled(t, "remove_ads")
	h.flush(t)

	for _, action := range []string{
		audithook.ActionEngineStarted,
		audithook.ActionPurchaseVerified,
		audithook.ActionPurchaseFinished,
	} {
		if audit.count(action) != 1 {
			t.Errorf("audit %s recorded %d times, want 1", action, audit.count(action))
		}
	}
	if audit.count(audithook.ActionPendingUpdated) == 0 {
		t.Error("pending transitions not audited")
	}

	for _, subject := range []string{
		"iap.events.purchase.updated",
		"iap.events.nonConsumable.owned",
	} {
		if !pub.has(subject) {
			t.Errorf("nothing published on %s", subject)
		}
	}
}

func TestTokenManagerCreditsConsumables(t *testing.T) {
	h := newHarness(t, purchase.PlatformGooglePlay)
	m := h.engine.NewTokenManager()
	t.Cleanup(m.Close)

	h.bridge.EmitPurchase(native.Purchase{ProductID: "coins_100", TransactionID: "GPA.1", PurchaseToken: "tok"})

	eventually(t, "coins credited", func() bool {
		n, err := m.Balance(context.Background(), "coins")
		return err == nil && n == 100
	})
	eventually(t, "consumable finished", func() bool {
		for _, f := range h.bridge.Finished() {
			if f.IsConsumable && f.Purchase.TransactionID == "GPA.1" {
				return true
			}
		}
		return false
	})
}
