package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/iap/event"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/purchase"
)

func flush(t *testing.T, b *event.Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestPublishIsAsynchronous(t *testing.T) {
	b := event.NewBus()
	defer b.Close()

	var mu sync.Mutex
	publishing := true
	sawPublishing := false

	b.Subscribe(event.Error, func(event.Event) {
		mu.Lock()
		sawPublishing = publishing
		mu.Unlock()
	})

	mu.Lock()
	b.Publish(event.Failure(errors.New("x")))
	publishing = false
	mu.Unlock()

	flush(t, b)
	if sawPublishing {
		t.Error("listener ran on the publisher's stack")
	}
}

func TestRegistrationOrderAndFIFO(t *testing.T) {
	b := event.NewBus()
	defer b.Close()

	var got []string
	b.Subscribe(event.PurchaseUpdated, func(e event.Event) { got = append(got, "a:"+e.Purchase.ProductID) })
	b.Subscribe(event.PurchaseUpdated, func(e event.Event) { got = append(got, "b:"+e.Purchase.ProductID) })

	b.Publish(event.Purchase(event.PurchaseUpdated, &purchase.Verified{ProductID: "1"}))
	b.Publish(event.Purchase(event.PurchaseUpdated, &purchase.Verified{ProductID: "2"}))
	flush(t, b)

	want := []string{"a:1", "b:1", "a:2", "b:2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	b := event.NewBus()
	defer b.Close()

	delivered := 0
	b.Subscribe(event.Error, func(event.Event) { panic("listener bug") })
	b.Subscribe(event.Error, func(event.Event) { delivered++ })

	b.Publish(event.Failure(errors.New("one")))
	b.Publish(event.Failure(errors.New("two")))
	flush(t, b)

	if delivered != 2 {
		t.Errorf("second listener got %d events, want 2", delivered)
	}
}

func TestTypeFilteringAndAny(t *testing.T) {
	b := event.NewBus()
	defer b.Close()

	var pendingCount, anyCount int
	b.Subscribe(event.PendingPurchaseUpdated, func(event.Event) { pendingCount++ })
	b.Subscribe(event.Any, func(event.Event) { anyCount++ })

	b.Publish(event.Pending(pending.Purchase{ProductID: "p", Status: pending.StatusProcessing}))
	b.Publish(event.Failure(errors.New("x")))
	b.Publish(event.Subscription(event.ReasonRenewed, &purchase.Verified{ProductID: "s"}))
	flush(t, b)

	if pendingCount != 1 {
		t.Errorf("pending listener got %d, want 1", pendingCount)
	}
	if anyCount != 3 {
		t.Errorf("wildcard listener got %d, want 3", anyCount)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := event.NewBus()
	defer b.Close()

	var a, c int
	h := b.Subscribe(event.Error, func(event.Event) { a++ })
	b.Subscribe(event.Error, func(event.Event) { c++ })

	b.Unsubscribe(h)
	b.Publish(event.Failure(errors.New("x")))
	flush(t, b)

	if a != 0 || c != 1 {
		t.Errorf("a=%d c=%d, want 0 and 1", a, c)
	}
}

func TestUnsubscribeAll(t *testing.T) {
	tests := []struct {
		name  string
		types []event.Type
		want  int
	}{
		{"all", nil, 0},
		{"one type", []event.Type{event.Error}, 1},
		{"unrelated type", []event.Type{event.ConsumableRefunded}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := event.NewBus()
			defer b.Close()
			b.Subscribe(event.Error, func(event.Event) {})
			b.Subscribe(event.PurchaseUpdated, func(event.Event) {})

			b.UnsubscribeAll(tt.types...)
			if got := b.Len(); got != tt.want {
				t.Errorf("Len() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	b := event.NewBus()

	var mu sync.Mutex
	count := 0
	b.Subscribe(event.Error, func(event.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	for i := 0; i < 100; i++ {
		b.Publish(event.Failure(errors.New("x")))
	}
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 100 {
		t.Errorf("delivered %d events before close, want 100", count)
	}

	b.Publish(event.Failure(errors.New("late")))
	if err := b.Flush(context.Background()); err != nil {
		t.Errorf("Flush after Close = %v", err)
	}
	b.Close()
}

func TestEventsCarryIDs(t *testing.T) {
	e := event.Subscription(event.ReasonExpired, &purchase.Verified{ProductID: "s"})
	if e.ID.IsNil() || e.ID.Prefix() != "evt" {
		t.Errorf("unexpected id %q", e.ID)
	}
	if e.Type != event.SubscriptionUpdated || e.Reason != event.ReasonExpired {
		t.Errorf("unexpected event %+v", e)
	}
}
