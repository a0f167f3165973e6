package natsbridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/xraph/iap"
	"github.com/xraph/iap/event"
	"github.com/xraph/iap/natsbridge"
	"github.com/xraph/iap/purchase"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs    []published
	err     error
	flushed int
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

func (p *fakePublisher) Flush() error {
	p.flushed++
	return nil
}

func TestOnEventPublishes(t *testing.T) {
	pub := &fakePublisher{}
	b := natsbridge.New(pub, natsbridge.WithUsername(func() string { return "user-1" }))

	e := event.Subscription(event.ReasonRenewed, &purchase.Verified{ProductID: "pro_monthly", TransactionID: "1000"})
	if err := b.OnEvent(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	if got := pub.msgs[0].subject; got != "iap.events.subscription.updated" {
		t.Errorf("subject = %q", got)
	}

	var m natsbridge.Message
	if err := json.Unmarshal(pub.msgs[0].data, &m); err != nil {
		t.Fatal(err)
	}
	if m.ID != e.ID.String() || m.Type != event.SubscriptionUpdated || m.Reason != event.ReasonRenewed {
		t.Errorf("message = %+v", m)
	}
	if m.Username != "user-1" {
		t.Errorf("username = %q", m.Username)
	}
	if m.Purchase == nil || m.Purchase.ProductID != "pro_monthly" {
		t.Errorf("purchase = %+v", m.Purchase)
	}
}

func TestOnEventErrorBody(t *testing.T) {
	pub := &fakePublisher{}
	b := natsbridge.New(pub, natsbridge.WithSubjectPrefix("shop"))

	err := iap.NewError(iap.CodeCommunication, iap.SeverityWarning, "validator unreachable", nil)
	if err := b.OnEvent(context.Background(), event.Failure(err)); err != nil {
		t.Fatal(err)
	}

	if pub.msgs[0].subject != "shop.error" {
		t.Errorf("subject = %q", pub.msgs[0].subject)
	}
	var m natsbridge.Message
	if err := json.Unmarshal(pub.msgs[0].data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Error == nil || m.Error.Code != iap.CodeCommunication || m.Error.Severity != iap.SeverityWarning.String() {
		t.Errorf("error body = %+v", m.Error)
	}
}

func TestWithTypesFilters(t *testing.T) {
	pub := &fakePublisher{}
	b := natsbridge.New(pub, natsbridge.WithTypes(event.ConsumablePurchased))
	ctx := context.Background()

	v := &purchase.Verified{ProductID: "coins_100"}
	for _, e := range []event.Event{
		event.Purchase(event.PurchaseUpdated, v),
		event.Purchase(event.ConsumablePurchased, v),
		event.New(event.Error),
	} {
		if err := b.OnEvent(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	if len(pub.msgs) != 1 || pub.msgs[0].subject != "iap.events.consumable.purchased" {
		t.Errorf("published %+v", pub.msgs)
	}
}

func TestPublishFailure(t *testing.T) {
	boom := errors.New("connection closed")
	b := natsbridge.New(&fakePublisher{err: boom})

	err := b.OnEvent(context.Background(), event.New(event.PurchaseUpdated))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestOnShutdownFlushes(t *testing.T) {
	pub := &fakePublisher{}
	b := natsbridge.New(pub)
	if err := b.OnShutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if pub.flushed != 1 {
		t.Errorf("flushed %d times, want 1", pub.flushed)
	}
}
