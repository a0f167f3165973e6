package redis_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/iap"
	"github.com/xraph/iap/purchase"
	"github.com/xraph/iap/store/redis"
	"github.com/xraph/iap/tokens"
)

// newStore connects to IAP_TEST_REDIS_ADDR, skipping when it is unset.
func newStore(t *testing.T) *redis.Store {
	t.Helper()
	addr := os.Getenv("IAP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IAP_TEST_REDIS_ADDR not set")
	}
	s := redis.New(goredis.NewClient(&goredis.Options{Addr: addr}),
		redis.WithPrefix("iaptest:"+t.Name()))
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Reset(ctx)
		_ = s.Client().Del(ctx, "iaptest:"+t.Name()+":tokens").Err()
		_ = s.Close()
	})
	return s
}

func TestPurchaseLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := t0.Add(30 * 24 * time.Hour)

	if _, err := s.GetPurchase(ctx, "pro"); !errors.Is(err, iap.ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}

	v := &purchase.Verified{ProductID: "pro", TransactionID: "1", ExpiryDate: &exp, ValidatedAt: t0}
	if err := s.AddPurchase(ctx, v); err != nil {
		t.Fatalf("AddPurchase: %v", err)
	}
	got, err := s.GetPurchase(ctx, "pro")
	if err != nil {
		t.Fatalf("GetPurchase: %v", err)
	}
	if got.TransactionID != "1" || got.ExpiryDate == nil || !got.ExpiryDate.Equal(exp) {
		t.Errorf("unexpected purchase %+v", got)
	}

	stale := &purchase.Verified{ProductID: "pro", TransactionID: "0", ValidatedAt: t0.Add(-time.Hour)}
	if err := s.AddPurchase(ctx, stale); !errors.Is(err, iap.ErrStalePurchase) {
		t.Errorf("expected ErrStalePurchase, got %v", err)
	}

	list, err := s.ListPurchases(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListPurchases = %v, %v", list, err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	list, _ = s.ListPurchases(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty list after Reset, got %d", len(list))
	}
}

func TestTokenTransactions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_ = s.AddTokenTransaction(ctx, &tokens.Transaction{TransactionID: "t1", TokenType: "gems", Amount: 10, Timestamp: time.Now()})
	_ = s.AddTokenTransaction(ctx, &tokens.Transaction{TransactionID: "t2", TokenType: "coins", Amount: 3, Timestamp: time.Now()})

	gems, err := s.ListTokenTransactions(ctx, "gems")
	if err != nil || len(gems) != 1 {
		t.Fatalf("ListTokenTransactions(gems) = %v, %v", gems, err)
	}
	if err := s.RemoveTokenTransaction(ctx, "t1"); err != nil {
		t.Fatalf("RemoveTokenTransaction: %v", err)
	}
	all, _ := s.ListTokenTransactions(ctx, "")
	if len(all) != 1 || all[0].TransactionID != "t2" {
		t.Errorf("unexpected transactions %+v", all)
	}
}
