// Package redis implements store.Store on Redis hashes.
//
// Verified purchases live in the hash "{prefix}:purchases" and token
// transactions in "{prefix}:tokens", one JSON-encoded field per product id
// or store transaction id. Stale purchase writes are rejected inside an
// optimistic WATCH/MULTI transaction.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/iap"
	"github.com/xraph/iap/purchase"
	iapstore "github.com/xraph/iap/store"
	"github.com/xraph/iap/tokens"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "iap"

// maxWatchRetries bounds optimistic-lock retries on contended writes.
const maxWatchRetries = 5

// compile-time interface check
var _ iapstore.Store = (*Store)(nil)

// Store implements store.Store using Redis.
type Store struct {
	rdb    goredis.UniversalClient
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis-backed store. The store owns rdb and closes it on
// Close.
func New(rdb goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.rdb }

func (s *Store) purchasesKey() string { return s.prefix + ":purchases" }
func (s *Store) tokensKey() string    { return s.prefix + ":tokens" }

// Migrate is a no-op; hashes are created on first write.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("iap/redis: ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

// ==================== Verified purchases ====================

func (s *Store) AddPurchase(ctx context.Context, v *purchase.Verified) error {
	if v == nil || v.ProductID == "" {
		return iap.ErrInvalidPurchase
	}
	data, err := json.Marshal(toPurchaseModel(v))
	if err != nil {
		return fmt.Errorf("iap/redis: encode purchase: %w", err)
	}

	key := s.purchasesKey()
	txf := func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, key, v.ProductID).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			current, err := decodePurchase(raw)
			if err != nil {
				return err
			}
			if v.IsStaleAgainst(current) {
				return iap.ErrStalePurchase
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, v.ProductID, data)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err = s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, iap.ErrStalePurchase) {
			return err
		}
		return fmt.Errorf("iap/redis: add purchase: %w", err)
	}
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, productID string) (*purchase.Verified, error) {
	raw, err := s.rdb.HGet(ctx, s.purchasesKey(), productID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, iap.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("iap/redis: get purchase: %w", err)
	}
	return decodePurchase(raw)
}

func (s *Store) ListPurchases(ctx context.Context) ([]*purchase.Verified, error) {
	all, err := s.rdb.HGetAll(ctx, s.purchasesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("iap/redis: list purchases: %w", err)
	}
	result := make([]*purchase.Verified, 0, len(all))
	for _, raw := range all {
		v, err := decodePurchase([]byte(raw))
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID < result[j].ProductID })
	return result, nil
}

func (s *Store) Reset(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.purchasesKey()).Err(); err != nil {
		return fmt.Errorf("iap/redis: reset: %w", err)
	}
	return nil
}

// ==================== Token ledger ====================

func (s *Store) AddTokenTransaction(ctx context.Context, t *tokens.Transaction) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("iap/redis: encode token transaction: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.tokensKey(), t.TransactionID, data).Err(); err != nil {
		return fmt.Errorf("iap/redis: add token transaction: %w", err)
	}
	return nil
}

func (s *Store) RemoveTokenTransaction(ctx context.Context, transactionID string) error {
	if err := s.rdb.HDel(ctx, s.tokensKey(), transactionID).Err(); err != nil {
		return fmt.Errorf("iap/redis: remove token transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTokenTransactions(ctx context.Context, tokenType string) ([]*tokens.Transaction, error) {
	all, err := s.rdb.HGetAll(ctx, s.tokensKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("iap/redis: list token transactions: %w", err)
	}
	result := make([]*tokens.Transaction, 0, len(all))
	for _, raw := range all {
		var t tokens.Transaction
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("iap/redis: decode token transaction: %w", err)
		}
		if tokenType == "" || t.TokenType == tokenType {
			result = append(result, &t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].TransactionID < result[j].TransactionID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}
