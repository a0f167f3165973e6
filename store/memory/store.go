package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/iap"
	"github.com/xraph/iap/purchase"
	"github.com/xraph/iap/store"
	"github.com/xraph/iap/tokens"
)

var _ store.Store = (*Store)(nil)

// Store keeps everything in process memory. It is the default backend and
// the one tests use.
type Store struct {
	mu sync.RWMutex

	// Verified purchases by product id
	purchases map[string]*purchase.Verified

	// Token transactions by store transaction id
	transactions map[string]*tokens.Transaction

	closed bool
}

func New() *Store {
	return &Store{
		purchases:    make(map[string]*purchase.Verified),
		transactions: make(map[string]*tokens.Transaction),
	}
}

// Verified purchase Store implementation
func (s *Store) AddPurchase(_ context.Context, v *purchase.Verified) error {
	if v == nil || v.ProductID == "" {
		return iap.ErrInvalidPurchase
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return iap.ErrStoreClosed
	}
	if v.IsStaleAgainst(s.purchases[v.ProductID]) {
		return iap.ErrStalePurchase
	}
	s.purchases[v.ProductID] = v.Clone()
	return nil
}

func (s *Store) GetPurchase(_ context.Context, productID string) (*purchase.Verified, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, iap.ErrStoreClosed
	}
	if v, ok := s.purchases[productID]; ok {
		return v.Clone(), nil
	}
	return nil, iap.ErrPurchaseNotFound
}

func (s *Store) ListPurchases(_ context.Context) ([]*purchase.Verified, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, iap.ErrStoreClosed
	}
	result := make([]*purchase.Verified, 0, len(s.purchases))
	for _, v := range s.purchases {
		result = append(result, v.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID < result[j].ProductID })
	return result, nil
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return iap.ErrStoreClosed
	}
	s.purchases = make(map[string]*purchase.Verified)
	return nil
}

// Token ledger Store implementation
func (s *Store) AddTokenTransaction(_ context.Context, t *tokens.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return iap.ErrStoreClosed
	}
	c := *t
	s.transactions[t.TransactionID] = &c
	return nil
}

func (s *Store) RemoveTokenTransaction(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return iap.ErrStoreClosed
	}
	delete(s.transactions, transactionID)
	return nil
}

func (s *Store) ListTokenTransactions(_ context.Context, tokenType string) ([]*tokens.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, iap.ErrStoreClosed
	}
	result := make([]*tokens.Transaction, 0)
	for _, t := range s.transactions {
		if tokenType == "" || t.TokenType == tokenType {
			c := *t
			result = append(result, &c)
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

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return iap.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
