// Package tokens keeps a ledger of virtual currency credited by consumable
// purchases.
//
// A Manager listens for consumable.purchased events, credits the token
// amount configured on the catalog product and, unless disabled, consumes
// the purchase so the store lets the user buy it again. Refunds remove the
// credit. Credits are keyed by store transaction, so a purchase delivered
// twice is credited once.
package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/event"
	"github.com/xraph/iap/id"
	"github.com/xraph/iap/purchase"
)

// Source is the part of the purchase engine the manager depends on.
// *iap.Engine implements it.
type Source interface {
	AddEventListener(t event.Type, l event.Listener) event.Handle
	RemoveEventListener(h event.Handle)
	Consume(ctx context.Context, v *purchase.Verified) error
	Catalog() *catalog.Catalog
}

// Manager credits tokens for consumable purchases.
type Manager struct {
	source  Source
	store   Store
	logger  *slog.Logger
	consume bool
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	handles []event.Handle
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithConsumePurchases controls whether credited purchases are consumed.
// Defaults to true.
func WithConsumePurchases(consume bool) Option {
	return func(m *Manager) { m.consume = consume }
}

// WithTimeout bounds the store and consume calls made for one event.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithClock sets the time used when a purchase has no purchase date.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager and subscribes it to src.
func NewManager(src Source, store Store, opts ...Option) *Manager {
	m := &Manager{
		source:  src,
		store:   store,
		logger:  slog.Default(),
		consume: true,
		timeout: 30 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.handles = []event.Handle{
		src.AddEventListener(event.ConsumablePurchased, m.onPurchased),
		src.AddEventListener(event.ConsumableRefunded, m.onRefunded),
	}
	return m
}

// Close unsubscribes the manager.
func (m *Manager) Close() {
	m.mu.Lock()
	handles := m.handles
	m.handles = nil
	m.mu.Unlock()

	for _, h := range handles {
		m.source.RemoveEventListener(h)
	}
}

func (m *Manager) onPurchased(e event.Event) {
	v := e.Purchase
	if v == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.Credit(ctx, v); err != nil {
		m.logger.Error("tokens: credit failed",
			"product_id", v.ProductID,
			"transaction_id", v.Key(),
			"error", err,
		)
		return
	}

	if m.consume {
		if err := m.source.Consume(ctx, v); err != nil {
			m.logger.Warn("tokens: consume failed",
				"product_id", v.ProductID,
				"transaction_id", v.Key(),
				"error", err,
			)
		}
	}
}

func (m *Manager) onRefunded(e event.Event) {
	v := e.Purchase
	if v == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.store.RemoveTokenTransaction(ctx, v.Key()); err != nil {
		m.logger.Error("tokens: refund failed",
			"product_id", v.ProductID,
			"transaction_id", v.Key(),
			"error", err,
		)
		return
	}
	m.logger.Info("tokens: credit removed after refund",
		"product_id", v.ProductID,
		"transaction_id", v.Key(),
	)
}

// Credit records the tokens granted by v. Products without a token type or
// amount are ignored, and a transaction already credited is left as is.
func (m *Manager) Credit(ctx context.Context, v *purchase.Verified) error {
	product, ok := m.source.Catalog().Get(v.ProductID)
	if !ok || product.TokenType == "" || product.TokenAmount == 0 {
		return nil
	}

	key := v.Key()
	has, err := m.Has(ctx, key)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	ts := m.now().UTC()
	if v.PurchaseDate != nil {
		ts = *v.PurchaseDate
	}
	t := &Transaction{
		ID:            id.NewTokenID(),
		TransactionID: key,
		ProductID:     v.ProductID,
		TokenType:     product.TokenType,
		Amount:        product.TokenAmount,
		Timestamp:     ts,
	}
	if err := m.store.AddTokenTransaction(ctx, t); err != nil {
		return fmt.Errorf("tokens: add transaction: %w", err)
	}

	m.logger.Info("tokens: credited",
		"product_id", v.ProductID,
		"transaction_id", key,
		"token_type", t.TokenType,
		"amount", t.Amount,
	)
	return nil
}

// Balance returns the sum of every transaction of tokenType.
func (m *Manager) Balance(ctx context.Context, tokenType string) (int64, error) {
	txs, err := m.store.ListTokenTransactions(ctx, tokenType)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, t := range txs {
		total += t.Amount
	}
	return total, nil
}

// Balances returns the balance of every token type.
func (m *Manager) Balances(ctx context.Context) (map[string]int64, error) {
	txs, err := m.store.ListTokenTransactions(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, t := range txs {
		out[t.TokenType] += t.Amount
	}
	return out, nil
}

// Has reports whether transactionID was credited.
func (m *Manager) Has(ctx context.Context, transactionID string) (bool, error) {
	txs, err := m.store.ListTokenTransactions(ctx, "")
	if err != nil {
		return false, err
	}
	for _, t := range txs {
		if t.TransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

// Transactions returns the transactions of tokenType, or all of them when
// tokenType is empty, oldest first.
func (m *Manager) Transactions(ctx context.Context, tokenType string) ([]*Transaction, error) {
	txs, err := m.store.ListTokenTransactions(ctx, tokenType)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})
	return txs, nil
}
