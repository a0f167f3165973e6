package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/iap"
	"github.com/xraph/iap/purchase"
	iapstore "github.com/xraph/iap/store"
	"github.com/xraph/iap/tokens"
)

// Collection name constants.
const (
	colPurchases = "iap_purchases"
	colTokens    = "iap_token_transactions"
)

// compile-time interface check
var _ iapstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	db *mongo.Database
}

// New creates a new MongoDB store on db.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Connect dials uri and returns a store on the named database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("iap/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // best-effort cleanup after failed ping
		return nil, fmt.Errorf("iap/mongo: ping: %w", err)
	}
	return New(client.Database(database)), nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all iap collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("iap/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Client().Disconnect(context.Background())
}

// ==================== Purchase Store ====================

// AddPurchase upserts v. The filter only matches an entry validated no
// later than v, so a newer stored entry turns the upsert into an insert that
// collides on _id.
func (s *Store) AddPurchase(ctx context.Context, v *purchase.Verified) error {
	if v == nil || v.ProductID == "" {
		return iap.ErrInvalidPurchase
	}

	filter := bson.M{"_id": v.ProductID}
	if !v.ValidatedAt.IsZero() {
		filter["validated_at"] = bson.M{"$lte": v.ValidatedAt}
	}

	_, err := s.db.Collection(colPurchases).ReplaceOne(ctx, filter, toPurchaseModel(v),
		options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return iap.ErrStalePurchase
		}
		return fmt.Errorf("iap/mongo: add purchase: %w", err)
	}
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, productID string) (*purchase.Verified, error) {
	var m purchaseModel
	err := s.db.Collection(colPurchases).FindOne(ctx, bson.M{"_id": productID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, iap.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("iap/mongo: get purchase: %w", err)
	}
	return fromPurchaseModel(&m), nil
}

func (s *Store) ListPurchases(ctx context.Context) ([]*purchase.Verified, error) {
	cur, err := s.db.Collection(colPurchases).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("iap/mongo: list purchases: %w", err)
	}

	var models []purchaseModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("iap/mongo: list purchases: %w", err)
	}

	result := make([]*purchase.Verified, len(models))
	for i := range models {
		result[i] = fromPurchaseModel(&models[i])
	}
	return result, nil
}

func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.Collection(colPurchases).DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("iap/mongo: reset: %w", err)
	}
	return nil
}

// ==================== Token Store ====================

func (s *Store) AddTokenTransaction(ctx context.Context, t *tokens.Transaction) error {
	_, err := s.db.Collection(colTokens).ReplaceOne(ctx, bson.M{"_id": t.TransactionID}, toTokenModel(t),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("iap/mongo: add token transaction: %w", err)
	}
	return nil
}

func (s *Store) RemoveTokenTransaction(ctx context.Context, transactionID string) error {
	if _, err := s.db.Collection(colTokens).DeleteOne(ctx, bson.M{"_id": transactionID}); err != nil {
		return fmt.Errorf("iap/mongo: remove token transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTokenTransactions(ctx context.Context, tokenType string) ([]*tokens.Transaction, error) {
	filter := bson.M{}
	if tokenType != "" {
		filter["token_type"] = tokenType
	}

	cur, err := s.db.Collection(colTokens).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("iap/mongo: list token transactions: %w", err)
	}

	var models []tokenModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("iap/mongo: list token transactions: %w", err)
	}

	result := make([]*tokens.Transaction, 0, len(models))
	for i := range models {
		t, err := fromTokenModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("iap/mongo: decode token transaction: %w", err)
		}
		result = append(result, t)
	}
	return result, nil
}

// ==================== Helpers ====================

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all iap collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPurchases: {
			{Keys: bson.D{{Key: "transaction_id", Value: 1}}},
			{Keys: bson.D{{Key: "expiry_date", Value: 1}}},
		},
		colTokens: {
			{Keys: bson.D{{Key: "token_type", Value: 1}, {Key: "timestamp", Value: 1}}},
			{
				Keys:    bson.D{{Key: "token_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
	}
}
