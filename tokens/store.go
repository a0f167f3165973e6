package tokens

import "context"

// Store persists token transactions.
type Store interface {
	// AddTokenTransaction inserts t or replaces the transaction with the same
	// TransactionID.
	AddTokenTransaction(ctx context.Context, t *Transaction) error
	// RemoveTokenTransaction deletes the transaction; removing an unknown id
	// is not an error.
	RemoveTokenTransaction(ctx context.Context, transactionID string) error
	// ListTokenTransactions returns the transactions of tokenType, or all of
	// them when tokenType is empty, oldest first.
	ListTokenTransactions(ctx context.Context, tokenType string) ([]*Transaction, error)
}
