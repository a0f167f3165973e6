package tokens

import (
	"time"

	"github.com/xraph/iap/id"
)

// Transaction is one credit (positive amount) or debit (negative amount) of
// a token type, keyed by the store transaction that produced it.
type Transaction struct {
	ID            id.TokenID `json:"id"`
	TransactionID string     `json:"transaction_id"`
	ProductID     string     `json:"product_id,omitempty"`
	TokenType     string     `json:"token_type"`
	Amount        int64      `json:"amount"`
	Timestamp     time.Time  `json:"timestamp"`
}
