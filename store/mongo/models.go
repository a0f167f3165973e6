package mongo

import (
	"time"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/purchase"
	"github.com/xraph/iap/tokens"
)

// ==================== Purchase models ====================

type purchaseModel struct {
	ProductID               string     `bson:"_id"`
	Platform                string     `bson:"platform,omitempty"`
	PurchaseID              string     `bson:"purchase_id,omitempty"`
	TransactionID           string     `bson:"transaction_id,omitempty"`
	PurchaseDate            *time.Time `bson:"purchase_date,omitempty"`
	ExpiryDate              *time.Time `bson:"expiry_date,omitempty"`
	LastRenewalDate         *time.Time `bson:"last_renewal_date,omitempty"`
	IsExpired               bool       `bson:"is_expired"`
	CancelationReason       string     `bson:"cancelation_reason,omitempty"`
	IsBillingRetryPeriod    bool       `bson:"is_billing_retry_period"`
	IsTrialPeriod           bool       `bson:"is_trial_period"`
	IsIntroPeriod           bool       `bson:"is_intro_period"`
	RenewalIntent           string     `bson:"renewal_intent,omitempty"`
	RenewalIntentChangeDate *time.Time `bson:"renewal_intent_change_date,omitempty"`
	DiscountID              string     `bson:"discount_id,omitempty"`
	PriceConsentStatus      string     `bson:"price_consent_status,omitempty"`
	ValidatedAt             time.Time  `bson:"validated_at"`
	UpdatedAt               time.Time  `bson:"updated_at"`
}

func toPurchaseModel(v *purchase.Verified) *purchaseModel {
	return &purchaseModel{
		ProductID:               v.ProductID,
		Platform:                string(v.Platform),
		PurchaseID:              v.PurchaseID,
		TransactionID:           v.TransactionID,
		PurchaseDate:            v.PurchaseDate,
		ExpiryDate:              v.ExpiryDate,
		LastRenewalDate:         v.LastRenewalDate,
		IsExpired:               v.IsExpired,
		CancelationReason:       string(v.CancelationReason),
		IsBillingRetryPeriod:    v.IsBillingRetryPeriod,
		IsTrialPeriod:           v.IsTrialPeriod,
		IsIntroPeriod:           v.IsIntroPeriod,
		RenewalIntent:           v.RenewalIntent,
		RenewalIntentChangeDate: v.RenewalIntentChangeDate,
		DiscountID:              v.DiscountID,
		PriceConsentStatus:      string(v.PriceConsentStatus),
		ValidatedAt:             v.ValidatedAt,
		UpdatedAt:               time.Now().UTC(),
	}
}

func fromPurchaseModel(m *purchaseModel) *purchase.Verified {
	return &purchase.Verified{
		ProductID:               m.ProductID,
		Platform:                purchase.Platform(m.Platform),
		PurchaseID:              m.PurchaseID,
		TransactionID:           m.TransactionID,
		PurchaseDate:            m.PurchaseDate,
		ExpiryDate:              m.ExpiryDate,
		LastRenewalDate:         m.LastRenewalDate,
		IsExpired:               m.IsExpired,
		CancelationReason:       purchase.CancelationReason(m.CancelationReason),
		IsBillingRetryPeriod:    m.IsBillingRetryPeriod,
		IsTrialPeriod:           m.IsTrialPeriod,
		IsIntroPeriod:           m.IsIntroPeriod,
		RenewalIntent:           m.RenewalIntent,
		RenewalIntentChangeDate: m.RenewalIntentChangeDate,
		DiscountID:              m.DiscountID,
		PriceConsentStatus:      purchase.PriceConsentStatus(m.PriceConsentStatus),
		ValidatedAt:             m.ValidatedAt,
	}
}

// ==================== Token models ====================

type tokenModel struct {
	TransactionID string    `bson:"_id"`
	ID            string    `bson:"token_id"`
	ProductID     string    `bson:"product_id,omitempty"`
	TokenType     string    `bson:"token_type"`
	Amount        int64     `bson:"amount"`
	Timestamp     time.Time `bson:"timestamp"`
}

func toTokenModel(t *tokens.Transaction) *tokenModel {
	return &tokenModel{
		TransactionID: t.TransactionID,
		ID:            t.ID.String(),
		ProductID:     t.ProductID,
		TokenType:     t.TokenType,
		Amount:        t.Amount,
		Timestamp:     t.Timestamp,
	}
}

func fromTokenModel(m *tokenModel) (*tokens.Transaction, error) {
	var tid id.TokenID
	if m.ID != "" {
		parsed, err := id.ParseTokenID(m.ID)
		if err != nil {
			return nil, err
		}
		tid = parsed
	}
	return &tokens.Transaction{
		ID:            tid,
		TransactionID: m.TransactionID,
		ProductID:     m.ProductID,
		TokenType:     m.TokenType,
		Amount:        m.Amount,
		Timestamp:     m.Timestamp,
	}, nil
}
