package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/iap/purchase"
)

// purchaseModel is the stored form of a verified purchase. It keeps the
// field names stable even if purchase.Verified's JSON tags change.
type purchaseModel struct {
	ProductID               string     `json:"product_id"`
	Platform                string     `json:"platform,omitempty"`
	PurchaseID              string     `json:"purchase_id,omitempty"`
	TransactionID           string     `json:"transaction_id,omitempty"`
	PurchaseDate            *time.Time `json:"purchase_date,omitempty"`
	ExpiryDate              *time.Time `json:"expiry_date,omitempty"`
	LastRenewalDate         *time.Time `json:"last_renewal_date,omitempty"`
	IsExpired               bool       `json:"is_expired,omitempty"`
	CancelationReason       string     `json:"cancelation_reason,omitempty"`
	IsBillingRetryPeriod    bool       `json:"is_billing_retry_period,omitempty"`
	IsTrialPeriod           bool       `json:"is_trial_period,omitempty"`
	IsIntroPeriod           bool       `json:"is_intro_period,omitempty"`
	RenewalIntent           string     `json:"renewal_intent,omitempty"`
	RenewalIntentChangeDate *time.Time `json:"renewal_intent_change_date,omitempty"`
	DiscountID              string     `json:"discount_id,omitempty"`
	PriceConsentStatus      string     `json:"price_consent_status,omitempty"`
	ValidatedAt             time.Time  `json:"validated_at"`
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

func decodePurchase(raw []byte) (*purchase.Verified, error) {
	var m purchaseModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("iap/redis: decode purchase: %w", err)
	}
	return fromPurchaseModel(&m), nil
}
