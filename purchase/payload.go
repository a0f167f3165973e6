package purchase

import "time"

// Payload is a purchase as the validator serializes it, both in validation
// responses and in webhook notifications. Dates are Unix milliseconds.
type Payload struct {
	ID                      string             `json:"id"`
	Platform                Platform           `json:"platform,omitempty"`
	PurchaseID              string             `json:"purchaseId,omitempty"`
	TransactionID           string             `json:"transactionId,omitempty"`
	PurchaseDate            int64              `json:"purchaseDate,omitempty"`
	ExpiryDate              int64              `json:"expiryDate,omitempty"`
	IsExpired               bool               `json:"isExpired,omitempty"`
	RenewalIntent           string             `json:"renewalIntent,omitempty"`
	RenewalIntentChangeDate int64              `json:"renewalIntentChangeDate,omitempty"`
	CancelationReason       CancelationReason  `json:"cancelationReason,omitempty"`
	IsBillingRetryPeriod    bool               `json:"isBillingRetryPeriod,omitempty"`
	IsTrialPeriod           bool               `json:"isTrialPeriod,omitempty"`
	IsIntroPeriod           bool               `json:"isIntroPeriod,omitempty"`
	DiscountID              string             `json:"discountId,omitempty"`
	PriceConsentStatus      PriceConsentStatus `json:"priceConsentStatus,omitempty"`
	LastRenewalDate         int64              `json:"lastRenewalDate,omitempty"`
}

// Verified converts the payload, stamping it with the validation time.
func (p Payload) Verified(validatedAt time.Time) *Verified {
	return &Verified{
		ProductID:               p.ID,
		Platform:                p.Platform,
		PurchaseID:              p.PurchaseID,
		TransactionID:           p.TransactionID,
		PurchaseDate:            fromMillis(p.PurchaseDate),
		ExpiryDate:              fromMillis(p.ExpiryDate),
		LastRenewalDate:         fromMillis(p.LastRenewalDate),
		IsExpired:               p.IsExpired,
		CancelationReason:       p.CancelationReason,
		IsBillingRetryPeriod:    p.IsBillingRetryPeriod,
		IsTrialPeriod:           p.IsTrialPeriod,
		IsIntroPeriod:           p.IsIntroPeriod,
		RenewalIntent:           p.RenewalIntent,
		RenewalIntentChangeDate: fromMillis(p.RenewalIntentChangeDate),
		DiscountID:              p.DiscountID,
		PriceConsentStatus:      p.PriceConsentStatus,
		ValidatedAt:             validatedAt,
	}
}

func fromMillis(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
