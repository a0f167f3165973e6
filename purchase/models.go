// Package purchase defines validator-confirmed purchases, the authoritative
// input for ownership, and the request/response shapes exchanged with the
// receipt validator.
package purchase

import "time"

// Platform identifies the store a purchase was made on.
type Platform string

const (
	PlatformAppleAppStore Platform = "ios-appstore"
	PlatformGooglePlay    Platform = "android-playstore"
	PlatformWindowsStore  Platform = "windows-store-transaction"
	PlatformBraintree     Platform = "braintree"
	PlatformTest          Platform = "test"
)

// ProductType is the tagged kind of a product.
type ProductType string

const (
	TypeApplication             ProductType = "application"
	TypeConsumable              ProductType = "consumable"
	TypeNonConsumable           ProductType = "non consumable"
	TypePaidSubscription        ProductType = "paid subscription"
	TypeNonRenewingSubscription ProductType = "non renewing subscription"
)

// Valid reports whether t is one of the known product types.
func (t ProductType) Valid() bool {
	switch t {
	case TypeApplication, TypeConsumable, TypeNonConsumable, TypePaidSubscription, TypeNonRenewingSubscription:
		return true
	}
	return false
}

// IsConsumable reports whether purchases of this type stay unfinished until
// they are consumed explicitly.
func (t ProductType) IsConsumable() bool { return t == TypeConsumable }

// IsSubscription reports whether the type is a subscription of either kind.
func (t ProductType) IsSubscription() bool {
	return t == TypePaidSubscription || t == TypeNonRenewingSubscription
}

// CancelationReason explains why a purchase or subscription was canceled.
// The empty value means "not canceled".
type CancelationReason string

const (
	NotCanceled                      CancelationReason = ""
	CanceledByDeveloper              CancelationReason = "Developer"
	CanceledBySystem                 CancelationReason = "System"
	CanceledSystemReplaced           CancelationReason = "System.Replaced"
	CanceledSystemProductUnavailable CancelationReason = "System.ProductUnavailable"
	CanceledSystemBillingError       CancelationReason = "System.BillingError"
	CanceledSystemDeleted            CancelationReason = "System.Deleted"
	CanceledByCustomer               CancelationReason = "Customer"
	CanceledCustomerTechnicalIssues  CancelationReason = "Customer.TechnicalIssues"
	CanceledCustomerPriceIncrease    CancelationReason = "Customer.PriceIncrease"
	CanceledCustomerCost             CancelationReason = "Customer.Cost"
	CanceledCustomerFoundBetterApp   CancelationReason = "Customer.FoundBetterApp"
	CanceledCustomerNotUsefulEnough  CancelationReason = "Customer.NotUsefulEnough"
	CanceledCustomerOtherReason      CancelationReason = "Customer.OtherReason"
	CanceledUnknown                  CancelationReason = "Unknown"
)

// IsCanceled reports whether r carries any cancelation.
func (r CancelationReason) IsCanceled() bool { return r != NotCanceled }

// IsCustomer reports whether the customer initiated the cancelation.
func (r CancelationReason) IsCustomer() bool {
	return len(r) >= len(CanceledByCustomer) && r[:len(CanceledByCustomer)] == CanceledByCustomer
}

// PriceConsentStatus tells whether the user was notified of, or agreed to,
// a price change.
type PriceConsentStatus string

const (
	PriceConsentNotified PriceConsentStatus = "Notified"
	PriceConsentAgreed   PriceConsentStatus = "Agreed"
)

// Verified is a purchase confirmed by the receipt validator. It is created
// only from a successful validation and replaced whole when a newer
// validation for the same product arrives.
type Verified struct {
	ProductID     string   `json:"id" bson:"product_id"`
	Platform      Platform `json:"platform,omitempty" bson:"platform,omitempty"`
	PurchaseID    string   `json:"purchaseId,omitempty" bson:"purchase_id,omitempty"`
	TransactionID string   `json:"transactionId,omitempty" bson:"transaction_id,omitempty"`

	PurchaseDate    *time.Time `json:"purchaseDate,omitempty" bson:"purchase_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiryDate,omitempty" bson:"expiry_date,omitempty"`
	LastRenewalDate *time.Time `json:"lastRenewalDate,omitempty" bson:"last_renewal_date,omitempty"`

	IsExpired            bool              `json:"isExpired,omitempty" bson:"is_expired"`
	CancelationReason    CancelationReason `json:"cancelationReason,omitempty" bson:"cancelation_reason,omitempty"`
	IsBillingRetryPeriod bool              `json:"isBillingRetryPeriod,omitempty" bson:"is_billing_retry_period"`
	IsTrialPeriod        bool              `json:"isTrialPeriod,omitempty" bson:"is_trial_period"`
	IsIntroPeriod        bool              `json:"isIntroPeriod,omitempty" bson:"is_intro_period"`

	RenewalIntent           string             `json:"renewalIntent,omitempty" bson:"renewal_intent,omitempty"`
	RenewalIntentChangeDate *time.Time         `json:"renewalIntentChangeDate,omitempty" bson:"renewal_intent_change_date,omitempty"`
	DiscountID              string             `json:"discountId,omitempty" bson:"discount_id,omitempty"`
	PriceConsentStatus      PriceConsentStatus `json:"priceConsentStatus,omitempty" bson:"price_consent_status,omitempty"`

	// ValidatedAt is the validator's clock at the time of the validation that
	// produced this record. Stores use it to reject stale replacements.
	ValidatedAt time.Time `json:"validatedAt" bson:"validated_at"`
}

// Owned reports whether the purchase currently grants ownership: it must not
// be expired, canceled, or past its expiry date.
func (v *Verified) Owned(now time.Time) bool {
	if v == nil {
		return false
	}
	if v.IsExpired {
		return false
	}
	if v.CancelationReason.IsCanceled() {
		return false
	}
	if v.ExpiryDate != nil && v.ExpiryDate.Before(now) {
		return false
	}
	return true
}

// Key returns the identifier used to find the native purchase that produced
// this record: the transaction id, falling back to the product id.
func (v *Verified) Key() string {
	if v.TransactionID != "" {
		return v.TransactionID
	}
	if v.PurchaseID != "" {
		return v.PurchaseID
	}
	return v.ProductID
}

// Clone returns a deep copy.
func (v *Verified) Clone() *Verified {
	if v == nil {
		return nil
	}
	c := *v
	c.PurchaseDate = cloneTime(v.PurchaseDate)
	c.ExpiryDate = cloneTime(v.ExpiryDate)
	c.LastRenewalDate = cloneTime(v.LastRenewalDate)
	c.RenewalIntentChangeDate = cloneTime(v.RenewalIntentChangeDate)
	return &c
}

// IsStaleAgainst reports whether v comes from an older validation than
// current and must not replace it.
func (v *Verified) IsStaleAgainst(current *Verified) bool {
	if current == nil || v.ValidatedAt.IsZero() || current.ValidatedAt.IsZero() {
		return false
	}
	return v.ValidatedAt.Before(current.ValidatedAt)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
