package catalog

import "github.com/xraph/iap/purchase"

// ProductType is the tagged kind of a product. The type lives in the
// purchase package because validation requests carry it too.
type ProductType = purchase.ProductType

const (
	TypeApplication             = purchase.TypeApplication
	TypeConsumable              = purchase.TypeConsumable
	TypeNonConsumable           = purchase.TypeNonConsumable
	TypePaidSubscription        = purchase.TypePaidSubscription
	TypeNonRenewingSubscription = purchase.TypeNonRenewingSubscription
)

type Product struct {
	ID           string      `json:"id" yaml:"id"`
	Type         ProductType `json:"type" yaml:"type"`
	Title        string      `json:"title,omitempty" yaml:"title,omitempty"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	Entitlements []string    `json:"entitlements,omitempty" yaml:"entitlements,omitempty"`

	// TokenType and TokenAmount describe what a consumable credits to the
	// token ledger, e.g. 100 "gems".
	TokenType   string `json:"token_type,omitempty" yaml:"token_type,omitempty"`
	TokenAmount int64  `json:"token_amount,omitempty" yaml:"token_amount,omitempty"`

	Offers   []Offer           `json:"offers,omitempty" yaml:"offers,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// HasEntitlement reports whether owning the product unlocks tag.
func (p *Product) HasEntitlement(tag string) bool {
	for _, e := range p.Entitlements {
		if e == tag {
			return true
		}
	}
	return false
}

// Offer identifies a purchasable unit of a product.
type Offer struct {
	ID        string            `json:"id" yaml:"id"`
	ProductID string            `json:"product_id" yaml:"product_id"`
	Platform  purchase.Platform `json:"platform" yaml:"platform"`

	// OfferToken is the Play Billing subscription offer token.
	OfferToken    string         `json:"offer_token,omitempty" yaml:"offer_token,omitempty"`
	PricingPhases []PricingPhase `json:"pricing_phases,omitempty" yaml:"pricing_phases,omitempty"`
}

type PaymentMode string

const (
	PaymentPayAsYouGo PaymentMode = "PayAsYouGo"
	PaymentUpFront    PaymentMode = "UpFront"
	PaymentFreeTrial  PaymentMode = "FreeTrial"
)

type RecurrenceMode string

const (
	RecurrenceNonRecurring    RecurrenceMode = "NON_RECURRING"
	RecurrenceFiniteRecurring RecurrenceMode = "FINITE_RECURRING"
	RecurrenceInfinite        RecurrenceMode = "INFINITE_RECURRING"
)

// PricingPhase is one step of an offer's price schedule, as reported by the
// store (already localized).
type PricingPhase struct {
	Price          string         `json:"price" yaml:"price"`
	PriceMicros    int64          `json:"price_micros" yaml:"price_micros"`
	Currency       string         `json:"currency" yaml:"currency"`
	BillingPeriod  string         `json:"billing_period,omitempty" yaml:"billing_period,omitempty"` // ISO 8601, e.g. P1M
	BillingCycles  int            `json:"billing_cycles,omitempty" yaml:"billing_cycles,omitempty"`
	RecurrenceMode RecurrenceMode `json:"recurrence_mode,omitempty" yaml:"recurrence_mode,omitempty"`
	PaymentMode    PaymentMode    `json:"payment_mode,omitempty" yaml:"payment_mode,omitempty"`
}

// IsFree reports whether the phase is a free trial.
func (p PricingPhase) IsFree() bool {
	return p.PriceMicros == 0 || p.PaymentMode == PaymentFreeTrial
}
