package purchase

import "time"

// ValidationData is everything the validator needs to check one native
// purchase.
type ValidationData struct {
	ProductID     string
	ProductType   ProductType
	Platform      Platform
	TransactionID string

	// Receipt is the opaque payload reported by the store: the unified
	// App Store receipt on iOS or the purchase JSON on Google Play.
	Receipt       string
	PurchaseToken string
	Signature     string

	ApplicationUsername string
}

// ValidationResult is a successful validator response.
type ValidationResult struct {
	ID                      string      `json:"id"`
	Collection              []*Verified `json:"collection"`
	IneligibleForIntroPrice []string    `json:"ineligible_for_intro_price,omitempty"`
	Warning                 string      `json:"warning,omitempty"`
	Date                    time.Time   `json:"date"`
}

// Find returns the collection entry for productID, or nil when the receipt
// is valid but reports no purchase of that product.
func (r *ValidationResult) Find(productID string) *Verified {
	if r == nil {
		return nil
	}
	for _, v := range r.Collection {
		if v != nil && v.ProductID == productID {
			return v
		}
	}
	return nil
}

// IneligibleForIntro reports whether the validator flagged productID as not
// eligible for an introductory price.
func (r *ValidationResult) IneligibleForIntro(productID string) bool {
	if r == nil {
		return false
	}
	for _, id := range r.IneligibleForIntroPrice {
		if id == productID {
			return true
		}
	}
	return false
}
