package validator

import (
	"time"

	"github.com/xraph/iap/purchase"
)

// Request types
const (
	typeApplication = "application"
)

type validateRequest struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Transaction    transaction     `json:"transaction"`
	Products       []productInfo   `json:"products"`
	AdditionalData *additionalData `json:"additionalData,omitempty"`
}

type transaction struct {
	ID   string            `json:"id,omitempty"`
	Type purchase.Platform `json:"type"`

	// Google Play
	PurchaseToken string `json:"purchaseToken,omitempty"`
	Receipt       string `json:"receipt,omitempty"`
	Signature     string `json:"signature,omitempty"`

	// App Store
	AppStoreReceipt string `json:"appStoreReceipt,omitempty"`
}

type productInfo struct {
	ID   string               `json:"id"`
	Type purchase.ProductType `json:"type"`
}

type additionalData struct {
	ApplicationUsername string `json:"applicationUsername,omitempty"`
}

// validateResponse is both the success and the error envelope.
type validateResponse struct {
	OK      bool          `json:"ok"`
	Code    int           `json:"code,omitempty"`
	Status  int           `json:"status,omitempty"`
	Message string        `json:"message,omitempty"`
	Data    *responseData `json:"data,omitempty"`
}

type responseData struct {
	ID                      string             `json:"id"`
	Collection              []purchase.Payload `json:"collection"`
	IneligibleForIntroPrice []string           `json:"ineligible_for_intro_price,omitempty"`
	Warning                 string             `json:"warning,omitempty"`
	Date                    string             `json:"date,omitempty"`
}

// result converts the response data, stamping every entry with the
// validator's date, or now when the date is missing or malformed.
func (d *responseData) result(now time.Time) *purchase.ValidationResult {
	date := now.UTC()
	if d.Date != "" {
		if t, err := time.Parse(time.RFC3339Nano, d.Date); err == nil {
			date = t.UTC()
		}
	}

	res := &purchase.ValidationResult{
		ID:                      d.ID,
		Collection:              make([]*purchase.Verified, 0, len(d.Collection)),
		IneligibleForIntroPrice: d.IneligibleForIntroPrice,
		Warning:                 d.Warning,
		Date:                    date,
	}
	for _, p := range d.Collection {
		res.Collection = append(res.Collection, p.Verified(date))
	}
	return res
}

// purchaseTokenField reads the purchaseToken property of a Google Play
// purchase JSON receipt.
type purchaseTokenField struct {
	PurchaseToken string `json:"purchaseToken"`
}
