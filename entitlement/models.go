package entitlement

// Result is the outcome of an entitlement check.
type Result struct {
	Allowed     bool   `json:"allowed"`
	Entitlement string `json:"entitlement"`

	// ProductID is the owned product that grants the entitlement, when
	// Allowed.
	ProductID string `json:"product_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
