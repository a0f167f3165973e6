package purchase_test

import (
	"testing"
	"time"

	"github.com/xraph/iap/purchase"
)

func TestOwned(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		v    *purchase.Verified
		want bool
	}{
		{"nil", nil, false},
		{"plain", &purchase.Verified{ProductID: "p"}, true},
		{"expired flag", &purchase.Verified{ProductID: "p", IsExpired: true}, false},
		{"canceled by customer", &purchase.Verified{ProductID: "p", CancelationReason: purchase.CanceledByCustomer}, false},
		{"canceled unknown", &purchase.Verified{ProductID: "p", CancelationReason: purchase.CanceledUnknown}, false},
		{"expiry in past", &purchase.Verified{ProductID: "p", ExpiryDate: &past}, false},
		{"expiry equals now", &purchase.Verified{ProductID: "p", ExpiryDate: &now}, true},
		{"expiry in future", &purchase.Verified{ProductID: "p", ExpiryDate: &future}, true},
		{"future expiry but flagged", &purchase.Verified{ProductID: "p", ExpiryDate: &future, IsExpired: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Owned(now); got != tt.want {
				t.Errorf("Owned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCancelationReasonIsCustomer(t *testing.T) {
	if !purchase.CanceledCustomerCost.IsCustomer() {
		t.Error("Customer.Cost should be a customer cancelation")
	}
	if purchase.CanceledSystemReplaced.IsCustomer() {
		t.Error("System.Replaced should not be a customer cancelation")
	}
	if purchase.NotCanceled.IsCanceled() {
		t.Error("empty reason should not be canceled")
	}
}

func TestIsStaleAgainst(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	older := &purchase.Verified{ProductID: "p", ValidatedAt: t0}
	newer := &purchase.Verified{ProductID: "p", ValidatedAt: t0.Add(time.Minute)}

	if !older.IsStaleAgainst(newer) {
		t.Error("older validation should be stale against newer")
	}
	if newer.IsStaleAgainst(older) {
		t.Error("newer validation should not be stale")
	}
	if older.IsStaleAgainst(nil) {
		t.Error("nothing is stale against a missing entry")
	}
	if (&purchase.Verified{ProductID: "p"}).IsStaleAgainst(newer) {
		t.Error("an undated record is never considered stale")
	}
}

func TestCloneIsDeep(t *testing.T) {
	exp := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	v := &purchase.Verified{ProductID: "p", ExpiryDate: &exp}
	c := v.Clone()
	*c.ExpiryDate = c.ExpiryDate.Add(time.Hour)
	if !v.ExpiryDate.Equal(exp) {
		t.Error("Clone shares the expiry date pointer")
	}
}

func TestValidationResultFind(t *testing.T) {
	r := &purchase.ValidationResult{
		Collection: []*purchase.Verified{{ProductID: "a"}, {ProductID: "b"}},
	}
	if got := r.Find("b"); got == nil || got.ProductID != "b" {
		t.Errorf("Find(b) = %v", got)
	}
	if got := r.Find("c"); got != nil {
		t.Errorf("Find(c) = %v, want nil", got)
	}
	var nilResult *purchase.ValidationResult
	if nilResult.Find("a") != nil {
		t.Error("nil result should find nothing")
	}
}
