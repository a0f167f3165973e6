package iap

import (
	"strconv"
	"strings"
)

// Localizer turns error codes into user-facing strings.
type Localizer interface {
	// ErrorTitle returns the alert title for an error with code.
	ErrorTitle(code Code) string
	// ErrorMessage returns the alert body for an error with code.
	ErrorMessage(code Code) string
	// PurchaseErrorMessage returns the message for a code reported by the
	// native bridge, such as E_USER_CANCELLED.
	PurchaseErrorMessage(nativeCode string) string
}

// Messages is a Localizer backed by a key/value table. Keys missing from the
// table fall back to English.
type Messages map[string]string

var _ Localizer = Messages(nil)

// English is the default message table.
var English = Messages{
	"Error":               "Error",
	"ValidationError":     "Receipt Validation Error",
	"PurchaseError_title": "Purchase Error #{0}",
	"UnknownError_title":  "Unknown Error",
	"UnknownError":        "An unknown error occurred.",

	"PurchaseError_E_UNKNOWN":                           "An unknown error occurred.",
	"PurchaseError_E_USER_CANCELLED":                    "The user cancelled the purchase.",
	"PurchaseError_E_ITEM_UNAVAILABLE":                  "The requested product is not available.",
	"PurchaseError_E_NETWORK_ERROR":                     "A network error occurred.",
	"PurchaseError_E_SERVICE_ERROR":                     "The service returned an error.",
	"PurchaseError_E_RECEIPT_FAILED":                    "Failed to validate receipt.",
	"PurchaseError_E_NOT_PREPARED":                      "The purchase cannot be completed because it has not been prepared.",
	"PurchaseError_E_DEVELOPER_ERROR":                   "An error occurred in the application.",
	"PurchaseError_E_ALREADY_OWNED":                     "This item has already been purchased.",
	"PurchaseError_E_DEFERRED_PAYMENT":                  "The payment has been deferred.",
	"PurchaseError_E_USER_ERROR":                        "An error occurred in the application.",
	"PurchaseError_E_REMOTE_ERROR":                      "A remote error occurred.",
	"PurchaseError_E_RECEIPT_FINISHED_FAILED":           "Failed to finish the transaction.",
	"PurchaseError_E_NOT_ENDED":                         "The transaction has not been ended.",
	"PurchaseError_E_BILLING_RESPONSE_JSON_PARSE_ERROR": "Failed to parse the billing response.",
	"PurchaseError_E_INTERRUPTED":                       "The operation was interrupted.",
	"PurchaseError_E_IAP_NOT_AVAILABLE":                 "In-app purchases are not available.",

	"IapticError_6777001": "Failed to initialize the in-app purchase library",
	"IapticError_6777002": "Failed to load in-app products metadata",
	"IapticError_6777003": "Failed to make a purchase",
	"IapticError_6777004": "Failed to load the purchase receipt",
	"IapticError_6777005": "Client is not allowed to issue the request",
	"IapticError_6777006": "Purchase flow has been cancelled by user",
	"IapticError_6777007": "Something is suspicious about a purchase",
	"IapticError_6777008": "The user is not allowed to make a payment",
	"IapticError_6777010": "Unknown error",
	"IapticError_6777011": "Failed to refresh the purchase receipt",
	"IapticError_6777012": "The product identifier is invalid",
	"IapticError_6777013": "Cannot finalize a transaction or acknowledge a purchase",
	"IapticError_6777014": "Failed to communicate with the server",
	"IapticError_6777015": "Subscriptions are not available",
	"IapticError_6777016": "Purchase information is missing token",
	"IapticError_6777017": "Verification of store data failed",
	"IapticError_6777018": "Bad response from the server",
	"IapticError_6777019": "Failed to refresh the store",
	"IapticError_6777020": "Payment has expired",
	"IapticError_6777021": "Failed to download the content",
	"IapticError_6777022": "Failed to update a subscription",
	"IapticError_6777023": "The requested product is not available in the store",
	"IapticError_6777024": "The user has not allowed access to Cloud service information",
	"IapticError_6777025": "The device could not connect to the network",
	"IapticError_6777026": "The user has revoked permission to use this cloud service",
	"IapticError_6777027": "The user has not yet acknowledged Apple's privacy policy",
	"IapticError_6777028": "The app is attempting to use a property without required entitlement",
	"IapticError_6777029": "The offer identifier is invalid",
	"IapticError_6777030": "The price specified in App Store Connect is no longer valid",
	"IapticError_6777031": "The signature in a payment discount is not valid",
	"IapticError_6777032": "Parameters are missing in a payment discount",
	"IapticError_6778003": "Subscription has expired",
}

// Get returns the message for key with {N} placeholders replaced by args.
func (m Messages) Get(key string, args ...string) string {
	v, ok := m[key]
	if !ok {
		v, ok = English[key]
	}
	if !ok {
		return key
	}
	for i, a := range args {
		v = strings.ReplaceAll(v, "{"+strconv.Itoa(i)+"}", a)
	}
	return v
}

func (m Messages) ErrorTitle(code Code) string {
	switch code {
	case CodeVerificationFailed, CodeValidatorSubscriptionExpired:
		return m.Get("ValidationError")
	case CodeUnknown:
		return m.Get("UnknownError_title")
	}
	return m.Get("Error")
}

func (m Messages) ErrorMessage(code Code) string {
	key := "IapticError_" + strconv.Itoa(int(code))
	if _, ok := m[key]; ok {
		return m.Get(key)
	}
	if _, ok := English[key]; ok {
		return English.Get(key)
	}
	return m.Get("UnknownError")
}

func (m Messages) PurchaseErrorMessage(nativeCode string) string {
	key := "PurchaseError_" + nativeCode
	if _, ok := m[key]; ok {
		return m.Get(key)
	}
	if _, ok := English[key]; ok {
		return English.Get(key)
	}
	return m.Get("PurchaseError_E_UNKNOWN")
}

// localize returns a copy of e with its empty localized fields filled in.
func localize(l Localizer, e *Error) *Error {
	if e == nil || l == nil {
		return e
	}
	c := *e
	if c.LocalizedTitle == "" {
		c.LocalizedTitle = l.ErrorTitle(c.Code)
	}
	if c.LocalizedMessage == "" {
		c.LocalizedMessage = l.ErrorMessage(c.Code)
	}
	return &c
}
