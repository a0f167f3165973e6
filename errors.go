package iap

import (
	"errors"
	"fmt"
)

// Sentinel errors for store and lifecycle failures.
var (
	// Store errors
	ErrPurchaseNotFound = errors.New("iap: purchase not found")
	ErrStalePurchase    = errors.New("iap: purchase is older than the stored validation")
	ErrStoreClosed      = errors.New("iap: store is closed")
	ErrInvalidPurchase  = errors.New("iap: invalid purchase")

	// Engine errors
	ErrNotStarted                = errors.New("iap: engine not started")
	ErrAlreadyStarted            = errors.New("iap: engine already started")
	ErrStopped                   = errors.New("iap: engine stopped")
	ErrNativePurchaseUnavailable = errors.New("iap: native purchase no longer cached")
	ErrMissingTransaction        = errors.New("iap: purchase has no transaction id")
	ErrUnsupportedPlatform       = errors.New("iap: unsupported platform")
	ErrFlushUnsupported          = errors.New("iap: bridge cannot flush transactions")
)

// Severity tells presentation layers how loudly to surface an error.
type Severity int

const (
	// SeverityInfo is logged only; never shown to the user.
	SeverityInfo Severity = iota
	// SeverityWarning deserves a toast or a dismissible alert.
	SeverityWarning
	// SeverityError blocks the flow with an alert.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Code is a numeric error code shared with the receipt validator.
type Code int

const codeBase = 6777000

const (
	CodeSetup                               Code = codeBase + 1
	CodeLoad                                Code = codeBase + 2
	CodePurchase                            Code = codeBase + 3
	CodeLoadReceipts                        Code = codeBase + 4
	CodeClientInvalid                       Code = codeBase + 5
	CodePaymentCancelled                    Code = codeBase + 6
	CodePaymentInvalid                      Code = codeBase + 7
	CodePaymentNotAllowed                   Code = codeBase + 8
	CodeUnknown                             Code = codeBase + 10
	CodeRefreshReceipts                     Code = codeBase + 11
	CodeInvalidProductID                    Code = codeBase + 12
	CodeFinish                              Code = codeBase + 13
	CodeCommunication                       Code = codeBase + 14
	CodeSubscriptionsNotAvailable           Code = codeBase + 15
	CodeMissingToken                        Code = codeBase + 16
	CodeVerificationFailed                  Code = codeBase + 17
	CodeBadResponse                         Code = codeBase + 18
	CodeRefresh                             Code = codeBase + 19
	CodePaymentExpired                      Code = codeBase + 20
	CodeDownload                            Code = codeBase + 21
	CodeSubscriptionUpdateNotAvailable      Code = codeBase + 22
	CodeProductNotAvailable                 Code = codeBase + 23
	CodeCloudServicePermissionDenied        Code = codeBase + 24
	CodeCloudServiceNetworkConnectionFailed Code = codeBase + 25
	CodeCloudServiceRevoked                 Code = codeBase + 26
	CodePrivacyAcknowledgementRequired      Code = codeBase + 27
	CodeUnauthorizedRequestData             Code = codeBase + 28
	CodeInvalidOfferIdentifier              Code = codeBase + 29
	CodeInvalidOfferPrice                   Code = codeBase + 30
	CodeInvalidSignature                    Code = codeBase + 31
	CodeMissingOfferParams                  Code = codeBase + 32

	// CodeValidatorSubscriptionExpired is returned by older validators for
	// an expired subscription. It is treated as an empty successful
	// validation.
	CodeValidatorSubscriptionExpired Code = 6778003
)

// Error is the engine's typed error. Every error surfaced by engine
// operations and error events is an *Error.
type Error struct {
	Code     Code
	Severity Severity
	// Status is the HTTP status of a validator call, or 0.
	Status  int
	Message string

	LocalizedTitle   string
	LocalizedMessage string

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.LocalizedMessage
	}
	if e.Err != nil {
		if msg == "" {
			return fmt.Sprintf("iap: #%d: %v", e.Code, e.Err)
		}
		return fmt.Sprintf("iap: #%d: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("iap: #%d: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so the code sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

// Code sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrSetup         = &Error{Code: CodeSetup}
	ErrPurchase      = &Error{Code: CodePurchase}
	ErrCommunication = &Error{Code: CodeCommunication}
	ErrBadResponse   = &Error{Code: CodeBadResponse}
	ErrFinish        = &Error{Code: CodeFinish}
	ErrUnknown       = &Error{Code: CodeUnknown}
	ErrMissingToken  = &Error{Code: CodeMissingToken}
)

// NewError creates an *Error.
func NewError(code Code, severity Severity, msg string, err error) *Error {
	return &Error{Code: code, Severity: severity, Message: msg, Err: err}
}

// AsError converts err into an *Error. Existing *Error values are returned
// as-is with their severity raised to at least min; anything else is wrapped
// with the fallback code.
func AsError(err error, min Severity, fallback Code, msg string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Severity < min {
			c := *e
			c.Severity = min
			return &c
		}
		return e
	}
	return &Error{Code: fallback, Severity: min, Message: msg, Err: err}
}

// CodeOf returns the code of err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// SeverityOf returns the severity of err, or SeverityError for errors that
// are not *Error.
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityError
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "iap: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("iap: %d errors occurred", len(e.Errors))
}

// Unwrap exposes every wrapped error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns e when it holds errors, nil otherwise.
func (e MultiError) ErrorOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPurchaseNotFound) ||
		errors.Is(err, ErrNativePurchaseUnavailable)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCommunication) ||
		errors.Is(err, ErrBadResponse) ||
		errors.Is(err, ErrFinish)
}

// IsUserCancelled reports whether err stems from the user dismissing the
// purchase flow.
func IsUserCancelled(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == CodePaymentCancelled {
			return true
		}
		if e.Code == CodePurchase && e.Severity == SeverityInfo {
			return true
		}
	}
	return false
}
