// Package validator is the HTTP client of the remote receipt validator.
//
// A Client turns a native purchase into a validation request, posts it with
// Basic authentication and maps the response into a
// purchase.ValidationResult or an *iap.Error from the shared code taxonomy.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/xraph/iap"
	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/purchase"
)

// DefaultBaseURL is the hosted validator.
const DefaultBaseURL = "https://validator.iaptic.com"

// DefaultTimeout bounds a validation request.
const DefaultTimeout = 30 * time.Second

// Config holds the validator credentials.
type Config struct {
	// AppName and PublicKey form the Basic auth credentials.
	AppName   string `json:"app_name" mapstructure:"app_name" yaml:"app_name"`
	PublicKey string `json:"public_key" mapstructure:"public_key" yaml:"public_key"`

	// BaseURL overrides DefaultBaseURL.
	BaseURL string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`

	// IOSBundleID, when set, makes App Store validations target the
	// application receipt instead of a single product.
	IOSBundleID string `json:"ios_bundle_id" mapstructure:"ios_bundle_id" yaml:"ios_bundle_id"`

	Timeout time.Duration `json:"timeout" mapstructure:"timeout" yaml:"timeout"`
}

// Client validates receipts. It implements iap.Validator.
type Client struct {
	config   Config
	http     *resty.Client
	products []productInfo
	logger   *slog.Logger
	now      func() time.Time
}

var _ iap.Validator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithCatalog sends the catalog's products with every request so the
// validator knows their types.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *Client) {
		c.products = c.products[:0]
		for _, p := range cat.List() {
			c.products = append(c.products, productInfo{ID: p.ID, Type: p.Type})
		}
	}
}

// WithHTTPClient replaces the underlying resty client.
func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) { c.http = rc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock sets the time used when the validator omits its date.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a validator client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		config: cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = resty.New()
	}
	c.http.
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.AppName, cfg.PublicKey).
		SetHeader("Content-Type", "application/json")

	return c
}

// Validate posts data to the validator.
func (c *Client) Validate(ctx context.Context, data purchase.ValidationData) (*purchase.ValidationResult, error) {
	req, err := c.buildRequest(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/validate")
	if err != nil {
		return nil, iap.NewError(iap.CodeCommunication, iap.SeverityWarning, "validator request failed", err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		ierr := iap.NewError(iap.CodeCommunication, iap.SeverityWarning, statusMessage(resp.StatusCode()), nil)
		ierr.Status = resp.StatusCode()
		return nil, ierr
	}

	var body validateResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		ierr := iap.NewError(iap.CodeBadResponse, iap.SeverityWarning, "failed to parse response", err)
		ierr.Status = resp.StatusCode()
		return nil, ierr
	}

	if !body.OK {
		if iap.Code(body.Code) == iap.CodeValidatorSubscriptionExpired {
			c.logger.Debug("iap/validator: subscription expired, empty result",
				"product_id", data.ProductID,
			)
			return &purchase.ValidationResult{
				ID:         req.ID,
				Collection: []*purchase.Verified{},
				Date:       c.now().UTC(),
			}, nil
		}
		return nil, c.rejection(body)
	}

	if body.Data == nil {
		return nil, iap.NewError(iap.CodeBadResponse, iap.SeverityWarning, "response has no data", nil)
	}
	return body.Data.result(c.now()), nil
}

func (c *Client) buildRequest(data purchase.ValidationData) (*validateRequest, error) {
	req := &validateRequest{
		ID:       data.ProductID,
		Type:     string(data.ProductType),
		Products: c.products,
	}
	if req.Products == nil {
		req.Products = []productInfo{}
	}
	if data.ApplicationUsername != "" {
		req.AdditionalData = &additionalData{ApplicationUsername: data.ApplicationUsername}
	}

	switch data.Platform {
	case purchase.PlatformGooglePlay:
		req.Transaction = transaction{
			ID:            data.TransactionID,
			Type:          purchase.PlatformGooglePlay,
			PurchaseToken: purchaseToken(data),
			Receipt:       data.Receipt,
			Signature:     data.Signature,
		}
		if req.Transaction.PurchaseToken == "" {
			return nil, iap.NewError(iap.CodeMissingToken, iap.SeverityWarning, "purchase has no token", nil)
		}

	case purchase.PlatformAppleAppStore:
		if c.config.IOSBundleID != "" {
			req.ID = c.config.IOSBundleID
		}
		req.Transaction = transaction{
			ID:              data.TransactionID,
			Type:            purchase.PlatformAppleAppStore,
			AppStoreReceipt: data.Receipt,
		}

	default:
		return nil, iap.NewError(iap.CodeUnknown, iap.SeverityError,
			fmt.Sprintf("unsupported platform %q", data.Platform), iap.ErrUnsupportedPlatform)
	}

	if req.ID != data.ProductID {
		req.Type = typeApplication
	}
	return req, nil
}

// rejection maps an ok:false body to an error.
func (c *Client) rejection(body validateResponse) *iap.Error {
	code := iap.Code(body.Code)
	if code == 0 {
		code = iap.CodeUnknown
	}
	msg := body.Message
	if msg == "" {
		msg = "Receipt validation failed"
	}
	return &iap.Error{
		Code:             code,
		Severity:         iap.SeverityWarning,
		Status:           body.Status,
		Message:          msg,
		LocalizedTitle:   iap.English.Get("ValidationError"),
		LocalizedMessage: iap.English.ErrorMessage(code),
	}
}

// purchaseToken reads the token from the Play receipt JSON, falling back to
// the one reported by the bridge.
func purchaseToken(data purchase.ValidationData) string {
	var f purchaseTokenField
	if data.Receipt != "" && json.Unmarshal([]byte(data.Receipt), &f) == nil && f.PurchaseToken != "" {
		return f.PurchaseToken
	}
	return data.PurchaseToken
}

func statusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Authentication failed. Please check your validator configuration."
	case http.StatusBadRequest:
		return "Invalid purchase data. Please check the receipt format."
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", status)
}
