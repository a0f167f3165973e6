// Package webhook receives purchase notifications pushed by the receipt
// validator and keeps a verified purchase store in sync with them.
//
// The validator posts a "purchases.updated" notification whenever a
// subscription is created, renewed, cancelled or expires server-side. Each
// purchase in the notification is classified and upserted into the store,
// which lets a backend answer ownership queries without waiting for the
// client to revalidate.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xraph/iap"
	"github.com/xraph/iap/purchase"
)

// TypePurchasesUpdated is the only notification type the handler acts on.
const TypePurchasesUpdated = "purchases.updated"

// DefaultPath is where Mount registers the handler.
const DefaultPath = "/iap/webhook"

// Change classifies a purchase carried by a notification.
type Change string

const (
	ChangeCreated Change = "created"
	ChangeUpdated Change = "updated"
	ChangeExpired Change = "expired"
)

// Notification is the body posted by the validator.
type Notification struct {
	Type                string              `json:"type"`
	Password            string              `json:"password,omitempty"`
	ApplicationUsername string              `json:"applicationUsername,omitempty"`
	Purchases           map[string]Purchase `json:"purchases"`
}

// Purchase is one entry of a notification. The validator names the product
// "productId" here, optionally prefixed with the store ("apple:pro").
type Purchase struct {
	purchase.Payload
	ProductID string `json:"productId,omitempty"`
}

// Classify reports how the purchase changed. A purchase that has never
// renewed is new, an expired one has lapsed, anything else was updated.
func (p Purchase) Classify() Change {
	switch {
	case p.LastRenewalDate == 0:
		return ChangeCreated
	case p.IsExpired:
		return ChangeExpired
	default:
		return ChangeUpdated
	}
}

// Verified converts the entry, stamped with validatedAt.
func (p Purchase) Verified(validatedAt time.Time) *purchase.Verified {
	payload := p.Payload
	if p.ProductID != "" {
		payload.ID = p.ProductID
	}
	if prefix, id, ok := strings.Cut(payload.ID, ":"); ok {
		switch prefix {
		case "apple":
			payload.ID = id
			if payload.Platform == "" {
				payload.Platform = purchase.PlatformAppleAppStore
			}
		case "google":
			payload.ID = id
			if payload.Platform == "" {
				payload.Platform = purchase.PlatformGooglePlay
			}
		}
	}
	return payload.Verified(validatedAt)
}

// Result summarizes a processed notification.
type Result struct {
	Created int  `json:"created"`
	Updated int  `json:"updated"`
	Expired int  `json:"expired"`
	Stale   int  `json:"stale"`
	Ignored bool `json:"ignored,omitempty"`
}

// Listener is called for every purchase written to the store.
type Listener func(ctx context.Context, change Change, username string, v *purchase.Verified)

// Handler processes validator notifications.
type Handler struct {
	store    purchase.Store
	logger   *slog.Logger
	now      func() time.Time
	password string
	listener Listener
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithClock sets the time used to stamp stored purchases.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithPassword requires notifications to carry the given password.
func WithPassword(password string) Option {
	return func(h *Handler) { h.password = password }
}

// WithListener registers a callback for stored purchases.
func WithListener(l Listener) Option {
	return func(h *Handler) { h.listener = l }
}

// New creates a handler writing to s.
func New(s purchase.Store, opts ...Option) *Handler {
	h := &Handler{
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount registers the handler on e at path, or DefaultPath when empty.
func (h *Handler) Mount(e *echo.Echo, path string) {
	if path == "" {
		path = DefaultPath
	}
	e.POST(path, h.Handle)
}

// Handle is the echo handler.
func (h *Handler) Handle(c echo.Context) error {
	var n Notification
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification body")
	}

	if h.password != "" && subtle.ConstantTimeCompare([]byte(n.Password), []byte(h.password)) != 1 {
		h.logger.Warn("iap/webhook: rejected notification", "reason", "bad password")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}

	res, err := h.Process(c.Request().Context(), &n)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store purchases").SetInternal(err)
	}
	return c.JSON(http.StatusOK, res)
}

// Process applies n to the store. Purchases older than the stored record
// are counted as stale and skipped. Store failures are collected and
// returned together after every purchase has been tried.
func (h *Handler) Process(ctx context.Context, n *Notification) (Result, error) {
	if n.Type != TypePurchasesUpdated {
		h.logger.Debug("iap/webhook: ignoring notification", "type", n.Type)
		return Result{Ignored: true}, nil
	}

	// Map order is random; process in key order so logs are stable.
	keys := make([]string, 0, len(n.Purchases))
	for k := range n.Purchases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		res  Result
		errs iap.MultiError
		now  = h.now().UTC()
	)
	for _, k := range keys {
		p := n.Purchases[k]
		v := p.Verified(now)
		if v.ProductID == "" {
			errs.Add(fmt.Errorf("iap/webhook: purchase %q has no product id: %w", k, iap.ErrInvalidPurchase))
			continue
		}

		if err := h.store.AddPurchase(ctx, v); err != nil {
			if errors.Is(err, iap.ErrStalePurchase) {
				res.Stale++
				continue
			}
			errs.Add(fmt.Errorf("iap/webhook: store %s: %w", v.ProductID, err))
			continue
		}

		change := p.Classify()
		switch change {
		case ChangeCreated:
			res.Created++
		case ChangeExpired:
			res.Expired++
		default:
			res.Updated++
		}

		h.logger.Info("iap/webhook: purchase "+string(change),
			"product_id", v.ProductID,
			"username", n.ApplicationUsername,
		)
		if h.listener != nil {
			h.listener(ctx, change, n.ApplicationUsername, v.Clone())
		}
	}

	return res, errs.ErrorOrNil()
}
