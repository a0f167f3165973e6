// Package natsbridge republishes engine events on NATS so backend services
// can react to purchases made on the device.
//
// Each event is published as JSON on "<prefix>.<event type>", for example
// "iap.events.consumable.purchased". Register the Bridge as an engine
// plugin; it receives every bus event through the OnEvent hook.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xraph/iap"
	"github.com/xraph/iap/event"
	"github.com/xraph/iap/pending"
	"github.com/xraph/iap/plugin"
	"github.com/xraph/iap/purchase"
)

// DefaultSubjectPrefix is prepended to every event type.
const DefaultSubjectPrefix = "iap.events"

var (
	_ plugin.Plugin     = (*Bridge)(nil)
	_ plugin.OnEvent    = (*Bridge)(nil)
	_ plugin.OnShutdown = (*Bridge)(nil)
)

// Publisher is the subset of *nats.Conn the bridge uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type flusher interface {
	Flush() error
}

// Message is the JSON body published for an event.
type Message struct {
	ID       string             `json:"id"`
	Type     event.Type         `json:"type"`
	Time     time.Time          `json:"time"`
	Username string             `json:"username,omitempty"`
	Pending  *pending.Purchase  `json:"pending,omitempty"`
	Purchase *purchase.Verified `json:"purchase,omitempty"`
	Reason   event.Reason       `json:"reason,omitempty"`
	Error    *ErrorBody         `json:"error,omitempty"`
}

// ErrorBody carries an error event.
type ErrorBody struct {
	Code     iap.Code `json:"code"`
	Severity string   `json:"severity"`
	Message  string   `json:"message"`
}

// Bridge publishes events to NATS.
type Bridge struct {
	pub      Publisher
	prefix   string
	types    map[event.Type]bool // nil = all
	username func() string
	logger   *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSubjectPrefix replaces DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(b *Bridge) { b.prefix = prefix }
}

// WithTypes restricts publishing to the given event types.
func WithTypes(types ...event.Type) Option {
	return func(b *Bridge) {
		b.types = make(map[event.Type]bool, len(types))
		for _, t := range types {
			b.types[t] = true
		}
	}
}

// WithUsername tags every message with the current application username.
// Pass (*iap.Engine).ApplicationUsername.
func WithUsername(fn func() string) Option {
	return func(b *Bridge) { b.username = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// New creates a bridge publishing through pub.
func New(pub Publisher, opts ...Option) *Bridge {
	b := &Bridge{
		pub:    pub,
		prefix: DefaultSubjectPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect dials a NATS server with reconnect handling suitable for a
// long-lived publisher.
func Connect(url string, logger *slog.Logger, opts ...nats.Option) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base := []nats.Option{
		nats.Name("iap"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("iap/nats: disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("iap/nats: reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("iap/nats: connect: %w", err)
	}
	return nc, nil
}

// Name implements plugin.Plugin.
func (b *Bridge) Name() string { return "nats-bridge" }

// Subject returns the subject an event of type t is published on.
func (b *Bridge) Subject(t event.Type) string {
	if b.prefix == "" {
		return string(t)
	}
	return b.prefix + "." + string(t)
}

// OnEvent implements plugin.OnEvent.
func (b *Bridge) OnEvent(_ context.Context, e event.Event) error {
	if b.types != nil && !b.types[e.Type] {
		return nil
	}

	data, err := json.Marshal(b.message(e))
	if err != nil {
		return fmt.Errorf("iap/nats: marshal %s: %w", e.Type, err)
	}

	subject := b.Subject(e.Type)
	if err := b.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("iap/nats: publish %s: %w", subject, err)
	}
	b.logger.Debug("iap/nats: published", "subject", subject, "event_id", e.ID.String())
	return nil
}

// OnShutdown implements plugin.OnShutdown. It flushes buffered messages
// when the publisher supports it; the connection itself belongs to the
// caller.
func (b *Bridge) OnShutdown(_ context.Context) error {
	if f, ok := b.pub.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("iap/nats: flush: %w", err)
		}
	}
	return nil
}

func (b *Bridge) message(e event.Event) Message {
	m := Message{
		ID:       e.ID.String(),
		Type:     e.Type,
		Time:     e.Time,
		Pending:  e.Pending,
		Purchase: e.Purchase,
		Reason:   e.Reason,
	}
	if b.username != nil {
		m.Username = b.username()
	}
	if e.Err != nil {
		m.Error = &ErrorBody{
			Code:     iap.CodeOf(e.Err),
			Severity: iap.SeverityOf(e.Err).String(),
			Message:  e.Err.Error(),
		}
	}
	return m
}
