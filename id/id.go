// Package id defines TypeID-based identifiers for the records the engine
// produces itself: bus events, pending purchase attempts and token ledger
// entries.
//
// Store-issued identifiers (product ids, transaction ids, purchase tokens)
// are opaque strings and never pass through this package.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

// Prefix constants for engine-issued identifiers.
const (
	PrefixEvent   Prefix = "evt"  // Event bus message
	PrefixPending Prefix = "pend" // Pending purchase attempt
	PrefixToken   Prefix = "tok"  // Token ledger entry
)

// ID wraps a TypeID providing a prefix-qualified, K-sortable, URL-safe
// identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "evt_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// EventID identifies a bus event (prefix: "evt").
type EventID = ID

// PendingID identifies a pending purchase attempt (prefix: "pend").
type PendingID = ID

// TokenID identifies a token ledger entry (prefix: "tok").
type TokenID = ID

// NewEventID generates a new event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewPendingID generates a new pending purchase attempt ID.
func NewPendingID() ID { return New(PrefixPending) }

// NewTokenID generates a new token ledger entry ID.
func NewTokenID() ID { return New(PrefixToken) }

// ParseEventID parses a string and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// ParsePendingID parses a string and validates the "pend" prefix.
func ParsePendingID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPending) }

// ParseTokenID parses a string and validates the "tok" prefix.
func ParseTokenID(s string) (ID, error) { return ParseWithPrefix(s, PrefixToken) }

// String returns the full TypeID string, or "" for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}
