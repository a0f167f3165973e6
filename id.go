package iap

import "github.com/xraph/iap/id"

// ID is the identifier type for engine-issued records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
