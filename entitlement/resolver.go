// Package entitlement derives what the user may access from the verified
// purchases and the catalog. Everything here is a pure function of its
// inputs; nothing is cached.
package entitlement

import (
	"sort"
	"time"

	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/purchase"
)

const (
	reasonNoProduct = "no owned product grants this entitlement"
)

// Check reports whether any purchase owned at now belongs to a product whose
// catalog definition lists tag.
func Check(purchases []*purchase.Verified, cat *catalog.Catalog, tag string, now time.Time) Result {
	ids := make([]string, 0, len(purchases))
	byID := make(map[string]*purchase.Verified, len(purchases))
	for _, p := range purchases {
		if p == nil {
			continue
		}
		ids = append(ids, p.ProductID)
		byID[p.ProductID] = p
	}
	// Deterministic granting product.
	sort.Strings(ids)

	for _, pid := range ids {
		if !byID[pid].Owned(now) {
			continue
		}
		def, ok := cat.Get(pid)
		if !ok || !def.HasEntitlement(tag) {
			continue
		}
		return Result{Allowed: true, Entitlement: tag, ProductID: pid}
	}
	return Result{Entitlement: tag, Reason: reasonNoProduct}
}

// List returns the sorted, de-duplicated union of entitlement tags over the
// products owned at now.
func List(purchases []*purchase.Verified, cat *catalog.Catalog, now time.Time) []string {
	seen := make(map[string]struct{})
	for _, p := range purchases {
		if !p.Owned(now) {
			continue
		}
		def, ok := cat.Get(p.ProductID)
		if !ok {
			continue
		}
		for _, e := range def.Entitlements {
			seen[e] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Owned returns the ids of the products owned at now, sorted.
func Owned(purchases []*purchase.Verified, now time.Time) []string {
	out := make([]string, 0, len(purchases))
	for _, p := range purchases {
		if p.Owned(now) {
			out = append(out, p.ProductID)
		}
	}
	sort.Strings(out)
	return out
}
