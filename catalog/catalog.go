// Package catalog holds the application's product definitions: product
// types, the entitlements each product unlocks and the offers it is sold
// through.
//
// Product types are resolved once, when the catalog is built, so the rest of
// the engine asks for a definite ProductType instead of probing optional
// fields at every use site.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultType is reported for product ids the catalog does not know.
// Validator-confirmed purchases of unknown products are finished
// automatically, like non-consumables.
const DefaultType = TypeNonConsumable

// Catalog is an immutable, indexed set of products. It is safe for
// concurrent use.
type Catalog struct {
	products []Product
	byID     map[string]*Product
}

// New validates and indexes the given products.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, len(products)),
		byID:     make(map[string]*Product, len(products)),
	}
	copy(c.products, products)

	for i := range c.products {
		p := &c.products[i]
		if p.ID == "" {
			return nil, fmt.Errorf("catalog: product #%d has no id", i)
		}
		if !p.Type.Valid() {
			return nil, fmt.Errorf("catalog: product %q has invalid type %q", p.ID, p.Type)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q", p.ID)
		}
		if p.TokenAmount != 0 && p.TokenType == "" {
			return nil, fmt.Errorf("catalog: product %q has a token amount but no token type", p.ID)
		}
		for j := range p.Offers {
			if p.Offers[j].ProductID == "" {
				p.Offers[j].ProductID = p.ID
			}
		}
		c.byID[p.ID] = p
	}

	return c, nil
}

// MustNew is like New but panics on error. Use for hardcoded catalogs.
func MustNew(products []Product) *Catalog {
	c, err := New(products)
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

// Parse builds a catalog from a YAML document with a top-level "products"
// list.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	return New(f.Products)
}

// LoadFile reads and parses a YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Get returns the definition of a product.
func (c *Catalog) Get(productID string) (*Product, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.byID[productID]
	return p, ok
}

// Type returns the product's type, or DefaultType when unknown.
func (c *Catalog) Type(productID string) ProductType {
	if p, ok := c.Get(productID); ok {
		return p.Type
	}
	return DefaultType
}

// List returns a copy of all products in declaration order.
func (c *Catalog) List() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Entitlements returns every entitlement tag declared by any product,
// sorted.
func (c *Catalog) Entitlements() []string {
	seen := make(map[string]struct{})
	for _, p := range c.List() {
		for _, e := range p.Entitlements {
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
