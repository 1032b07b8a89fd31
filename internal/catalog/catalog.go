// Package catalog holds the products, sub-products and pre-built packets fetched
// from the storefront gateway.
package catalog

import (
	"github.com/beije/packet-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// SubProduct is a purchasable variant of a Product. Price is a unit price.
type SubProduct struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Product struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Image       string                `json:"image"`
	Category    enums.ProductCategory `json:"category"`
	SubProducts []SubProduct          `json:"subProducts"`
}

// Packet is an opaque pre-built bundle.
type Packet struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Image string `json:"image"`
}

// Catalog is replaced wholesale on every fetch.
type Catalog struct {
	Products []Product `json:"products"`
	Packets  []Packet  `json:"packets"`
}

// Empty returns a catalog with non-nil slices so it encodes as empty arrays.
func Empty() Catalog {
	return Catalog{Products: []Product{}, Packets: []Packet{}}
}

// Resolve finds the product owning subProductID. Products are scanned in order and
// the first match wins.
func (c Catalog) Resolve(subProductID string) (Product, SubProduct, bool) {
	for _, p := range c.Products {
		for _, sp := range p.SubProducts {
			if sp.ID == subProductID {
				return p, sp, true
			}
		}
	}
	return Product{}, SubProduct{}, false
}

// Clone returns a deep copy so callers cannot mutate a shared catalog.
func (c Catalog) Clone() Catalog {
	out := Catalog{
		Products: make([]Product, len(c.Products)),
		Packets:  append([]Packet{}, c.Packets...),
	}
	for i, p := range c.Products {
		p.SubProducts = append([]SubProduct{}, p.SubProducts...)
		out.Products[i] = p
	}
	return out
}
