// Package pricing derives totals and category groupings from a catalog and a
// selection. Every function is pure.
package pricing

import (
	"github.com/beije/packet-storefront/internal/catalog"
	"github.com/beije/packet-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// Quantities is the ordered view of a selection the engine reads.
type Quantities interface {
	Each(fn func(subProductID string, quantity int))
}

// GroupedEntry is a resolved selection entry.
type GroupedEntry struct {
	SubProductID string             `json:"subProductId"`
	Quantity     int                `json:"quantity"`
	Product      catalog.Product    `json:"product"`
	SubProduct   catalog.SubProduct `json:"subProduct"`
	LineTotal    decimal.Decimal    `json:"lineTotal"`
}

// TotalPrice sums price*quantity over resolvable entries. Stale ids contribute zero.
func TotalPrice(c catalog.Catalog, sel Quantities) decimal.Decimal {
	total := decimal.Zero
	sel.Each(func(id string, qty int) {
		if qty <= 0 {
			return
		}
		if _, sp, ok := c.Resolve(id); ok {
			total = total.Add(lineTotal(sp, qty))
		}
	})
	return total
}

// GroupByCategory partitions resolvable entries by their product's category. Entries
// keep selection order and categories without entries are omitted.
func GroupByCategory(c catalog.Catalog, sel Quantities) map[enums.ProductCategory][]GroupedEntry {
	grouped := map[enums.ProductCategory][]GroupedEntry{}
	sel.Each(func(id string, qty int) {
		if qty <= 0 {
			return
		}
		p, sp, ok := c.Resolve(id)
		if !ok {
			return
		}
		grouped[p.Category] = append(grouped[p.Category], GroupedEntry{
			SubProductID: id,
			Quantity:     qty,
			Product:      p,
			SubProduct:   sp,
			LineTotal:    lineTotal(sp, qty),
		})
	})
	return grouped
}

func lineTotal(sp catalog.SubProduct, qty int) decimal.Decimal {
	return sp.Price.Mul(decimal.NewFromInt(int64(qty)))
}
