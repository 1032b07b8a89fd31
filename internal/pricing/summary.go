package pricing

import (
	"github.com/beije/packet-storefront/internal/catalog"
	"github.com/beije/packet-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// CategoryGroup is one non-empty category of a Summary.
type CategoryGroup struct {
	Category enums.ProductCategory `json:"category"`
	Entries  []GroupedEntry        `json:"entries"`
	Subtotal decimal.Decimal       `json:"subtotal"`
}

// Summary is the read model served to the packet builder.
type Summary struct {
	Groups    []CategoryGroup `json:"groups"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
	// Stale lists selected ids that no longer resolve. They are never priced.
	Stale []string `json:"stale,omitempty"`
}

// Summarize orders groups by the canonical category order; categories outside it
// follow in first-seen order.
func Summarize(c catalog.Catalog, sel Quantities) Summary {
	grouped := GroupByCategory(c, sel)

	summary := Summary{
		Groups: []CategoryGroup{},
		Total:  TotalPrice(c, sel),
	}

	seen := map[enums.ProductCategory]bool{}
	appendGroup := func(cat enums.ProductCategory) {
		entries, ok := grouped[cat]
		if !ok || seen[cat] {
			return
		}
		seen[cat] = true
		subtotal := decimal.Zero
		for _, e := range entries {
			subtotal = subtotal.Add(e.LineTotal)
			summary.ItemCount += e.Quantity
		}
		summary.Groups = append(summary.Groups, CategoryGroup{Category: cat, Entries: entries, Subtotal: subtotal})
	}
	for _, cat := range enums.ProductCategories {
		appendGroup(cat)
	}

	sel.Each(func(id string, qty int) {
		p, _, ok := c.Resolve(id)
		if !ok {
			if qty > 0 {
				summary.Stale = append(summary.Stale, id)
			}
			return
		}
		appendGroup(p.Category)
	})
	return summary
}
