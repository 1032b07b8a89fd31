package enums

import "fmt"

// ProductCategory partitions the catalog into the builder's two tabs.
type ProductCategory string

const (
	ProductCategoryMenstrual ProductCategory = "Menstrual"
	ProductCategoryOther     ProductCategory = "Other"
)

// ProductCategories lists categories in display order.
var ProductCategories = []ProductCategory{
	ProductCategoryMenstrual,
	ProductCategoryOther,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range ProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range ProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
