package catalog

import "github.com/shopspring/decimal"

// MaxUnitPrice is the exclusive upper bound of a NUMERIC(12,2) price.
var MaxUnitPrice = decimal.New(1, 10)

// PriceFits reports whether d is stored without rounding or overflow:
// at most two decimal places and below MaxUnitPrice.
func PriceFits(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2)) && d.LessThan(MaxUnitPrice)
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Weight      float64         `json:"weight"`
	Category    Category        `json:"category"`
}

// ProductInput is the payload of a product creation. Pointer fields
// distinguish "absent" from zero.
type ProductInput struct {
	Name        string
	Description string
	UnitPrice   *decimal.Decimal
	Weight      *float64
	CategoryID  int64
}

// ProductPatch is a partial update; nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	UnitPrice   *decimal.Decimal
	Weight      *float64
	CategoryID  *int64
}
