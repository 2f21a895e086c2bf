package catalog

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/shopspring/decimal"
)

// seedFile is the upload format accepted by SeedProducts:
//
//	{"products": [{"name": "...", "description": "...", "unit_price": 9.99, "weight": 0.5, "category": 1}]}
type seedFile struct {
	Products []seedProduct `json:"products"`
}

type seedProduct struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Weight      float64         `json:"weight"`
	Category    json.Number     `json:"category"`
}

// SeedProducts bulk-loads the catalog from a JSON document. It refuses to run
// once any product exists and inserts the whole batch atomically.
func (s *Service) SeedProducts(ctx context.Context, r io.Reader) (int, error) {
	n, err := s.store.CountProducts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, apperr.Conflict("products already exist in database")
	}

	var f seedFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return 0, apperr.Validation("invalid products data")
	}
	if len(f.Products) == 0 {
		return 0, apperr.Validation("products data must be a non-empty array")
	}

	categories := map[int64]Category{}
	batch := make([]Product, 0, len(f.Products))
	for _, sp := range f.Products {
		catID, err := sp.Category.Int64()
		if strings.TrimSpace(sp.Name) == "" || strings.TrimSpace(sp.Description) == "" ||
			!sp.UnitPrice.IsPositive() || !PriceFits(sp.UnitPrice) || sp.Weight <= 0 || err != nil || catID <= 0 {
			return 0, apperr.Validation("invalid product data in JSON file")
		}

		cat, ok := categories[catID]
		if !ok {
			cat, err = s.store.Category(ctx, catID)
			if err != nil {
				return 0, err
			}
			categories[catID] = cat
		}
		batch = append(batch, Product{
			Name:        sp.Name,
			Description: sp.Description,
			UnitPrice:   sp.UnitPrice,
			Weight:      sp.Weight,
			Category:    cat,
		})
	}
	return s.store.CreateProducts(ctx, batch)
}
