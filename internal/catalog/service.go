package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
)

// Store persists categories and products. Lookups return an error of kind
// apperr.ErrNotFound for missing rows.
type Store interface {
	Categories(ctx context.Context) ([]Category, error)
	Category(ctx context.Context, id int64) (Category, error)
	Products(ctx context.Context) ([]Product, error)
	Product(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	CountProducts(ctx context.Context) (int, error)
	// CreateProducts inserts all rows or none.
	CreateProducts(ctx context.Context, ps []Product) (int, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.store.Categories(ctx)
}

func (s *Service) Products(ctx context.Context) ([]Product, error) {
	return s.store.Products(ctx)
}

func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, apperr.Validation("product id has to be an integer greater than 0")
	}
	return s.store.Product(ctx, id)
}

// FindProduct and FindCategory are the read-only lookups the order core
// snapshots prices from.
func (s *Service) FindProduct(ctx context.Context, id int64) (Product, error) {
	return s.store.Product(ctx, id)
}

func (s *Service) FindCategory(ctx context.Context, id int64) (Category, error) {
	return s.store.Category(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if in.Name == "" || in.Description == "" || in.UnitPrice == nil || in.Weight == nil || in.CategoryID == 0 {
		return Product{}, apperr.Validation("missing required fields: name, description, weight, unit_price, categoryId")
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Description) == "" {
		return Product{}, apperr.Validation("name and description must be non-empty strings")
	}
	if in.CategoryID < 0 {
		return Product{}, apperr.Validation("categoryId must be an integer greater than 0")
	}
	if !in.UnitPrice.IsPositive() || *in.Weight <= 0 {
		return Product{}, apperr.Validation("unit_price and weight must be greater than 0")
	}
	if !PriceFits(*in.UnitPrice) {
		return Product{}, apperr.Validation("unit_price must have at most 2 decimal places and be below %s", MaxUnitPrice)
	}

	cat, err := s.store.Category(ctx, in.CategoryID)
	if err != nil {
		return Product{}, err
	}
	return s.store.CreateProduct(ctx, Product{
		Name:        in.Name,
		Description: in.Description,
		UnitPrice:   *in.UnitPrice,
		Weight:      *in.Weight,
		Category:    cat,
	})
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (Product, error) {
	if id <= 0 {
		return Product{}, apperr.Validation("invalid product id")
	}
	p, err := s.store.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return Product{}, apperr.Validation("name must be a non-empty string")
		}
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" {
			return Product{}, apperr.Validation("description must be a non-empty string")
		}
		p.Description = *patch.Description
	}
	if patch.UnitPrice != nil {
		if !patch.UnitPrice.IsPositive() {
			return Product{}, apperr.Validation("unit_price must be a number greater than 0")
		}
		if !PriceFits(*patch.UnitPrice) {
			return Product{}, apperr.Validation("unit_price must have at most 2 decimal places and be below %s", MaxUnitPrice)
		}
		p.UnitPrice = *patch.UnitPrice
	}
	if patch.Weight != nil {
		if *patch.Weight <= 0 {
			return Product{}, apperr.Validation("weight must be a number greater than 0")
		}
		p.Weight = *patch.Weight
	}
	if patch.CategoryID != nil {
		if *patch.CategoryID <= 0 {
			return Product{}, apperr.Validation("categoryId must be a positive integer")
		}
		cat, err := s.store.Category(ctx, *patch.CategoryID)
		if err != nil {
			return Product{}, err
		}
		p.Category = cat
	}

	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return updated, nil
}
