package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var _ catalog.Store = (*Store)(nil)

const productColumns = `p.id, p.name, p.description, p.unit_price::text, p.weight, c.id, c.name`

const productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	var price string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Weight, &p.Category.ID, &p.Category.Name); err != nil {
		return catalog.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("product %d: parse price %q: %w", p.ID, price, err)
	}
	p.UnitPrice = d
	return p, nil
}

func (s *Store) Categories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []catalog.Category{}
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Category(ctx context.Context, id int64) (catalog.Category, error) {
	var c catalog.Category
	err := s.DB.QueryRow(ctx, `SELECT id, name FROM categories WHERE id=$1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		return catalog.Category{}, notFound(err, "category with id = %d not found", id)
	}
	return c, nil
}

func (s *Store) Products(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+productFrom+` ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Product(ctx context.Context, id int64) (catalog.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id=$1`, id))
	if err != nil {
		return catalog.Product{}, notFound(err, "product with id = %d not found", id)
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO products(name, description, unit_price, weight, category_id)
		VALUES ($1, $2, $3::numeric, $4, $5)
		RETURNING id`,
		p.Name, p.Description, p.UnitPrice.String(), p.Weight, p.Category.ID,
	).Scan(&p.ID)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return catalog.Product{}, apperr.NotFound("category with id = %d not found", p.Category.ID)
		}
		return catalog.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products
		SET name=$2, description=$3, unit_price=$4::numeric, weight=$5, category_id=$6
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.UnitPrice.String(), p.Weight, p.Category.ID,
	)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return catalog.Product{}, apperr.NotFound("category with id = %d not found", p.Category.ID)
		}
		return catalog.Product{}, err
	}
	if ct.RowsAffected() == 0 {
		return catalog.Product{}, apperr.NotFound("product with id = %d not found", p.ID)
	}
	return p, nil
}

func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

func (s *Store) CreateProducts(ctx context.Context, ps []catalog.Product) (int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range ps {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products(name, description, unit_price, weight, category_id)
			VALUES ($1, $2, $3::numeric, $4, $5)`,
			p.Name, p.Description, p.UnitPrice.String(), p.Weight, p.Category.ID,
		); err != nil {
			if pgCode(err) == foreignKeyViolation {
				return 0, apperr.NotFound("category with id = %d not found", p.Category.ID)
			}
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(ps), nil
}
