package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/catalog"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/failure"
)

// ProductStore implements catalog.ProductStore.
type ProductStore struct {
	db *DB
}

// NewProductStore creates a ProductStore on db.
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

// List returns all products ordered by SKU.
func (s *ProductStore) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, sku, name, price_cents FROM products ORDER BY sku`)
	if err != nil {
		return nil, failure.DataAccess("list products", err)
	}
	defer rows.Close()

	products := []catalog.Product{}
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents); err != nil {
			return nil, failure.DataAccess("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.DataAccess("list products", err)
	}
	return products, nil
}

// GetByID returns the product with the given ID.
func (s *ProductStore) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	var p catalog.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sku, name, price_cents FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, failure.DataAccess("get product", err)
	}
	return &p, nil
}

// Upsert creates the product or updates name and price by SKU.
func (s *ProductStore) Upsert(ctx context.Context, p catalog.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (sku, name, price_cents) VALUES (?, ?, ?)
		 ON CONFLICT(sku) DO UPDATE SET name = excluded.name, price_cents = excluded.price_cents`,
		p.SKU, p.Name, p.PriceCents,
	)
	return failure.DataAccess("upsert product", err)
}

var _ catalog.ProductStore = (*ProductStore)(nil)
