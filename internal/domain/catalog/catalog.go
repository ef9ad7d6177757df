// Package catalog holds the products listed behind the session guard.
package catalog

import (
	"context"
	"errors"
)

// ErrProductNotFound is returned when no product has the requested ID.
var ErrProductNotFound = errors.New("product not found")

// Product is a catalog entry.
type Product struct {
	ID         int64  `json:"id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// ProductStore provides product persistence.
type ProductStore interface {
	// List returns all products ordered by SKU.
	List(ctx context.Context) ([]Product, error)
	// GetByID returns the product with the given ID or ErrProductNotFound.
	GetByID(ctx context.Context, id int64) (*Product, error)
	// Upsert creates the product or updates it by SKU.
	Upsert(ctx context.Context, p Product) error
}

// Predicate reports whether a product matches a compiled filter.
type Predicate func(ctx context.Context, p Product) (bool, error)

// Filter compiles user-supplied filter expressions.
type Filter interface {
	// Compile returns a failure.ErrInvalidArgument error for expressions that
	// cannot be parsed, type-checked or are too expensive.
	Compile(expr string) (Predicate, error)
}

// Apply returns the products for which match is true, preserving order.
func Apply(ctx context.Context, products []Product, match Predicate) ([]Product, error) {
	if match == nil {
		return products, nil
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		ok, err := match(ctx, p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}
