// Package service implements the application use cases on top of the domain
// ports: logging in and out, and browsing the product catalog.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/catalog"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/failure"
)

// Listing is one page of the product catalog.
type Listing struct {
	Products []catalog.Product `json:"products"`
	// ETag is a strong validator over the listed products.
	ETag string `json:"-"`
}

// ProductService lists products, optionally filtered, and looks them up by ID.
type ProductService struct {
	store  catalog.ProductStore
	filter catalog.Filter
	logger *slog.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(store catalog.ProductStore, filter catalog.Filter, logger *slog.Logger) *ProductService {
	return &ProductService{store: store, filter: filter, logger: logger}
}

// List returns the products matching expr; an empty expr matches all.
// Bad expressions fail with failure.ErrInvalidArgument, store failures with
// failure.ErrDataAccess.
func (s *ProductService) List(ctx context.Context, expr string) (*Listing, error) {
	var match catalog.Predicate
	if expr != "" {
		var err error
		if match, err = s.filter.Compile(expr); err != nil {
			return nil, err
		}
	}

	products, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	products, err = catalog.Apply(ctx, products, match)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("listed products", "count", len(products), "filtered", expr != "")
	return &Listing{Products: products, ETag: etag(products)}, nil
}

// Get returns the product whose ID is rawID. IDs that are not positive
// integers fail with failure.ErrInvalidArgument; unknown IDs with
// catalog.ErrProductNotFound.
func (s *ProductService) Get(ctx context.Context, rawID string) (*catalog.Product, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, failure.InvalidArgument("product id %q is not a positive integer", rawID)
	}
	return s.store.GetByID(ctx, id)
}

// Seed creates or updates the given products.
func (s *ProductService) Seed(ctx context.Context, products []catalog.Product) error {
	for _, p := range products {
		if err := s.store.Upsert(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.SKU, err)
		}
	}
	return nil
}

func etag(products []catalog.Product) string {
	d := xxhash.New()
	for _, p := range products {
		_, _ = d.WriteString(p.SKU)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(p.Name)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(strconv.FormatInt(p.PriceCents, 10))
		_, _ = d.WriteString("\n")
	}
	return `"` + strconv.FormatUint(d.Sum64(), 16) + `"`
}

// EntityTag returns the listing's ETag.
func (l *Listing) EntityTag() string { return l.ETag }
