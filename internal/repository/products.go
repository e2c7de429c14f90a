// Package repository defines catalog access interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/catalog-admin/internal/model"
)

// ProductRepository provides read and write access to the backend product resource.
// Implementations attach the bearer credential found in ctx (see WithBearer).
type ProductRepository interface {
	// List returns one page of products matching q. The page is positioned at q's window.
	List(ctx context.Context, q model.SearchQuery) (model.ProductPage, error)
	// Get loads the authoritative record for id.
	Get(ctx context.Context, id string) (model.Product, error)
	// Create inserts a new product from a draft without ID.
	Create(ctx context.Context, d model.MutationDraft) (model.Product, error)
	// Update replaces the product identified by d.ID.
	Update(ctx context.Context, d model.MutationDraft) (model.Product, error)
}
