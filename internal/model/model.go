// Package model defines catalog entities shared by services, repositories and the console.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Defaults applied to a fresh SearchQuery.
const (
	DefaultPageSize = 10
	FirstPage       = 1
)

// Product is a catalog row as returned by the backend. Optional text fields are empty when absent.
type Product struct {
	ID          string          // assigned by backend, stable
	Title       string          // required
	Price       decimal.Decimal // non-negative
	Description string
	ImageURL    string
	Category    string
	CreatedAt   time.Time // zero if backend omitted it
	UpdatedAt   time.Time
}

// ProductPage is one bounded window of the catalog. It is replaced wholesale on every fetch.
type ProductPage struct {
	Items      []Product // backend order, never re-sorted
	PageNumber int       // 1-based
	PageSize   int
	TotalCount int
}

// EmptyPage returns a page with no rows positioned at q's window.
func EmptyPage(q SearchQuery) ProductPage {
	return ProductPage{Items: []Product{}, PageNumber: q.PageNumber, PageSize: q.PageSize}
}

// TotalPages reports how many pages the pagination control shows.
func (p ProductPage) TotalPages() int {
	if p.PageSize <= 0 || p.TotalCount <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

// SearchQuery is the filter and window used for list fetches. An empty Term means no filter.
type SearchQuery struct {
	Term       string
	PageNumber int
	PageSize   int
}

// NewSearchQuery returns the initial query: no filter, first page, default size.
func NewSearchQuery() SearchQuery {
	return SearchQuery{PageNumber: FirstPage, PageSize: DefaultPageSize}
}

// WithTerm returns a copy filtered by term. The page number always resets to the first page.
func (q SearchQuery) WithTerm(term string) SearchQuery {
	q.Term = term
	q.PageNumber = FirstPage
	return q
}

// WithPage returns a copy positioned at the given window.
func (q SearchQuery) WithPage(pageNumber, pageSize int) SearchQuery {
	q.PageNumber = pageNumber
	q.PageSize = pageSize
	return q
}

// MutationDraft is an in-progress product used by create and edit. ID is empty for create.
// Price is nil until a value is entered; zero is a valid entered price.
type MutationDraft struct {
	ID          string
	Title       string           `validate:"required"`
	Price       *decimal.Decimal `validate:"required,gte=0"`
	Description string
	ImageURL    string `validate:"omitempty,url"`
	Category    string
}

// IsNew reports whether submitting the draft creates a product.
func (d MutationDraft) IsNew() bool { return d.ID == "" }

// SetPrice records an entered price.
func (d *MutationDraft) SetPrice(p decimal.Decimal) { d.Price = &p }

// WithPrice returns a copy with the price entered.
func (d MutationDraft) WithPrice(p decimal.Decimal) MutationDraft {
	d.SetPrice(p)
	return d
}

// PriceValue returns the entered price, or zero when none was entered.
func (d MutationDraft) PriceValue() decimal.Decimal {
	if d.Price == nil {
		return decimal.Zero
	}
	return *d.Price
}

// DraftFromProduct builds an edit draft from an authoritative single-item record.
func DraftFromProduct(p Product) MutationDraft {
	price := p.Price
	return MutationDraft{
		ID:          p.ID,
		Title:       p.Title,
		Price:       &price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
	}
}
