// Package convert maps backend JSON payloads to domain structs and back.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/and161185/catalog-admin/internal/model"
)

// ProductDTO is the backend representation of a product.
type ProductDTO struct {
	ID          string      `json:"product_id,omitempty"`
	Title       string      `json:"product_title"`
	Price       json.Number `json:"product_price"`
	Description string      `json:"product_description,omitempty"`
	ImageURL    string      `json:"product_image,omitempty"`
	Category    string      `json:"product_category,omitempty"`
	CreatedAt   string      `json:"created_timestamp,omitempty"`
	UpdatedAt   string      `json:"updated_timestamp,omitempty"`
}

// Pagination is the pagination block of a list response. Only Total is relied upon.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// ListResponse is the body of GET /products.
type ListResponse struct {
	Data       []ProductDTO `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// SingleResponse is the body of GET/POST/PUT /product.
type SingleResponse struct {
	Data *ProductDTO `json:"data"`
}

// ErrorResponse is the body the backend sends with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- helpers ---

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- backend -> domain ---

// ProductFromDTO converts a backend product to the domain struct.
func ProductFromDTO(in ProductDTO) (model.Product, error) {
	price := decimal.Zero
	if in.Price != "" {
		p, err := decimal.NewFromString(in.Price.String())
		if err != nil {
			return model.Product{}, fmt.Errorf("product %q: invalid price %q: %w", in.ID, in.Price, err)
		}
		price = p
	}
	return model.Product{
		ID:          in.ID,
		Title:       in.Title,
		Price:       price,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		CreatedAt:   parseTime(in.CreatedAt),
		UpdatedAt:   parseTime(in.UpdatedAt),
	}, nil
}

// PageFromList converts a list response into a page positioned at q's window.
func PageFromList(in ListResponse, q model.SearchQuery) (model.ProductPage, error) {
	page := model.EmptyPage(q)
	page.TotalCount = in.Pagination.Total
	for _, dto := range in.Data {
		p, err := ProductFromDTO(dto)
		if err != nil {
			return model.ProductPage{}, err
		}
		page.Items = append(page.Items, p)
	}
	return page, nil
}

// --- domain -> backend ---

// DraftToDTO converts a draft to the request body. The id is carried only for updates.
func DraftToDTO(d model.MutationDraft) ProductDTO {
	return ProductDTO{
		ID:          d.ID,
		Title:       d.Title,
		Price:       json.Number(d.PriceValue().String()),
		Description: d.Description,
		ImageURL:    d.ImageURL,
		Category:    d.Category,
	}
}
