package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProductPage_TotalPages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		total, size, want int
	}{
		{25, 10, 3},
		{20, 10, 2},
		{0, 10, 0},
		{1, 10, 1},
		{5, 0, 0},
	}
	for _, c := range cases {
		p := ProductPage{TotalCount: c.total, PageSize: c.size}
		if got := p.TotalPages(); got != c.want {
			t.Fatalf("TotalPages(total=%d,size=%d)=%d, want %d", c.total, c.size, got, c.want)
		}
	}
}

func TestSearchQuery_WithTermResetsPage(t *testing.T) {
	t.Parallel()

	q := NewSearchQuery().WithPage(4, 20)
	q = q.WithTerm("phone")
	if q.PageNumber != FirstPage || q.PageSize != 20 || q.Term != "phone" {
		t.Fatalf("unexpected query after WithTerm: %+v", q)
	}
}

func TestEmptyPage_KeepsWindow(t *testing.T) {
	t.Parallel()

	p := EmptyPage(SearchQuery{PageNumber: 2, PageSize: 50})
	if p.Items == nil || len(p.Items) != 0 || p.PageNumber != 2 || p.PageSize != 50 || p.TotalCount != 0 {
		t.Fatalf("unexpected empty page: %+v", p)
	}
}

func TestDraftFromProduct(t *testing.T) {
	t.Parallel()

	p := Product{ID: "p1", Title: "Mouse", Price: decimal.NewFromInt(150000), Description: "wireless", Category: "pc"}
	d := DraftFromProduct(p)
	if d.IsNew() || d.ID != "p1" || d.Title != "Mouse" || d.Price == nil || !d.Price.Equal(p.Price) || d.Description != "wireless" {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if !(MutationDraft{}).IsNew() {
		t.Fatalf("draft without id must be new")
	}
}

func TestMutationDraft_Price(t *testing.T) {
	t.Parallel()

	var d MutationDraft
	if d.Price != nil || !d.PriceValue().IsZero() {
		t.Fatalf("fresh draft must have no price: %+v", d)
	}

	d = d.WithPrice(decimal.Zero)
	if d.Price == nil || !d.PriceValue().IsZero() {
		t.Fatalf("entered zero price must be kept: %+v", d)
	}

	src := decimal.NewFromInt(5)
	d.SetPrice(src)
	src = src.Add(decimal.NewFromInt(1))
	if !d.PriceValue().Equal(decimal.NewFromInt(5)) {
		t.Fatalf("price must be copied, got %s", d.PriceValue())
	}
}
