package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/and161185/catalog-admin/internal/model"
)

func TestFormatPrice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"0", "-"},
		{"25000000", "Rp. 25,000,000"},
		{"1500.5", "Rp. 1,500.5"},
		{"999", "Rp. 999"},
		{"1500.50", "Rp. 1,500.5"},
		{"0.129", "Rp. 0.13"},
		{"-2500", "Rp. -2,500"},
		{"12345678901234567.89", "Rp. 12,345,678,901,234,567.89"},
		{"98765432109876543210", "Rp. 98,765,432,109,876,543,210"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatPrice(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestExcerpt(t *testing.T) {
	t.Parallel()
	require.Equal(t, "-", Excerpt(""))
	require.Equal(t, "-", Excerpt("<p> </p>"))
	require.Equal(t, "Fast & light", Excerpt("<p>Fast &amp; <b>light</b></p>"))

	long := "<p>" + strings.Repeat("a", 60) + "</p>"
	got := Excerpt(long)
	require.Equal(t, strings.Repeat("a", 50)+"...", got)

	exact := strings.Repeat("é", 50)
	require.Equal(t, exact, Excerpt(exact))
}

func TestImageLabel(t *testing.T) {
	t.Parallel()
	require.Equal(t, "No Image", ImageLabel(""))
	require.Equal(t, "https://cdn.example.com/a.png", ImageLabel("https://cdn.example.com/a.png"))
}

func TestPagination(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Page 2 of 3 (25 products)", Pagination(model.ProductPage{PageNumber: 2, PageSize: 10, TotalCount: 25}))
	require.Equal(t, "Page 1 of 1 (0 products)", Pagination(model.ProductPage{PageNumber: 1, PageSize: 10}))
}

func TestRenderPage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, RenderPage(&buf, model.ProductPage{PageNumber: 1, PageSize: 10}))
	require.Equal(t, "No products found.\n", buf.String())

	buf.Reset()
	page := model.ProductPage{
		PageNumber: 2, PageSize: 10, TotalCount: 12,
		Items: []model.Product{
			{ID: "p11", Title: "Phone", Price: decimal.NewFromInt(25000000), Description: "<p>New phone</p>"},
			{ID: "p12", Title: "Case", ImageURL: "https://cdn.example.com/case.png"},
		},
	}
	require.NoError(t, RenderPage(&buf, page))
	out := buf.String()
	for _, want := range []string{"Title", "Phone", "Rp. 25,000,000", "New phone", "No Image", "11", "12", "https://cdn.example.com/case.png", "Page 2 of 2 (12 products)"} {
		require.Contains(t, out, want)
	}
	require.NotContains(t, out, "<p>")
}

func TestRenderDraft(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, RenderDraft(&buf, model.MutationDraft{Title: "Phone"}))
	require.Contains(t, buf.String(), "new product")
	require.Contains(t, buf.String(), "(not set)")

	buf.Reset()
	require.NoError(t, RenderDraft(&buf, model.MutationDraft{ID: "p1", Title: "Phone"}.WithPrice(decimal.Zero)))
	require.Contains(t, buf.String(), "edit p1")
	require.NotContains(t, buf.String(), "(not set)")
}
