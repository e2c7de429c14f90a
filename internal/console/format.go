// Package console renders catalog pages for the terminal and runs the interactive admin console.
package console

import (
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/and161185/catalog-admin/internal/model"
)

const (
	descriptionLimit = 50
	noImage          = "No Image"
	none             = "-"
)

// strict drops every tag; descriptions are stored as rich-text HTML.
var strict = bluemonday.StrictPolicy()

// FormatPrice renders a price as "Rp. 25,000,000", or "-" when it is zero.
// At most two fraction digits are shown, without trailing zeros.
func FormatPrice(p decimal.Decimal) string {
	if p.IsZero() {
		return none
	}
	abs := p.Round(2).Abs()
	whole := abs.Truncate(0)
	s := humanize.BigComma(whole.BigInt())
	if frac := abs.Sub(whole); !frac.IsZero() {
		s += strings.TrimPrefix(frac.String(), "0")
	}
	if p.IsNegative() {
		s = "-" + s
	}
	return "Rp. " + s
}

// PlainText strips markup and entities and collapses whitespace.
func PlainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(strict.Sanitize(s))), " ")
}

// Excerpt returns the plain-text description cut to 50 characters plus "...", or "-".
func Excerpt(desc string) string {
	s := PlainText(desc)
	if s == "" {
		return none
	}
	if utf8.RuneCountInString(s) <= descriptionLimit {
		return s
	}
	r := []rune(s)
	return string(r[:descriptionLimit]) + "..."
}

// ImageLabel returns the image URL or "No Image".
func ImageLabel(url string) string {
	if url == "" {
		return noImage
	}
	return url
}

func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// RenderPage writes the page as a table followed by the pagination line.
func RenderPage(w io.Writer, page model.ProductPage) error {
	if len(page.Items) == 0 {
		_, err := fmt.Fprintln(w, "No products found.")
		return err
	}

	offset := (page.PageNumber - 1) * page.PageSize
	rows := make([][]string, 0, len(page.Items))
	for i, p := range page.Items {
		rows = append(rows, []string{
			strconv.Itoa(offset + i + 1),
			p.ID,
			p.Title,
			FormatPrice(p.Price),
			orNone(p.Category),
			Excerpt(p.Description),
			ImageLabel(p.ImageURL),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "Title", "Price", "Category", "Description", "Image").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, Pagination(page))
	return err
}

// Pagination describes the position of page, e.g. "Page 2 of 3 (25 products)".
func Pagination(page model.ProductPage) string {
	total := page.TotalPages()
	if total == 0 {
		total = 1
	}
	return fmt.Sprintf("Page %d of %d (%d products)", page.PageNumber, total, page.TotalCount)
}

// RenderProduct writes one product or draft as a field list.
func RenderProduct(w io.Writer, p model.Product) error {
	return renderFields(w, [][2]string{
		{"ID", orNone(p.ID)},
		{"Title", orNone(p.Title)},
		{"Price", FormatPrice(p.Price)},
		{"Category", orNone(p.Category)},
		{"Description", orNone(PlainText(p.Description))},
		{"Image", ImageLabel(p.ImageURL)},
	})
}

// RenderDraft writes the open draft, marking whether submit creates or updates.
func RenderDraft(w io.Writer, d model.MutationDraft) error {
	mode := "edit " + d.ID
	if d.IsNew() {
		mode = "new product"
	}
	return renderFields(w, [][2]string{
		{"Draft", mode},
		{"Title", orNone(d.Title)},
		{"Price", draftPrice(d)},
		{"Category", orNone(d.Category)},
		{"Description", orNone(d.Description)},
		{"Image", ImageLabel(d.ImageURL)},
	})
}

func draftPrice(d model.MutationDraft) string {
	if d.Price == nil {
		return "(not set)"
	}
	return d.Price.String()
}

func renderFields(w io.Writer, fields [][2]string) error {
	label := lipgloss.NewStyle().Bold(true).Width(12)
	for _, f := range fields {
		if _, err := fmt.Fprintln(w, label.Render(f[0])+" "+f[1]); err != nil {
			return err
		}
	}
	return nil
}
