// Package listing filters, sorts and paginates the lists shown by the application.
package listing

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/ubuntu/societyhub/internal/temporal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultPageSize is used when no page size is requested.
const DefaultPageSize = 20

// Fields describes how a listing reads the items of type T. Nil functions disable the
// corresponding filter or sort.
type Fields[T any] struct {
	// Text returns the values matched by a search.
	Text func(T) []string
	// Status returns the status matched by a status filter.
	Status func(T) string
	// Date returns the instant items are sorted by.
	Date func(T) temporal.Instant
}

// Query is a listing request.
type Query struct {
	Search string
	Status string
	// Sort orders the items by date. Nil keeps the gateway order.
	Sort *temporal.Order
	// Page is 1-based. Values below 1 are the first page.
	Page int
	// PageSize defaults to DefaultPageSize when not positive.
	PageSize int
}

// Page is a window of a listing.
type Page[T any] struct {
	Items  []T `yaml:"items" json:"items"`
	Number int `yaml:"page" json:"page"`
	Size   int `yaml:"pageSize" json:"pageSize"`
	// Total is the number of items matching the query, across all pages.
	Total int `yaml:"total" json:"total"`
	Pages int `yaml:"pages" json:"pages"`
}

// Apply filters, sorts and paginates items. items is not modified.
func Apply[T any](items []T, f Fields[T], q Query) Page[T] {
	matched := Search(items, q.Search, f.Text)
	matched = FilterStatus(matched, q.Status, f.Status)
	if q.Sort != nil && f.Date != nil {
		matched = slices.Clone(matched)
		temporal.SortBy(matched, f.Date, *q.Sort)
	}

	p := Paginate(matched, q.Page, q.PageSize)
	slog.Debug("Applied listing query", "search", q.Search, "status", q.Status, "total", len(items), "matched", p.Total, "page", p.Number)
	return p
}

// Search keeps the items for which one of the text values contains query. The comparison is
// Unicode aware and ignores case. An empty query keeps everything.
func Search[T any](items []T, query string, text func(T) []string) []T {
	needle := fold(query)
	if needle == "" || text == nil {
		return items
	}

	var found []T
	for _, it := range items {
		for _, v := range text(it) {
			if strings.Contains(fold(v), needle) {
				found = append(found, it)
				break
			}
		}
	}
	return found
}

// FilterStatus keeps the items whose status equals status, ignoring case. An empty status keeps everything.
func FilterStatus[T any](items []T, status string, statusOf func(T) string) []T {
	want := fold(status)
	if want == "" || statusOf == nil {
		return items
	}

	var found []T
	for _, it := range items {
		if fold(statusOf(it)) == want {
			found = append(found, it)
		}
	}
	return found
}

// Paginate returns page number of items. Pages past the end are empty.
func Paginate[T any](items []T, number, size int) Page[T] {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}

	p := Page[T]{
		Items:  []T{},
		Number: number,
		Size:   size,
		Total:  len(items),
		Pages:  (len(items) + size - 1) / size,
	}

	start := (number - 1) * size
	if start >= len(items) {
		return p
	}
	end := min(start+size, len(items))
	p.Items = slices.Clone(items[start:end])
	return p
}

// fold normalizes s for comparisons.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
