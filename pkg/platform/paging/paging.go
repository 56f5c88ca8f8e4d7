// Package paging normalises limit/offset pagination.
package paging

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Page struct {
	Limit  int
	Offset int
}

// New clamps limit to [1, MaxLimit] and offset to >= 0.
func New(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// Default returns the first page with the default limit.
func Default() Page {
	return New(DefaultLimit, 0)
}

// Result is a page of items plus the unpaged total.
type Result[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewResult builds a Result, never returning a nil Items slice.
func NewResult[T any](items []T, total int, page Page) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}
}

// Slice applies the page to an in-memory slice.
func Slice[T any](items []T, page Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
