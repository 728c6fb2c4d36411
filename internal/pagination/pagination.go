// Package pagination clamps page/limit query parameters and shapes paged
// list responses.
package pagination

import "math"

const (
	DefaultLimit = 20
	DefaultMax   = 100
)

// Params is a clamped page request. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// New clamps page to [1, math.MaxInt/limit] and limit to [1, max]. A non-positive limit
// falls back to def, and a non-positive max to DefaultMax.
func New(page, limit, def, max int) Params {
	if max <= 0 {
		max = DefaultMax
	}
	if def <= 0 {
		def = DefaultLimit
	}
	if def > max {
		def = max
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	// Keep (page-1)*limit from overflowing.
	if page > math.MaxInt/limit {
		page = math.MaxInt / limit
	}
	return Params{Page: page, Limit: limit}
}

// Offset is the number of rows to skip: (page-1)*limit.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pages returns ceil(total/limit).
func (p Params) Pages(total int64) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	limit := int64(p.Limit)
	return int((total + limit - 1) / limit)
}

// Result is one page of items plus the totals needed to navigate.
type Result[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// NewResult wraps items for p. Nil items serialize as an empty list.
func NewResult[T any](items []T, total int64, p Params) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Items: items,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
		Pages: p.Pages(total),
	}
}
