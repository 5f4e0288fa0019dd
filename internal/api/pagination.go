package api

import (
	"net/http"
	"strconv"
)

// The alert feed pages at 25 rows by default; anything above 100 is
// clamped to keep list responses bounded.
const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// Pagination is the parsed page/per_page query pair
type Pagination struct {
	Page    int
	PerPage int
}

// ParsePagination reads page and per_page from the query string. Missing,
// non-numeric or non-positive values fall back to the defaults.
func ParsePagination(r *http.Request) Pagination {
	q := r.URL.Query()
	return Pagination{
		Page:    positiveInt(q.Get("page"), 1, 0),
		PerPage: positiveInt(q.Get("per_page"), DefaultPerPage, MaxPerPage),
	}
}

// positiveInt parses raw as a positive integer, clamping to max when
// max is non-zero
func positiveInt(raw string, fallback, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// Offset converts the page number into a database offset
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages reports how many pages the given row count spans
func (p Pagination) TotalPages(total int64) int {
	if p.PerPage <= 0 {
		return 0
	}
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage != 0 {
		pages++
	}
	return pages
}
