package domain

// Trip list paging bounds.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PaginationParams is a 1-indexed page of at most Limit rows.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams applies defaults to the optional ?page= and ?limit=
// values. Non-positive values are ignored and Limit is capped at MaxPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultPageLimit}
	if page != nil && *page > 0 {
		p.Page = *page
	}
	if limit != nil && *limit > 0 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	return p
}

// Offset is the SQL OFFSET for the page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
