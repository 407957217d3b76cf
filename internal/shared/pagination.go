package shared

// DefaultPerPage is the page size used when none is requested.
const DefaultPerPage = 20

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination clamps page and perPage to at least 1 and derives the page
// count from total.
func NewPagination(page, perPage, total int) Pagination {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

// Offset is the number of rows that precede the page. Pages past the last
// one start at Total so the offset never exceeds the row count.
func (p Pagination) Offset() int {
	if p.Page > p.TotalPages {
		return p.Total
	}
	return (p.Page - 1) * p.PerPage
}
