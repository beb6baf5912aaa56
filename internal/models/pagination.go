package models

// MaxPageLimit caps the page size a client may request.
const MaxPageLimit = 100

// PageRequest is a 1-based page and page size.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request: page defaults to 1, limit to defaultLimit, and limit
// never exceeds MaxPageLimit.
func (p PageRequest) Normalize(defaultLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is returned alongside every paginated listing.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// NewPagination computes pagination metadata for a normalized page request.
func NewPagination(p PageRequest, total int64) Pagination {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     p.Page < totalPages,
		HasPrev:     p.Page > 1,
	}
}
