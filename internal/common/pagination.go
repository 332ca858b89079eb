// File: internal/common/pagination.go
package common

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination describes one page of a counted result set.
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// NewPagination creates a pagination object.
func NewPagination(totalItems int64, page, pageSize int) *Pagination {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	totalPages := int((totalItems + int64(pageSize) - 1) / int64(pageSize))

	return &Pagination{
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// PageQuery holds page-based paging parameters.
type PageQuery struct {
	Page     int
	PageSize int
}

// Normalize clamps the query into a valid window using defaultSize for an unset size.
func (pq PageQuery) Normalize(defaultSize int) PageQuery {
	if pq.Page <= 0 {
		pq.Page = DefaultPage
	}
	if pq.PageSize <= 0 {
		pq.PageSize = defaultSize
	}
	if pq.PageSize <= 0 {
		pq.PageSize = DefaultPageSize
	}
	if pq.PageSize > MaxPageSize {
		pq.PageSize = MaxPageSize
	}
	return pq
}

// Offset calculates the offset for database queries.
func (pq PageQuery) Offset() int {
	if pq.Page <= 0 {
		return 0
	}
	return (pq.Page - 1) * pq.Limit()
}

// Limit calculates the limit for database queries.
func (pq PageQuery) Limit() int {
	if pq.PageSize <= 0 {
		return DefaultPageSize
	}
	if pq.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return pq.PageSize
}
