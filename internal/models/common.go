package models

// Pagination describes list response paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes derived totals.
func NewPagination(page, pageSize, totalItems int) *Pagination {
	if pageSize <= 0 {
		pageSize = 20
	}
	totalPages := totalItems / pageSize
	if totalItems%pageSize != 0 {
		totalPages++
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalItems: totalItems, TotalPages: totalPages}
}
