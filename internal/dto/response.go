package dto

// Pagination - положение страницы в списке заказов. Страницы считаются с 1.
type Pagination struct {
	TotalCount  uint64 `json:"total_count"`
	Limit       uint64 `json:"limit"`
	Offset      uint64 `json:"offset"`
	CurrentPage uint64 `json:"current_page"`
	TotalPages  uint64 `json:"total_pages"`
	HasMore     bool   `json:"has_more"`
}

// NewPagination; limit 0 означает одну страницу на весь список.
func NewPagination(total, limit, offset uint64) *Pagination {
	p := &Pagination{TotalCount: total, Limit: limit, Offset: offset, CurrentPage: 1}
	if limit == 0 {
		if total > 0 {
			p.TotalPages = 1
		}
		return p
	}
	p.CurrentPage = offset/limit + 1
	p.TotalPages = (total + limit - 1) / limit
	p.HasMore = offset+limit < total
	return p
}

// OrderListResponseDTO - ответ GET /api/orders.
type OrderListResponseDTO struct {
	Status     bool        `json:"status"`
	Message    string      `json:"message"`
	Data       []OrderDTO  `json:"data"`
	Pagination *Pagination `json:"pagination"`
}
