package audit

import (
	"context"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Repository provides read access to the audit trail. There is no write
// method here: entries are only ever inserted by the matrix mutator, inside
// its own transaction.
type Repository interface {
	Query(ctx context.Context, filters Filters, limit, offset int) ([]Row, error)
	QueryAll(ctx context.Context, filters Filters) ([]Row, error)
}

// Service coordinates audit trail reads.
type Service struct {
	repo Repository
}

// NewService constructs an audit read service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Query returns one page of audit rows matching the filters.
func (s *Service) Query(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	// Fetch one extra row to detect a next page without a count query.
	rows, err := s.repo.Query(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every row matching the filters, without paging.
func (s *Service) Export(ctx context.Context, filters Filters) ([]Row, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.QueryAll(ctx, filters)
}
