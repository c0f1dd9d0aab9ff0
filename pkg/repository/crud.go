package repository

import "context"

// Reader provides read operations for records of a single type.
type Reader[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, filter Filter) (*T, error)
	GetAll(ctx context.Context, q Query) ([]T, error)
	GetPage(ctx context.Context, pageIndex, pageSize int, q Query) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Writer provides write operations for records of a single type.
type Writer[T any] interface {
	Add(ctx context.Context, record *T) error
	Update(ctx context.Context, record *T) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// Repository combines Reader and Writer for document stores.
type Repository[T any] interface {
	Reader[T]
	Writer[T]
}

// Filter is an opaque predicate passed through to the store unchanged.
// Keys are field names (dot notation allowed), values are literals or
// store operator documents such as {"$gte": 18}.
type Filter map[string]interface{}

// IsEmpty reports whether the filter matches every record.
func (f Filter) IsEmpty() bool {
	return len(f) == 0
}

// Sort specifies field and direction for sorting results
type Sort struct {
	Field string
	Order SortOrder
}

// IsZero reports whether no sort was requested.
func (s Sort) IsZero() bool {
	return s.Field == ""
}

// Descending reports whether the sort runs from highest to lowest.
func (s Sort) Descending() bool {
	return s.Order == SortDesc
}

// SortOrder defines the sort direction for queries.
type SortOrder string

// Sort order constants
const (
	// SortAsc sorts in ascending order
	SortAsc SortOrder = "asc"
	// SortDesc sorts in descending order
	SortDesc SortOrder = "desc"
)

// SortBy builds an ascending or descending sort on field.
func SortBy(field string, descending bool) Sort {
	if descending {
		return Sort{Field: field, Order: SortDesc}
	}
	return Sort{Field: field, Order: SortAsc}
}

// Query combines an optional filter and an optional sort.
type Query struct {
	Filter Filter
	Sort   Sort
}

// Pagination specifies zero-based page parameters.
type Pagination struct {
	PageIndex int
	PageSize  int
}

// Offset returns the number of records skipped before the page starts.
func (p Pagination) Offset() int64 {
	if p.PageIndex <= 0 || p.PageSize <= 0 {
		return 0
	}
	return int64(p.PageIndex) * int64(p.PageSize)
}

// Limit returns the page size for store queries
func (p Pagination) Limit() int64 {
	if p.PageSize < 0 {
		return 0
	}
	return int64(p.PageSize)
}
