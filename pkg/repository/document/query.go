package document

import (
	"context"
	"math"

	"github.com/nimburion/docroute/pkg/observability/tracing"
	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/store"
)

// Count returns the number of records matching filter. An empty filter
// uses the store's estimated count, which may lag behind recent writes;
// any other filter is counted exactly.
func (e *Engine[T, PT]) Count(ctx context.Context, collection string, filter repository.Filter) (int64, error) {
	if filter.IsEmpty() {
		return e.EstimatedCount(ctx, collection)
	}
	return e.CountExact(ctx, collection, filter)
}

// CountExact counts the records matching filter exactly.
func (e *Engine[T, PT]) CountExact(ctx context.Context, collection string, filter repository.Filter) (int64, error) {
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return 0, err
	}
	var n int64
	err = e.observe(ctx, "count_exact", tracing.SpanOperationCount, target, func(ctx context.Context) error {
		var err error
		n, err = coll.CountDocuments(ctx, filter)
		return err
	})
	return n, err
}

// EstimatedCount returns the store's metadata count of the collection.
func (e *Engine[T, PT]) EstimatedCount(ctx context.Context, collection string) (int64, error) {
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return 0, err
	}
	var n int64
	err = e.observe(ctx, "count_estimated", tracing.SpanOperationCount, target, func(ctx context.Context) error {
		var err error
		n, err = coll.EstimatedDocumentCount(ctx)
		return err
	})
	return n, err
}

// GetAll returns every record matching q. The result is unbounded.
func (e *Engine[T, PT]) GetAll(ctx context.Context, collection string, q repository.Query) ([]T, error) {
	return e.find(ctx, "get_all", collection, q, 0, 0)
}

// GetPage returns the records of the zero-based page pageIndex. A page size
// of zero yields an empty page.
func (e *Engine[T, PT]) GetPage(ctx context.Context, collection string, pageIndex, pageSize int, q repository.Query) ([]T, error) {
	if pageIndex < 0 {
		return nil, repository.NewValidationError("page_index", "must not be negative, got %d", pageIndex)
	}
	if pageSize < 0 {
		return nil, repository.NewValidationError("page_size", "must not be negative, got %d", pageSize)
	}
	page := repository.Pagination{PageIndex: pageIndex, PageSize: pageSize}
	if page.Limit() == 0 {
		return []T{}, nil
	}
	return e.find(ctx, "get_page", collection, q, page.Offset(), page.Limit())
}

// PageCount returns ceil(count / pageSize) using the exact count of filter.
func (e *Engine[T, PT]) PageCount(ctx context.Context, collection string, pageSize int, filter repository.Filter) (int64, error) {
	if pageSize <= 0 {
		return 0, repository.NewValidationError("page_size", "must be positive, got %d", pageSize)
	}
	count, err := e.CountExact(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	return int64(math.Ceil(float64(count) / float64(pageSize))), nil
}

// GetTop returns the first n records of q.
func (e *Engine[T, PT]) GetTop(ctx context.Context, collection string, n int, q repository.Query) ([]T, error) {
	if n < 0 {
		return nil, repository.NewValidationError("n", "must not be negative, got %d", n)
	}
	return e.GetPage(ctx, collection, 0, n, q)
}

// GetTopPercent returns the first trunc(count * percent) records of q, where
// count is the exact count of q.Filter. percent must lie in [0, 1].
func (e *Engine[T, PT]) GetTopPercent(ctx context.Context, collection string, percent float64, q repository.Query) ([]T, error) {
	if !(percent >= 0 && percent <= 1) {
		return nil, repository.NewValidationError("percent", "must be between 0 and 1, got %v", percent)
	}
	count, err := e.CountExact(ctx, collection, q.Filter)
	if err != nil {
		return nil, err
	}
	return e.GetTop(ctx, collection, TopCount(count, percent), q)
}

// TopCount is the number of records GetTopPercent returns out of count.
func TopCount(count int64, percent float64) int {
	return int(float64(count) * percent)
}

// Get returns the record with the given id, or nil when none exists.
func (e *Engine[T, PT]) Get(ctx context.Context, collection, id string) (*T, error) {
	if id == "" {
		return nil, repository.NewValidationError("id", "must not be blank")
	}
	return e.findOne(ctx, "get", collection, repository.Filter{repository.IDField: id})
}

// FindOne returns the first record matching filter, or nil when none does.
func (e *Engine[T, PT]) FindOne(ctx context.Context, collection string, filter repository.Filter) (*T, error) {
	return e.findOne(ctx, "find_one", collection, filter)
}

func (e *Engine[T, PT]) find(ctx context.Context, operation, collection string, q repository.Query, skip, limit int64) ([]T, error) {
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	results := make([]T, 0)
	err = e.observe(ctx, operation, tracing.SpanOperationFind, target, func(ctx context.Context) error {
		return coll.Find(ctx, q.Filter, store.FindOptions{Sort: q.Sort, Skip: skip, Limit: limit}, &results)
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []T{}
	}
	return results, nil
}

func (e *Engine[T, PT]) findOne(ctx context.Context, operation, collection string, filter repository.Filter) (*T, error) {
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	var (
		record T
		found  bool
	)
	err = e.observe(ctx, operation, tracing.SpanOperationFind, target, func(ctx context.Context) error {
		var err error
		found, err = coll.FindOne(ctx, filter, &record)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}
