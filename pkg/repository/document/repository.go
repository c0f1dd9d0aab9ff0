package document

import (
	"context"

	"github.com/nimburion/docroute/pkg/repository"
)

// Repository is the convenience facade over an Engine that always works on
// the record type's default collection.
type Repository[T any, PT RecordPointer[T]] struct {
	engine *Engine[T, PT]
}

// NewRepository wraps engine.
func NewRepository[T any, PT RecordPointer[T]](engine *Engine[T, PT]) *Repository[T, PT] {
	return &Repository[T, PT]{engine: engine}
}

// Engine returns the wrapped engine for operations on other collections.
func (r *Repository[T, PT]) Engine() *Engine[T, PT] { return r.engine }

// Count counts records matching filter, estimating when filter is empty.
func (r *Repository[T, PT]) Count(ctx context.Context, filter repository.Filter) (int64, error) {
	return r.engine.Count(ctx, "", filter)
}

// CountExact counts records matching filter exactly.
func (r *Repository[T, PT]) CountExact(ctx context.Context, filter repository.Filter) (int64, error) {
	return r.engine.CountExact(ctx, "", filter)
}

// EstimatedCount returns the store's metadata count.
func (r *Repository[T, PT]) EstimatedCount(ctx context.Context) (int64, error) {
	return r.engine.EstimatedCount(ctx, "")
}

// GetAll returns every record matching q.
func (r *Repository[T, PT]) GetAll(ctx context.Context, q repository.Query) ([]T, error) {
	return r.engine.GetAll(ctx, "", q)
}

// GetPage returns the zero-based page pageIndex of q.
func (r *Repository[T, PT]) GetPage(ctx context.Context, pageIndex, pageSize int, q repository.Query) ([]T, error) {
	return r.engine.GetPage(ctx, "", pageIndex, pageSize, q)
}

// PageCount returns the number of pages of pageSize records matching filter.
func (r *Repository[T, PT]) PageCount(ctx context.Context, pageSize int, filter repository.Filter) (int64, error) {
	return r.engine.PageCount(ctx, "", pageSize, filter)
}

// GetTop returns the first n records of q.
func (r *Repository[T, PT]) GetTop(ctx context.Context, n int, q repository.Query) ([]T, error) {
	return r.engine.GetTop(ctx, "", n, q)
}

// GetTopPercent returns the leading fraction percent of the records of q.
func (r *Repository[T, PT]) GetTopPercent(ctx context.Context, percent float64, q repository.Query) ([]T, error) {
	return r.engine.GetTopPercent(ctx, "", percent, q)
}

// Get returns the record with the given id, or nil when none exists.
func (r *Repository[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	return r.engine.Get(ctx, "", id)
}

// FindOne returns the first record matching filter, or nil.
func (r *Repository[T, PT]) FindOne(ctx context.Context, filter repository.Filter) (*T, error) {
	return r.engine.FindOne(ctx, "", filter)
}

// Add inserts a record.
func (r *Repository[T, PT]) Add(ctx context.Context, record *T) error {
	return r.engine.Add(ctx, "", record)
}

// AddAsync inserts a record in the background.
func (r *Repository[T, PT]) AddAsync(ctx context.Context, record *T) (*Pending[struct{}], error) {
	return r.engine.AddAsync(ctx, "", record)
}

// AddMany inserts records with a single bulk call.
func (r *Repository[T, PT]) AddMany(ctx context.Context, records []*T) error {
	return r.engine.AddMany(ctx, "", records)
}

// AddManyAsync inserts records in the background.
func (r *Repository[T, PT]) AddManyAsync(ctx context.Context, records []*T) (*Pending[struct{}], error) {
	return r.engine.AddManyAsync(ctx, "", records)
}

// Update replaces a record and returns the modified count.
func (r *Repository[T, PT]) Update(ctx context.Context, record *T) (int64, error) {
	return r.engine.Update(ctx, "", record)
}

// UpdateAsync replaces a record in the background.
func (r *Repository[T, PT]) UpdateAsync(ctx context.Context, record *T) (*Pending[int64], error) {
	return r.engine.UpdateAsync(ctx, "", record)
}

// UpdateMany replaces records in order and stops at the first failure.
func (r *Repository[T, PT]) UpdateMany(ctx context.Context, records []*T) (int64, error) {
	return r.engine.UpdateMany(ctx, "", records)
}

// UpdateManyAsync runs UpdateMany in the background.
func (r *Repository[T, PT]) UpdateManyAsync(ctx context.Context, records []*T) (*Pending[int64], error) {
	return r.engine.UpdateManyAsync(ctx, "", records)
}

// UpdateManySupervised replaces records in order and reports every outcome.
func (r *Repository[T, PT]) UpdateManySupervised(ctx context.Context, records []*T) (BatchResult, error) {
	return r.engine.UpdateManySupervised(ctx, "", records)
}

// UpdateManyUnsupervised starts every replacement and only logs failures.
func (r *Repository[T, PT]) UpdateManyUnsupervised(ctx context.Context, records []*T) error {
	return r.engine.UpdateManyUnsupervised(ctx, "", records)
}

// Delete removes the record with the given id.
func (r *Repository[T, PT]) Delete(ctx context.Context, id string) (int64, error) {
	return r.engine.Delete(ctx, "", id)
}

// DeleteAsync removes a record in the background.
func (r *Repository[T, PT]) DeleteAsync(ctx context.Context, id string) (*Pending[int64], error) {
	return r.engine.DeleteAsync(ctx, "", id)
}

// DeleteMany removes every record matching filter.
func (r *Repository[T, PT]) DeleteMany(ctx context.Context, filter repository.Filter) (int64, error) {
	return r.engine.DeleteMany(ctx, "", filter)
}

// DeleteManyAsync removes matching records in the background.
func (r *Repository[T, PT]) DeleteManyAsync(ctx context.Context, filter repository.Filter) (*Pending[int64], error) {
	return r.engine.DeleteManyAsync(ctx, "", filter)
}

// DeleteByIDs removes ids in order and stops at the first failure.
func (r *Repository[T, PT]) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return r.engine.DeleteByIDs(ctx, "", ids)
}

// DeleteByIDsAsync runs DeleteByIDs in the background.
func (r *Repository[T, PT]) DeleteByIDsAsync(ctx context.Context, ids []string) (*Pending[int64], error) {
	return r.engine.DeleteByIDsAsync(ctx, "", ids)
}

// DeleteByIDsSupervised removes ids in order and reports every outcome.
func (r *Repository[T, PT]) DeleteByIDsSupervised(ctx context.Context, ids []string) (BatchResult, error) {
	return r.engine.DeleteByIDsSupervised(ctx, "", ids)
}

// DeleteByIDsUnsupervised starts every deletion and only logs failures.
func (r *Repository[T, PT]) DeleteByIDsUnsupervised(ctx context.Context, ids []string) error {
	return r.engine.DeleteByIDsUnsupervised(ctx, "", ids)
}

// NearBy returns records whose geolocation lies within radius meters of center.
func (r *Repository[T, PT]) NearBy(ctx context.Context, center repository.Geolocation, radius float64) ([]T, error) {
	return r.engine.NearBy(ctx, "", center, radius)
}

// NearByField returns records whose field lies between minRadius and maxRadius meters of center.
func (r *Repository[T, PT]) NearByField(ctx context.Context, field string, center repository.Geolocation, maxRadius, minRadius float64) ([]T, error) {
	return r.engine.NearByField(ctx, "", field, center, maxRadius, minRadius)
}

// DropCollection drops the default collection.
func (r *Repository[T, PT]) DropCollection(ctx context.Context) error {
	return r.engine.DropCollection(ctx, "")
}

// DropCollectionAsync drops the default collection in the background.
func (r *Repository[T, PT]) DropCollectionAsync(ctx context.Context) (*Pending[struct{}], error) {
	return r.engine.DropCollectionAsync(ctx, "")
}

// Ping reports whether the store answers within the ping timeout.
func (r *Repository[T, PT]) Ping(ctx context.Context) bool {
	return r.engine.Ping(ctx)
}
