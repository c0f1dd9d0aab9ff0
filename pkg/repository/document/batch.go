package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/docroute/pkg/observability/metrics"
	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"github.com/nimburion/docroute/pkg/store"
	"golang.org/x/sync/errgroup"
)

// ItemError is the failure of one item of a batch.
type ItemError struct {
	Index int
	ID    string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("batch item %d (id %s): %v", e.Index, e.ID, e.Err)
}

// Unwrap returns the store error of the item.
func (e *ItemError) Unwrap() error {
	return e.Err
}

// ItemResult is the outcome of one item of a supervised batch.
type ItemResult struct {
	Index int
	ID    string
	// Count is the modified or deleted count reported for the item.
	Count int64
	Err   error
}

// BatchResult collects the per-item outcomes of a supervised batch, in
// input order.
type BatchResult struct {
	Items []ItemResult
}

// Succeeded returns the number of items that did not fail.
func (r BatchResult) Succeeded() int {
	n := 0
	for _, item := range r.Items {
		if item.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the failed items.
func (r BatchResult) Failed() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		if item.Err != nil {
			failed = append(failed, item)
		}
	}
	return failed
}

// Count sums the counts of the successful items. It is store.UnknownCount
// when any successful item reported an unknown count.
func (r BatchResult) Count() int64 {
	return sumCounts(r.Items)
}

// Err joins the item failures as *ItemError values, or returns nil.
func (r BatchResult) Err() error {
	var errs []error
	for _, item := range r.Items {
		if item.Err != nil {
			errs = append(errs, &ItemError{Index: item.Index, ID: item.ID, Err: item.Err})
		}
	}
	return errors.Join(errs...)
}

func sumCounts(items []ItemResult) int64 {
	var total int64
	for _, item := range items {
		if item.Err != nil {
			continue
		}
		if item.Count == store.UnknownCount {
			return store.UnknownCount
		}
		total += item.Count
	}
	return total
}

// batch is a resolved batch: one call per item, all on the same collection.
type batch struct {
	operation string
	target    selector.Target
	ids       []string
	calls     []countFunc
}

// UpdateMany replaces records one after the other. It stops at the first
// failure and returns the summed count so far with an *ItemError; earlier
// replacements are kept.
func (e *Engine[T, PT]) UpdateMany(ctx context.Context, collection string, records []*T) (int64, error) {
	b, err := e.prepareUpdateBatch(ctx, collection, records)
	if err != nil {
		return 0, err
	}
	return e.runSequential(ctx, b)
}

// UpdateManyAsync is UpdateMany running in the background.
func (e *Engine[T, PT]) UpdateManyAsync(ctx context.Context, collection string, records []*T) (*Pending[int64], error) {
	b, err := e.prepareUpdateBatch(ctx, collection, records)
	if err != nil {
		return nil, err
	}
	return start(ctx, func(ctx context.Context) (int64, error) {
		return e.runSequential(ctx, b)
	}), nil
}

// UpdateManySupervised replaces records one after the other in input order
// and reports each outcome. Failures do not stop later items, and when a
// batch holds the same id more than once the last item wins.
func (e *Engine[T, PT]) UpdateManySupervised(ctx context.Context, collection string, records []*T) (BatchResult, error) {
	b, err := e.prepareUpdateBatch(ctx, collection, records)
	if err != nil {
		return BatchResult{}, err
	}
	return e.runSupervised(ctx, b), nil
}

// UpdateManyUnsupervised starts every replacement and returns at once.
// Item failures are only logged and counted in metrics; callers that need
// them must use UpdateManySupervised. The batch outlives ctx cancellation.
func (e *Engine[T, PT]) UpdateManyUnsupervised(ctx context.Context, collection string, records []*T) error {
	b, err := e.prepareUpdateBatch(ctx, collection, records)
	if err != nil {
		return err
	}
	e.runUnsupervised(ctx, b)
	return nil
}

// DeleteByIDs deletes records one id after the other with the halting
// behavior of UpdateMany.
func (e *Engine[T, PT]) DeleteByIDs(ctx context.Context, collection string, ids []string) (int64, error) {
	b, err := e.prepareDeleteBatch(ctx, collection, ids)
	if err != nil {
		return 0, err
	}
	return e.runSequential(ctx, b)
}

// DeleteByIDsAsync is DeleteByIDs running in the background.
func (e *Engine[T, PT]) DeleteByIDsAsync(ctx context.Context, collection string, ids []string) (*Pending[int64], error) {
	b, err := e.prepareDeleteBatch(ctx, collection, ids)
	if err != nil {
		return nil, err
	}
	return start(ctx, func(ctx context.Context) (int64, error) {
		return e.runSequential(ctx, b)
	}), nil
}

// DeleteByIDsSupervised deletes ids in input order and reports each
// outcome. Failures do not stop later items.
func (e *Engine[T, PT]) DeleteByIDsSupervised(ctx context.Context, collection string, ids []string) (BatchResult, error) {
	b, err := e.prepareDeleteBatch(ctx, collection, ids)
	if err != nil {
		return BatchResult{}, err
	}
	return e.runSupervised(ctx, b), nil
}

// DeleteByIDsUnsupervised starts every deletion and returns at once, with
// the hazards of UpdateManyUnsupervised.
func (e *Engine[T, PT]) DeleteByIDsUnsupervised(ctx context.Context, collection string, ids []string) error {
	b, err := e.prepareDeleteBatch(ctx, collection, ids)
	if err != nil {
		return err
	}
	e.runUnsupervised(ctx, b)
	return nil
}

func (e *Engine[T, PT]) prepareUpdateBatch(ctx context.Context, collection string, records []*T) (batch, error) {
	for i, record := range records {
		if err := validateForUpdate[T, PT](record, i); err != nil {
			return batch{}, err
		}
	}
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return batch{}, err
	}
	b := batch{
		operation: "update_many",
		target:    target,
		ids:       make([]string, len(records)),
		calls:     make([]countFunc, len(records)),
	}
	for i, record := range records {
		b.ids[i] = PT(record).GetID()
		b.calls[i] = e.updateFunc(coll, target, record)
	}
	return b, nil
}

func (e *Engine[T, PT]) prepareDeleteBatch(ctx context.Context, collection string, ids []string) (batch, error) {
	for i, id := range ids {
		if id == "" {
			return batch{}, repository.NewValidationError("ids", "item %d is blank", i)
		}
	}
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return batch{}, err
	}
	b := batch{
		operation: "delete_by_ids",
		target:    target,
		ids:       append([]string(nil), ids...),
		calls:     make([]countFunc, len(ids)),
	}
	for i, id := range b.ids {
		b.calls[i] = e.deleteFunc(coll, target, id)
	}
	return b, nil
}

func (e *Engine[T, PT]) runSequential(ctx context.Context, b batch) (int64, error) {
	items := make([]ItemResult, 0, len(b.calls))
	for i, call := range b.calls {
		n, err := call(ctx)
		metrics.RecordBatchItem(b.operation, err)
		if err != nil {
			return sumCounts(items), &ItemError{Index: i, ID: b.ids[i], Err: err}
		}
		items = append(items, ItemResult{Index: i, ID: b.ids[i], Count: n})
	}
	return sumCounts(items), nil
}

func (e *Engine[T, PT]) runSupervised(ctx context.Context, b batch) BatchResult {
	result := BatchResult{Items: make([]ItemResult, len(b.calls))}
	for i, call := range b.calls {
		n, err := call(ctx)
		metrics.RecordBatchItem(b.operation, err)
		result.Items[i] = ItemResult{Index: i, ID: b.ids[i], Count: n, Err: err}
	}

	if failed := len(result.Failed()); failed > 0 {
		e.logger.WithContext(ctx).Info("supervised batch finished with failures",
			"operation", b.operation,
			"collection", b.target.Collection,
			"items", len(b.calls),
			"failed", failed,
		)
	}
	return result
}

func (e *Engine[T, PT]) runUnsupervised(ctx context.Context, b batch) {
	ctx = context.WithoutCancel(ctx)
	log := e.logger.WithContext(ctx)
	go func() {
		started := time.Now()
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for i, call := range b.calls {
			g.Go(func() error {
				_, err := call(ctx)
				metrics.RecordBatchItem(b.operation, err)
				if err != nil {
					log.Warn("unsupervised batch item failed",
						"operation", b.operation,
						"database", b.target.Database,
						"collection", b.target.Collection,
						"index", i,
						"id", b.ids[i],
						"error", err,
					)
				}
				return nil
			})
		}
		_ = g.Wait()
		log.Debug("unsupervised batch finished",
			"operation", b.operation,
			"collection", b.target.Collection,
			"items", len(b.calls),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}()
}
