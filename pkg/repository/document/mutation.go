package document

import (
	"context"

	"github.com/nimburion/docroute/pkg/observability/tracing"
	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"github.com/nimburion/docroute/pkg/store"
)

type countFunc func(ctx context.Context) (int64, error)

// Add inserts record, assigning an identifier first when it has none.
func (e *Engine[T, PT]) Add(ctx context.Context, collection string, record *T) error {
	run, err := e.prepareAdd(ctx, collection, record)
	if err != nil {
		return err
	}
	return run(ctx)
}

// AddAsync is Add running in the background. Validation and routing errors
// are returned before anything starts. The insert runs on ctx, so cancelling
// ctx cancels it; detach with context.WithoutCancel to let it outlive the
// caller.
func (e *Engine[T, PT]) AddAsync(ctx context.Context, collection string, record *T) (*Pending[struct{}], error) {
	run, err := e.prepareAdd(ctx, collection, record)
	if err != nil {
		return nil, err
	}
	return start(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, run(ctx)
	}), nil
}

// AddMany inserts records in order with a single bulk call. Whether a
// failure leaves earlier records inserted is up to the store.
func (e *Engine[T, PT]) AddMany(ctx context.Context, collection string, records []*T) error {
	run, err := e.prepareAddMany(ctx, collection, records)
	if err != nil {
		return err
	}
	return run(ctx)
}

// AddManyAsync is AddMany running in the background.
func (e *Engine[T, PT]) AddManyAsync(ctx context.Context, collection string, records []*T) (*Pending[struct{}], error) {
	run, err := e.prepareAddMany(ctx, collection, records)
	if err != nil {
		return nil, err
	}
	return start(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, run(ctx)
	}), nil
}

// Update replaces the stored record with the same identifier and returns
// the modified count, or store.UnknownCount when the store does not report
// it. Versioned records only replace the stored version they were read at
// and fail with *repository.OptimisticLockError otherwise.
func (e *Engine[T, PT]) Update(ctx context.Context, collection string, record *T) (int64, error) {
	run, err := e.prepareUpdate(ctx, collection, record)
	if err != nil {
		return 0, err
	}
	return run(ctx)
}

// UpdateAsync is Update running in the background on ctx. Like AddAsync it
// is cancelled together with ctx.
func (e *Engine[T, PT]) UpdateAsync(ctx context.Context, collection string, record *T) (*Pending[int64], error) {
	run, err := e.prepareUpdate(ctx, collection, record)
	if err != nil {
		return nil, err
	}
	return start(ctx, run), nil
}

// Delete removes the record with the given id and returns the deleted count.
func (e *Engine[T, PT]) Delete(ctx context.Context, collection, id string) (int64, error) {
	run, err := e.prepareDelete(ctx, collection, id)
	if err != nil {
		return 0, err
	}
	return run(ctx)
}

// DeleteAsync is Delete running in the background.
func (e *Engine[T, PT]) DeleteAsync(ctx context.Context, collection, id string) (*Pending[int64], error) {
	run, err := e.prepareDelete(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return start(ctx, run), nil
}

// DeleteMany removes every record matching filter. An empty filter removes
// every record of the collection.
func (e *Engine[T, PT]) DeleteMany(ctx context.Context, collection string, filter repository.Filter) (int64, error) {
	run, err := e.prepareDeleteMany(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	return run(ctx)
}

// DeleteManyAsync is DeleteMany running in the background.
func (e *Engine[T, PT]) DeleteManyAsync(ctx context.Context, collection string, filter repository.Filter) (*Pending[int64], error) {
	run, err := e.prepareDeleteMany(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	return start(ctx, run), nil
}

// DropCollection removes the physical collection with its indexes. Reading
// a dropped collection returns no records.
func (e *Engine[T, PT]) DropCollection(ctx context.Context, collection string) error {
	run, err := e.prepareDrop(ctx, collection)
	if err != nil {
		return err
	}
	return run(ctx)
}

// DropCollectionAsync is DropCollection running in the background.
func (e *Engine[T, PT]) DropCollectionAsync(ctx context.Context, collection string) (*Pending[struct{}], error) {
	run, err := e.prepareDrop(ctx, collection)
	if err != nil {
		return nil, err
	}
	return start(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, run(ctx)
	}), nil
}

func (e *Engine[T, PT]) prepareAdd(ctx context.Context, collection string, record *T) (func(context.Context) error, error) {
	if record == nil {
		return nil, repository.NewValidationError("record", "must not be nil")
	}
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	e.prepareInsert(record)
	return func(ctx context.Context) error {
		return e.observe(ctx, "add", tracing.SpanOperationInsert, target, func(ctx context.Context) error {
			return coll.InsertOne(ctx, record)
		})
	}, nil
}

func (e *Engine[T, PT]) prepareAddMany(ctx context.Context, collection string, records []*T) (func(context.Context) error, error) {
	for i, record := range records {
		if record == nil {
			return nil, repository.NewValidationError("records", "item %d must not be nil", i)
		}
	}
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	docs := make([]interface{}, len(records))
	for i, record := range records {
		e.prepareInsert(record)
		docs[i] = record
	}
	return func(ctx context.Context) error {
		if len(docs) == 0 {
			return nil
		}
		return e.observe(ctx, "add_many", tracing.SpanOperationInsert, target, func(ctx context.Context) error {
			return coll.InsertMany(ctx, docs)
		})
	}, nil
}

// prepareInsert assigns a missing identifier and starts versioned records
// at version 1.
func (e *Engine[T, PT]) prepareInsert(record *T) {
	r := PT(record)
	if r.GetID() == "" {
		r.SetID(e.newID())
	}
	if v, ok := any(record).(repository.Versioned); ok && v.GetVersion() == 0 {
		v.SetVersion(1)
	}
}

func (e *Engine[T, PT]) prepareUpdate(ctx context.Context, collection string, record *T) (countFunc, error) {
	if err := validateForUpdate[T, PT](record, -1); err != nil {
		return nil, err
	}
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	return e.updateFunc(coll, target, record), nil
}

// validateForUpdate checks a single record (index < 0) or a batch item.
func validateForUpdate[T any, PT RecordPointer[T]](record *T, index int) error {
	field := "record"
	if index >= 0 {
		field = "records"
	}
	if record == nil {
		if index >= 0 {
			return repository.NewValidationError(field, "item %d must not be nil", index)
		}
		return repository.NewValidationError(field, "must not be nil")
	}
	if PT(record).GetID() == "" {
		if index >= 0 {
			return repository.NewValidationError(field, "item %d has a blank id", index)
		}
		return repository.NewValidationError("id", "must not be blank")
	}
	return nil
}

func (e *Engine[T, PT]) updateFunc(coll store.Collection, target selector.Target, record *T) countFunc {
	return func(ctx context.Context) (int64, error) {
		id := PT(record).GetID()
		filter := repository.Filter{repository.IDField: id}

		versioned, isVersioned := any(record).(repository.Versioned)
		var expected int64
		if isVersioned {
			expected = versioned.GetVersion()
			filter[repository.VersionField] = expected
			versioned.SetVersion(expected + 1)
		}

		var result store.ReplaceResult
		err := e.observe(ctx, "update", tracing.SpanOperationReplace, target, func(ctx context.Context) error {
			var err error
			result, err = coll.ReplaceOne(ctx, filter, record)
			return err
		})
		if err != nil {
			if isVersioned {
				versioned.SetVersion(expected)
			}
			return 0, err
		}
		if !result.Acknowledged {
			return store.UnknownCount, nil
		}
		if isVersioned && result.MatchedCount == 0 {
			versioned.SetVersion(expected)
			var current T
			found, err := coll.FindOne(ctx, repository.Filter{repository.IDField: id}, &current)
			if err != nil {
				return 0, err
			}
			if found {
				return 0, repository.NewOptimisticLockError(target.Collection, id, expected)
			}
		}
		return result.ModifiedCount, nil
	}
}

func (e *Engine[T, PT]) prepareDelete(ctx context.Context, collection, id string) (countFunc, error) {
	if id == "" {
		return nil, repository.NewValidationError("id", "must not be blank")
	}
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	return e.deleteFunc(coll, target, id), nil
}

func (e *Engine[T, PT]) deleteFunc(coll store.Collection, target selector.Target, id string) countFunc {
	return func(ctx context.Context) (int64, error) {
		var n int64
		err := e.observe(ctx, "delete", tracing.SpanOperationDelete, target, func(ctx context.Context) error {
			var err error
			n, err = coll.DeleteOne(ctx, repository.Filter{repository.IDField: id})
			return err
		})
		return n, err
	}
}

func (e *Engine[T, PT]) prepareDeleteMany(ctx context.Context, collection string, filter repository.Filter) (countFunc, error) {
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (int64, error) {
		var n int64
		err := e.observe(ctx, "delete_many", tracing.SpanOperationDelete, target, func(ctx context.Context) error {
			var err error
			n, err = coll.DeleteMany(ctx, filter)
			return err
		})
		return n, err
	}, nil
}

func (e *Engine[T, PT]) prepareDrop(ctx context.Context, collection string) (func(context.Context) error, error) {
	_, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		err := e.observe(ctx, "drop_collection", tracing.SpanOperationDrop, target, func(ctx context.Context) error {
			return e.selector.Client().DropCollection(ctx, target.Database, target.Collection)
		})
		if err == nil {
			e.logger.WithContext(ctx).Warn("collection dropped", "database", target.Database, "collection", target.Collection)
		}
		return err
	}, nil
}
