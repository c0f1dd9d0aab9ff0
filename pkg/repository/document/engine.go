// Package document implements the generic query engine over a document
// store: counting, paging, top-N, CRUD with synchronous and asynchronous
// variants, batches and proximity search.
//
// Every Engine operation takes a collection argument. An empty collection
// resolves the record type's default location through the selector,
// including partition routing; a non-empty collection is used verbatim.
package document

import (
	"context"
	"strings"
	"time"

	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/observability/metrics"
	"github.com/nimburion/docroute/pkg/observability/tracing"
	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"github.com/nimburion/docroute/pkg/resilience"
	"github.com/nimburion/docroute/pkg/store"
)

// Defaults applied by New when Options leave a value unset.
const (
	DefaultBatchConcurrency = 8
	DefaultPingTimeout      = time.Second
)

// RecordPointer constrains the pointer type of a record so that the engine
// can read and assign identifiers.
type RecordPointer[T any] interface {
	*T
	repository.Record
}

// Options configures an Engine.
type Options struct {
	Logger logger.Logger
	// IDGenerator assigns identifiers to records added without one.
	IDGenerator repository.IDGenerator
	// BatchConcurrency bounds the in-flight items of unsupervised batches.
	BatchConcurrency int
	PingTimeout      time.Duration
	// System names the store in spans (e.g. "mongodb").
	System string
}

// OptionsFromConfig derives engine options from the database configuration.
func OptionsFromConfig(cfg config.DatabaseConfig, log logger.Logger) (Options, error) {
	newID, err := repository.ParseIDStrategy(strings.ToLower(strings.TrimSpace(cfg.IDStrategy)))
	if err != nil {
		return Options{}, repository.NewConfigurationError("%v", err)
	}
	return Options{
		Logger:           log,
		IDGenerator:      newID,
		BatchConcurrency: cfg.BatchConcurrency,
		PingTimeout:      cfg.PingTimeout,
		System:           strings.ToLower(strings.TrimSpace(cfg.Type)),
	}, nil
}

// Engine runs queries and mutations for records of type T.
type Engine[T any, PT RecordPointer[T]] struct {
	selector    *selector.Selector
	logger      logger.Logger
	newID       repository.IDGenerator
	concurrency int
	pingTimeout time.Duration
	system      string
	record      string
}

// New creates an Engine routing through sel.
func New[T any, PT RecordPointer[T]](sel *selector.Selector, opts Options) *Engine[T, PT] {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = repository.ObjectIDGenerator
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = DefaultBatchConcurrency
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = DefaultPingTimeout
	}
	record := selector.TypeName[T]()
	return &Engine[T, PT]{
		selector:    sel,
		logger:      opts.Logger.With("record", record),
		newID:       opts.IDGenerator,
		concurrency: opts.BatchConcurrency,
		pingTimeout: opts.PingTimeout,
		system:      opts.System,
		record:      record,
	}
}

// Selector returns the selector used for routing.
func (e *Engine[T, PT]) Selector() *selector.Selector {
	return e.selector
}

// Target resolves the physical location an operation on collection would use.
func (e *Engine[T, PT]) Target(ctx context.Context, collection string) (selector.Target, error) {
	return selector.TargetOf[T](ctx, e.selector, collection)
}

// Collection returns the raw store handle for collection, for queries the
// engine does not cover.
func (e *Engine[T, PT]) Collection(ctx context.Context, collection string) (store.Collection, error) {
	coll, _, err := e.resolve(ctx, collection)
	return coll, err
}

// CollectionNames lists the collections of database. A blank database lists
// the database T resolves to when it declares none.
func (e *Engine[T, PT]) CollectionNames(ctx context.Context, database string) ([]string, error) {
	target := selector.Target{Database: database, Partition: e.selector.Partitions().CurrentPartitionName(ctx)}
	var names []string
	err := e.observe(ctx, "collection_names", tracing.SpanOperationList, target, func(ctx context.Context) error {
		var err error
		names, err = e.selector.CollectionNames(ctx, database)
		return err
	})
	return names, err
}

// Ping reports whether the store answers within the ping timeout. Timeouts
// and failures are both reported as not reachable.
func (e *Engine[T, PT]) Ping(ctx context.Context) bool {
	return resilience.Reachable(ctx, e.pingTimeout, e.selector.Client().Ping)
}

func (e *Engine[T, PT]) resolve(ctx context.Context, collection string) (store.Collection, selector.Target, error) {
	return selector.Resolve[T](ctx, e.selector, collection)
}

// observe runs fn inside a store span and records its metrics and a debug
// log line.
func (e *Engine[T, PT]) observe(ctx context.Context, operation string, spanOp tracing.SpanOperation, target selector.Target, fn func(context.Context) error) error {
	start := time.Now()
	metrics.IncrementInFlight()
	defer metrics.DecrementInFlight()

	ctx, span := tracing.StartStoreSpan(ctx, spanOp,
		tracing.WithSystem(e.system),
		tracing.WithDatabase(target.Database),
		tracing.WithCollection(target.Collection),
		tracing.WithRecordType(e.record),
		tracing.WithPartition(target.Partition),
	)
	err := fn(ctx)
	tracing.End(span, err)

	duration := time.Since(start)
	metrics.RecordStoreOperation(operation, e.record, err, duration)

	log := e.logger.WithContext(ctx)
	if err != nil {
		log.Debug("document operation failed",
			"operation", operation,
			"database", target.Database,
			"collection", target.Collection,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return err
	}
	log.Debug("document operation completed",
		"operation", operation,
		"database", target.Database,
		"collection", target.Collection,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}
