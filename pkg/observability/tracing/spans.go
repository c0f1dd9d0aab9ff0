package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer scope used for document store spans.
const InstrumentationName = "github.com/nimburion/docroute/store"

// SpanOperation represents a traced document store operation.
type SpanOperation string

// Span operation constants
const (
	SpanOperationFind    SpanOperation = "find"
	SpanOperationCount   SpanOperation = "count"
	SpanOperationInsert  SpanOperation = "insert"
	SpanOperationReplace SpanOperation = "replace"
	SpanOperationDelete  SpanOperation = "delete"
	// SpanOperationNear is a proximity query, including the index check.
	SpanOperationNear  SpanOperation = "near"
	SpanOperationIndex SpanOperation = "index"
	SpanOperationDrop  SpanOperation = "drop"
	SpanOperationList  SpanOperation = "list"
)

// StartStoreSpan creates a client span for a document store operation.
// The span is named "<operation> <collection>" when a collection is known.
func StartStoreSpan(ctx context.Context, operation SpanOperation, opts ...StoreSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer(InstrumentationName)

	spanOpts := &storeSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := string(operation)
	if spanOpts.collection != "" {
		spanName = fmt.Sprintf("%s %s", operation, spanOpts.collection)
	}

	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// StoreSpanOption configures a store span.
type StoreSpanOption func(*storeSpanOptions)

type storeSpanOptions struct {
	collection string
	attributes []attribute.KeyValue
}

// WithCollection sets the physical collection name.
func WithCollection(collection string) StoreSpanOption {
	return func(opts *storeSpanOptions) {
		opts.collection = collection
		opts.attributes = append(opts.attributes, attribute.String("db.mongodb.collection", collection))
	}
}

// WithDatabase sets the physical database name.
func WithDatabase(name string) StoreSpanOption {
	return func(opts *storeSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.name", name))
	}
}

// WithSystem sets the store system (e.g., "mongodb", "memory").
func WithSystem(system string) StoreSpanOption {
	return func(opts *storeSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithRecordType sets the Go record type routed by the operation.
func WithRecordType(name string) StoreSpanOption {
	return func(opts *storeSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("docroute.record", name))
	}
}

// WithPartition sets the partition bound to the operation, if any.
func WithPartition(name string) StoreSpanOption {
	return func(opts *storeSpanOptions) {
		if name == "" {
			return
		}
		opts.attributes = append(opts.attributes, attribute.String("docroute.partition", name))
	}
}

// WithItems sets the number of items handled by a batch operation.
func WithItems(n int) StoreSpanOption {
	return func(opts *storeSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.Int("docroute.batch.items", n))
	}
}

// RecordError records an error in the span and sets its status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// End records err (or success) and ends the span.
func End(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}
