package document

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/repository/partition"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var _ repository.Repository[place] = (*Repository[place, *place])(nil)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Database
	cfg.IDStrategy = " UUID "
	cfg.Type = "MongoDB"
	cfg.BatchConcurrency = 3

	opts, err := OptionsFromConfig(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.System != "mongodb" || opts.BatchConcurrency != 3 || opts.PingTimeout != time.Second {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if id := opts.IDGenerator(); len(id) != 36 {
		t.Fatalf("expected uuid generator, got %q", id)
	}

	cfg.IDStrategy = "sequence"
	if _, err := OptionsFromConfig(cfg, logger.NewNop()); !errors.Is(err, repository.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPing(t *testing.T) {
	e, f := newPlaces(t)
	if !e.Ping(context.Background()) {
		t.Fatal("expected open store to be reachable")
	}
	_ = f.client.Close()
	if e.Ping(context.Background()) {
		t.Fatal("expected closed store to be unreachable")
	}
}

func TestTarget_DefaultsAndExplicit(t *testing.T) {
	e, f := newPlaces(t)
	ctx := context.Background()

	got, err := e.Target(ctx, "")
	if err != nil || got.Database != "Demo" || got.Collection != "place" || got.Explicit {
		t.Fatalf("Target(\"\") = %+v, %v", got, err)
	}
	got, err = e.Target(ctx, "archive")
	if err != nil || got.Collection != "archive" || !got.Explicit {
		t.Fatalf("Target(archive) = %+v, %v", got, err)
	}

	selector.Register[place](f.registry, selector.Metadata{Database: "Geo", Collection: "Places"})
	got, _ = e.Target(ctx, "")
	if got.Database != "Geo" || got.Collection != "Places" {
		t.Fatalf("declared metadata must win, got %+v", got)
	}
}

func TestExplicitCollectionIsUsedVerbatim(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()

	if err := e.Add(ctx, "archive", &place{Document: repository.Document{ID: "a"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if n, _ := e.CountExact(ctx, "", nil); n != 0 {
		t.Fatalf("default collection must stay empty, got %d", n)
	}
	if n, _ := e.CountExact(ctx, "archive", nil); n != 1 {
		t.Fatalf("explicit collection must hold the record, got %d", n)
	}
	names, err := e.CollectionNames(ctx, "")
	if err != nil || !reflect.DeepEqual(names, []string{"archive"}) {
		t.Fatalf("CollectionNames() = %v, %v", names, err)
	}
	if coll, err := e.Collection(ctx, "archive"); err != nil || coll.Name() != "archive" || coll.Database() != "Demo" {
		t.Fatalf("Collection(archive) = %v, %v", coll, err)
	}
}

func TestPartitionRouting_CollectionLevel(t *testing.T) {
	f := newFixture(t, partition.LevelCollection)
	e := New[place](f.selector, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		for _, tenant := range []string{"tenantA", "tenantB"} {
			wg.Add(1)
			go func(i int, tenant string) {
				defer wg.Done()
				ctx, err := f.partitions.Bind(context.Background(), tenant)
				if err != nil {
					errs <- err
					return
				}
				id := fmt.Sprintf("%s-%02d", tenant, i)
				if err := e.Add(ctx, "", &place{Document: repository.Document{ID: id}, Name: tenant}); err != nil {
					errs <- err
				}
			}(i, tenant)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	for _, tenant := range []string{"tenantA", "tenantB"} {
		ctx, _ := f.partitions.Bind(context.Background(), tenant)
		all, err := e.GetAll(ctx, "", repository.Query{})
		if err != nil || len(all) != 20 {
			t.Fatalf("%s: GetAll() returned %d records, %v", tenant, len(all), err)
		}
		for _, p := range all {
			if p.Name != tenant {
				t.Fatalf("%s: found record of %s", tenant, p.Name)
			}
		}
	}

	names, _ := f.client.ListCollectionNames(context.Background(), "Demo")
	if !reflect.DeepEqual(names, []string{"place_tenantA", "place_tenantB"}) {
		t.Fatalf("unexpected physical collections %v", names)
	}

	if _, err := e.GetAll(context.Background(), "", repository.Query{}); !errors.Is(err, repository.ErrState) {
		t.Fatalf("expected state error without a bound partition, got %v", err)
	}
}

func TestPartitionRouting_DatabaseLevel(t *testing.T) {
	f := newFixture(t, partition.LevelDatabase)
	e := New[place](f.selector, Options{})

	ctx, _ := f.partitions.Bind(context.Background(), "tenantA")
	if err := e.Add(ctx, "", &place{Document: repository.Document{ID: "x"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	names, _ := f.client.ListCollectionNames(context.Background(), "Partition_tenantA")
	if !reflect.DeepEqual(names, []string{"place"}) {
		t.Fatalf("expected record in partition database, got %v", names)
	}
	listed, err := e.CollectionNames(ctx, "")
	if err != nil || !reflect.DeepEqual(listed, []string{"place"}) {
		t.Fatalf("CollectionNames() = %v, %v", listed, err)
	}
}

func TestOperations_EmitStoreSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	f := newFixture(t, partition.LevelCollection)
	e := New[place](f.selector, Options{System: "memory"})
	ctx, _ := f.partitions.Bind(context.Background(), "tenantA")

	if err := e.Add(ctx, "", &place{Document: repository.Document{ID: "a"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Add(ctx, "", &place{Document: repository.Document{ID: "a"}}); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	ok, failed := spans[0], spans[1]
	if ok.Name() != "insert place_tenantA" {
		t.Fatalf("unexpected span name %q", ok.Name())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range ok.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	for key, want := range map[attribute.Key]string{
		"db.system":             "memory",
		"db.name":               "Demo",
		"db.mongodb.collection": "place_tenantA",
		"docroute.record":       "place",
		"docroute.partition":    "tenantA",
	} {
		if got := attrs[key].AsString(); got != want {
			t.Fatalf("attribute %s = %q, want %q", key, got, want)
		}
	}
	if failed.Status().Code != codes.Error {
		t.Fatalf("expected failed insert span to carry an error status, got %v", failed.Status())
	}
}

func TestRepository_UsesDefaultCollection(t *testing.T) {
	e, _ := newPlaces(t)
	r := NewRepository(e)
	ctx := context.Background()

	if r.Engine() != e {
		t.Fatal("Engine() must return the wrapped engine")
	}
	if err := r.Add(ctx, &place{Document: repository.Document{ID: "r1"}, Rank: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := r.Get(ctx, "r1")
	if err != nil || got == nil || got.Rank != 2 {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
	if n, _ := e.CountExact(ctx, "place", nil); n != 1 {
		t.Fatalf("expected record in the default collection, got %d", n)
	}
	if !r.Ping(ctx) {
		t.Fatal("expected store to be reachable")
	}
}
