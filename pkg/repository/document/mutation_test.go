package document

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"github.com/nimburion/docroute/pkg/store"
	"github.com/nimburion/docroute/pkg/store/memory"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

func TestAdd_GeneratesObjectID(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()

	p := &place{Name: "colosseum"}
	if err := e.Add(ctx, "", p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !objectIDPattern.MatchString(p.ID) {
		t.Fatalf("expected generated object id, got %q", p.ID)
	}

	got, err := e.Get(ctx, "", p.ID)
	if err != nil || got == nil || got.Name != "colosseum" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
}

func TestAdd_KeepsIDAndUsesConfiguredGenerator(t *testing.T) {
	f := newFixture(t, 0)
	e := New[place](f.selector, Options{IDGenerator: repository.UUIDGenerator})
	ctx := context.Background()

	kept := &place{Document: repository.Document{ID: "fixed"}}
	generated := &place{}
	if err := e.Add(ctx, "", kept); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Add(ctx, "", generated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kept.ID != "fixed" {
		t.Fatalf("existing id overwritten: %q", kept.ID)
	}
	if _, err := uuid.Parse(generated.ID); err != nil {
		t.Fatalf("expected uuid id, got %q: %v", generated.ID, err)
	}
}

func TestAdd_DuplicateIDPropagatesStoreError(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()
	_ = e.Add(ctx, "", &place{Document: repository.Document{ID: "dup"}})

	err := e.Add(ctx, "", &place{Document: repository.Document{ID: "dup"}})
	if !errors.Is(err, memory.ErrDuplicateKey) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestAdd_RejectsNil(t *testing.T) {
	e, _ := newPlaces(t)
	if err := e.Add(context.Background(), "", nil); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := e.AddMany(context.Background(), "", []*place{{}, nil}); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddMany(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()

	records := []*place{{Name: "a"}, {Name: "b"}, {Document: repository.Document{ID: "c"}, Name: "c"}}
	if err := e.AddMany(ctx, "", records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range records {
		if r.ID == "" {
			t.Fatal("expected every record to get an id before insertion")
		}
	}
	if n, _ := e.CountExact(ctx, "", nil); n != 3 {
		t.Fatalf("expected 3 records, got %d", n)
	}

	if err := e.AddMany(ctx, "", nil); err != nil {
		t.Fatalf("empty AddMany must be a no-op, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()
	p := &place{Document: repository.Document{ID: "p1"}, Name: "before"}
	_ = e.Add(ctx, "", p)

	p.Name = "after"
	n, err := e.Update(ctx, "", p)
	if err != nil || n != 1 {
		t.Fatalf("Update() = %d, %v; want 1", n, err)
	}
	got, _ := e.Get(ctx, "", "p1")
	if got.Name != "after" {
		t.Fatalf("expected stored name to change, got %q", got.Name)
	}

	n, err = e.Update(ctx, "", p)
	if err != nil || n != 0 {
		t.Fatalf("unchanged Update() = %d, %v; want 0", n, err)
	}

	n, err = e.Update(ctx, "", &place{Document: repository.Document{ID: "ghost"}})
	if err != nil || n != 0 {
		t.Fatalf("Update(missing) = %d, %v; want 0", n, err)
	}

	if _, err := e.Update(ctx, "", &place{}); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("expected validation error for blank id, got %v", err)
	}
	if _, err := e.Update(ctx, "", nil); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("expected validation error for nil record, got %v", err)
	}
}

type unacknowledgedCollection struct {
	store.Collection
}

func (unacknowledgedCollection) ReplaceOne(context.Context, repository.Filter, interface{}) (store.ReplaceResult, error) {
	return store.ReplaceResult{MatchedCount: store.UnknownCount, ModifiedCount: store.UnknownCount}, nil
}

type unacknowledgedClient struct {
	*memory.Client
}

func (c unacknowledgedClient) Collection(database, name string) store.Collection {
	return unacknowledgedCollection{Collection: c.Client.Collection(database, name)}
}

func TestUpdate_UnacknowledgedReportsUnknownCount(t *testing.T) {
	f := newFixture(t, 0)
	sel := selector.New(unacknowledgedClient{Client: f.client}, f.partitions, f.registry, "Demo")
	e := New[place](sel, Options{})

	n, err := e.Update(context.Background(), "", &place{Document: repository.Document{ID: "p1"}})
	if err != nil || n != store.UnknownCount {
		t.Fatalf("Update() = %d, %v; want %d", n, err, store.UnknownCount)
	}
}

func TestUpdate_OptimisticLocking(t *testing.T) {
	f := newFixture(t, 0)
	e := New[account](f.selector, Options{})
	ctx := context.Background()

	a := &account{Owner: "ada", Balance: 10}
	if err := e.Add(ctx, "", a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("expected new versioned record to start at 1, got %d", a.Version)
	}

	stale, _ := e.Get(ctx, "", a.ID)

	a.Balance = 20
	if n, err := e.Update(ctx, "", a); err != nil || n != 1 {
		t.Fatalf("Update() = %d, %v", n, err)
	}
	if a.Version != 2 {
		t.Fatalf("expected version 2 after update, got %d", a.Version)
	}

	stale.Balance = 30
	_, err := e.Update(ctx, "", stale)
	var lockErr *repository.OptimisticLockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected optimistic lock error, got %v", err)
	}
	if lockErr.RecordID != a.ID || lockErr.Expected != 1 || lockErr.Collection != "account" {
		t.Fatalf("unexpected lock error: %+v", lockErr)
	}
	if stale.Version != 1 {
		t.Fatalf("failed update must restore the version, got %d", stale.Version)
	}

	stored, _ := e.Get(ctx, "", a.ID)
	if stored.Balance != 20 || stored.Version != 2 {
		t.Fatalf("stale write must not land: %+v", stored)
	}

	n, err := e.Update(ctx, "", &account{Document: repository.Document{ID: "ghost"}, Version: 4})
	if err != nil || n != 0 {
		t.Fatalf("versioned Update(missing) = %d, %v; want 0, nil", n, err)
	}
}

func TestDeleteAndDeleteMany(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()
	seedPlaces(t, e, 6)

	n, err := e.Delete(ctx, "", "p000")
	if err != nil || n != 1 {
		t.Fatalf("Delete() = %d, %v; want 1", n, err)
	}
	n, err = e.Delete(ctx, "", "p000")
	if err != nil || n != 0 {
		t.Fatalf("second Delete() = %d, %v; want 0", n, err)
	}

	n, err = e.DeleteMany(ctx, "", repository.Filter{"rank": map[string]interface{}{"$gte": 3}})
	if err != nil || n != 3 {
		t.Fatalf("DeleteMany() = %d, %v; want 3", n, err)
	}
	if left, _ := e.CountExact(ctx, "", nil); left != 2 {
		t.Fatalf("expected 2 records left, got %d", left)
	}

	if _, err := e.Delete(ctx, "", ""); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAsyncVariants(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()

	added, err := e.AddAsync(ctx, "", &place{Document: repository.Document{ID: "a1"}, Name: "async"})
	if err != nil {
		t.Fatalf("AddAsync: %v", err)
	}
	if _, err := added.Wait(); err != nil {
		t.Fatalf("AddAsync wait: %v", err)
	}

	many, err := e.AddManyAsync(ctx, "", []*place{{Name: "x"}, {Name: "y"}})
	if err != nil {
		t.Fatalf("AddManyAsync: %v", err)
	}
	<-many.Done()
	if _, err := many.Wait(); err != nil {
		t.Fatalf("AddManyAsync wait: %v", err)
	}

	updated, err := e.UpdateAsync(ctx, "", &place{Document: repository.Document{ID: "a1"}, Name: "changed"})
	if err != nil {
		t.Fatalf("UpdateAsync: %v", err)
	}
	if n, err := updated.WaitContext(ctx); err != nil || n != 1 {
		t.Fatalf("UpdateAsync result = %d, %v; want 1", n, err)
	}

	deleted, err := e.DeleteAsync(ctx, "", "a1")
	if err != nil {
		t.Fatalf("DeleteAsync: %v", err)
	}
	if n, err := deleted.Wait(); err != nil || n != 1 {
		t.Fatalf("DeleteAsync result = %d, %v; want 1", n, err)
	}

	cleared, err := e.DeleteManyAsync(ctx, "", nil)
	if err != nil {
		t.Fatalf("DeleteManyAsync: %v", err)
	}
	if n, err := cleared.Wait(); err != nil || n != 2 {
		t.Fatalf("DeleteManyAsync result = %d, %v; want 2", n, err)
	}

	dropped, err := e.DropCollectionAsync(ctx, "")
	if err != nil {
		t.Fatalf("DropCollectionAsync: %v", err)
	}
	if _, err := dropped.Wait(); err != nil {
		t.Fatalf("DropCollectionAsync wait: %v", err)
	}
}

func TestAsyncVariants_ValidateSynchronously(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()

	if p, err := e.AddAsync(ctx, "", nil); p != nil || !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("AddAsync(nil) = %v, %v", p, err)
	}
	if p, err := e.UpdateAsync(ctx, "", &place{}); p != nil || !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("UpdateAsync(blank id) = %v, %v", p, err)
	}
	if p, err := e.DeleteAsync(ctx, "", ""); p != nil || !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("DeleteAsync(blank id) = %v, %v", p, err)
	}
}

func TestAsyncVariants_FollowCallerContext(t *testing.T) {
	e, _ := newPlaces(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &place{Document: repository.Document{ID: "late"}, Name: "late"}
	p, err := e.AddAsync(ctx, "", rec)
	if err == nil {
		_, err = p.Wait()
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got, _ := e.Get(context.Background(), "", "late"); got != nil {
		t.Fatalf("cancelled insert must not land: %+v", got)
	}

	detached, err := e.AddAsync(context.WithoutCancel(ctx), "", rec)
	if err != nil {
		t.Fatalf("AddAsync: %v", err)
	}
	if _, err := detached.Wait(); err != nil {
		t.Fatalf("detached insert: %v", err)
	}
	if got, _ := e.Get(context.Background(), "", "late"); got == nil {
		t.Fatal("detached insert must land")
	}
}

func TestPending_WaitContextGivesUp(t *testing.T) {
	release := make(chan struct{})
	p := start(context.Background(), func(context.Context) (int, error) {
		<-release
		return 7, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.WaitContext(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	if v, err := p.Wait(); err != nil || v != 7 {
		t.Fatalf("Wait() = %d, %v; want 7", v, err)
	}
}

func TestDropCollection_ThenGetAllIsEmpty(t *testing.T) {
	e, f := newPlaces(t)
	ctx := context.Background()
	seedPlaces(t, e, 3)

	if err := e.DropCollection(ctx, ""); err != nil {
		t.Fatalf("drop: %v", err)
	}
	got, err := e.GetAll(ctx, "", repository.Query{})
	if err != nil || len(got) != 0 {
		t.Fatalf("GetAll after drop = %v, %v; want empty", ids(got), err)
	}
	names, _ := f.client.ListCollectionNames(ctx, "Demo")
	if len(names) != 0 {
		t.Fatalf("expected no collections after drop, got %v", names)
	}
	if err := e.DropCollection(ctx, ""); err != nil {
		t.Fatalf("dropping a missing collection must succeed, got %v", err)
	}
}
