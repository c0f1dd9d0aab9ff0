package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/repository/partition"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"github.com/nimburion/docroute/pkg/store"
	"github.com/nimburion/docroute/pkg/store/memory"
)

type place struct {
	repository.Document `bson:",inline"`
	Name                string                  `bson:"name"`
	Rank                int                     `bson:"rank"`
	Home                *repository.Geolocation `bson:"home,omitempty"`
}

type account struct {
	repository.Document `bson:",inline"`
	Owner               string `bson:"owner"`
	Balance             int64  `bson:"balance"`
	Version             int64  `bson:"version"`
}

func (a *account) GetVersion() int64        { return a.Version }
func (a *account) SetVersion(version int64) { a.Version = version }

func at(lng, lat float64) *repository.Geolocation {
	g := repository.NewGeolocation(lng, lat)
	return &g
}

type fixture struct {
	client     *memory.Client
	partitions *partition.Manager
	registry   *selector.Registry
	selector   *selector.Selector
}

func newFixture(t *testing.T, level partition.Level) *fixture {
	t.Helper()
	client := memory.NewClient(nil)
	t.Cleanup(func() { _ = client.Close() })
	m := partition.NewManager()
	m.ConfigureLevel(level)
	r := selector.NewRegistry()
	return &fixture{
		client:     client,
		partitions: m,
		registry:   r,
		selector:   selector.New(client, m, r, "Demo"),
	}
}

func newPlaces(t *testing.T) (*Engine[place, *place], *fixture) {
	t.Helper()
	f := newFixture(t, partition.LevelDisabled)
	return New[place](f.selector, Options{}), f
}

// seedPlaces inserts n places with ranks 0..n-1 in shuffled order.
func seedPlaces(t *testing.T, e *Engine[place, *place], n int) {
	t.Helper()
	records := make([]*place, 0, n)
	for i := 0; i < n; i++ {
		rank := (i * 7) % n
		if n%7 == 0 {
			rank = i
		}
		records = append(records, &place{
			Document: repository.Document{ID: fmt.Sprintf("p%03d", rank)},
			Name:     fmt.Sprintf("place-%d", rank),
			Rank:     rank,
		})
	}
	if err := e.AddMany(context.Background(), "", records); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func ids(records []place) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

var errInjected = errors.New("injected write failure")

// faultyClient fails replace and delete calls on one record id.
type faultyClient struct {
	*memory.Client
	failID string
}

func (c *faultyClient) Collection(database, name string) store.Collection {
	return &faultyCollection{Collection: c.Client.Collection(database, name), failID: c.failID}
}

type faultyCollection struct {
	store.Collection
	failID string
}

func (c *faultyCollection) ReplaceOne(ctx context.Context, filter repository.Filter, doc interface{}) (store.ReplaceResult, error) {
	if filter[repository.IDField] == c.failID {
		return store.ReplaceResult{}, errInjected
	}
	return c.Collection.ReplaceOne(ctx, filter, doc)
}

func (c *faultyCollection) DeleteOne(ctx context.Context, filter repository.Filter) (int64, error) {
	if filter[repository.IDField] == c.failID {
		return 0, errInjected
	}
	return c.Collection.DeleteOne(ctx, filter)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
