// Package memory implements the store contract in process memory. It is
// used by tests and by the "memory" database type; nothing survives Close.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/store"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("memory store is closed")
	// ErrDuplicateKey is returned when inserting an identifier that exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNoIndex is returned by proximity queries on a field without a
	// spherical index.
	ErrNoIndex = errors.New("unable to find index for $nearSphere query")
)

type collectionData struct {
	docs    []bson.Raw
	indexes map[string]store.IndexModel
}

// Client is an in-memory store.Client.
type Client struct {
	mu        sync.RWMutex
	databases map[string]map[string]*collectionData
	closed    bool
	logger    logger.Logger
}

var _ store.Client = (*Client)(nil)

// NewClient returns an empty in-memory store.
func NewClient(log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		databases: make(map[string]map[string]*collectionData),
		logger:    log,
	}
}

// Collection returns a handle on database/name.
func (c *Client) Collection(database, name string) store.Collection {
	return &Collection{client: c, database: database, name: name}
}

// ListCollectionNames returns the sorted collection names of database.
func (c *Client) ListCollectionNames(ctx context.Context, database string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	names := make([]string, 0, len(c.databases[database]))
	for name := range c.databases[database] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DropCollection removes database/name together with its indexes.
func (c *Client) DropCollection(ctx context.Context, database, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if colls, ok := c.databases[database]; ok {
		delete(colls, name)
		if len(colls) == 0 {
			delete(c.databases, database)
		}
	}
	c.logger.Debug("memory collection dropped", "database", database, "collection", name)
	return nil
}

// Ping fails once the client is closed.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// HealthCheck wraps Ping for health checkers.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("memory health check failed: %w", err)
	}
	return nil
}

// Close discards every database and marks the client closed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.databases = make(map[string]map[string]*collectionData)
	return nil
}

// data returns the collection storage, creating it when create is set.
// Callers hold c.mu.
func (c *Client) data(database, name string, create bool) (*collectionData, error) {
	if c.closed {
		return nil, ErrClosed
	}
	colls, ok := c.databases[database]
	if !ok {
		if !create {
			return nil, nil
		}
		colls = make(map[string]*collectionData)
		c.databases[database] = colls
	}
	data, ok := colls[name]
	if !ok && create {
		data = &collectionData{indexes: make(map[string]store.IndexModel)}
		colls[name] = data
	}
	return data, nil
}

// Collection is a handle on one in-memory collection.
type Collection struct {
	client   *Client
	database string
	name     string
}

var _ store.Collection = (*Collection)(nil)

// Database returns the database name.
func (c *Collection) Database() string { return c.database }

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// InsertOne inserts doc, failing with ErrDuplicateKey on a taken id.
func (c *Collection) InsertOne(ctx context.Context, doc interface{}) error {
	return c.InsertMany(ctx, []interface{}{doc})
}

// InsertMany inserts docs in order and stops at the first failure; the
// documents before it stay inserted.
func (c *Collection) InsertMany(ctx context.Context, docs []interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	data, err := c.client.data(c.database, c.name, true)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		raw, id, err := encode(doc)
		if err != nil {
			return err
		}
		if data.indexOf(id) >= 0 {
			return fmt.Errorf("%w: %s.%s _id %s", ErrDuplicateKey, c.database, c.name, id.String())
		}
		data.docs = append(data.docs, raw)
	}
	return nil
}

// ReplaceOne replaces the first document matching filter.
func (c *Collection) ReplaceOne(ctx context.Context, filter repository.Filter, doc interface{}) (store.ReplaceResult, error) {
	if err := ctx.Err(); err != nil {
		return store.ReplaceResult{}, err
	}
	compiled, err := compileFilter(filter)
	if err != nil {
		return store.ReplaceResult{}, err
	}
	raw, id, err := encode(doc)
	if err != nil {
		return store.ReplaceResult{}, err
	}

	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	data, err := c.client.data(c.database, c.name, false)
	if err != nil || data == nil {
		return store.ReplaceResult{Acknowledged: err == nil}, err
	}
	for i, existing := range data.docs {
		r, err := matchDocument(existing, compiled)
		if err != nil {
			return store.ReplaceResult{}, err
		}
		if !r.matched {
			continue
		}
		existingID, _ := existing.LookupErr(repository.IDField)
		if !existingID.Equal(id) {
			return store.ReplaceResult{}, fmt.Errorf("replacement would change immutable _id of %s", existingID.String())
		}
		result := store.ReplaceResult{MatchedCount: 1, Acknowledged: true}
		if !bytes.Equal(existing, raw) {
			data.docs[i] = raw
			result.ModifiedCount = 1
		}
		return result, nil
	}
	return store.ReplaceResult{Acknowledged: true}, nil
}

// DeleteOne deletes the first document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter repository.Filter) (int64, error) {
	return c.delete(ctx, filter, true)
}

// DeleteMany deletes every document matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter repository.Filter) (int64, error) {
	return c.delete(ctx, filter, false)
}

func (c *Collection) delete(ctx context.Context, filter repository.Filter, single bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	compiled, err := compileFilter(filter)
	if err != nil {
		return 0, err
	}

	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	data, err := c.client.data(c.database, c.name, false)
	if err != nil || data == nil {
		return 0, err
	}
	kept := data.docs[:0:0]
	var deleted int64
	for _, doc := range data.docs {
		if single && deleted > 0 {
			kept = append(kept, doc)
			continue
		}
		r, err := matchDocument(doc, compiled)
		if err != nil {
			return 0, err
		}
		if r.matched {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	data.docs = kept
	return deleted, nil
}

// Find decodes the matching documents into results, which must be a
// pointer to a slice. Proximity queries return nearest first unless a sort
// is given.
func (c *Collection) Find(ctx context.Context, filter repository.Filter, opts store.FindOptions, results interface{}) error {
	docs, err := c.query(ctx, filter, opts)
	if err != nil {
		return err
	}
	return decodeAll(docs, results)
}

// FindOne decodes the first match into result.
func (c *Collection) FindOne(ctx context.Context, filter repository.Filter, result interface{}) (bool, error) {
	docs, err := c.query(ctx, filter, store.FindOptions{Limit: 1})
	if err != nil || len(docs) == 0 {
		return false, err
	}
	if err := bson.Unmarshal(docs[0], result); err != nil {
		return false, fmt.Errorf("failed to decode document: %w", err)
	}
	return true, nil
}

// CountDocuments returns the exact number of matches.
func (c *Collection) CountDocuments(ctx context.Context, filter repository.Filter) (int64, error) {
	docs, err := c.query(ctx, filter, store.FindOptions{})
	return int64(len(docs)), err
}

// EstimatedDocumentCount returns the stored document count.
func (c *Collection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.client.mu.RLock()
	defer c.client.mu.RUnlock()
	data, err := c.client.data(c.database, c.name, false)
	if err != nil || data == nil {
		return 0, err
	}
	return int64(len(data.docs)), nil
}

// EnsureIndex records the index; it is idempotent per index name.
func (c *Collection) EnsureIndex(ctx context.Context, model store.IndexModel) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if model.Field == "" {
		return "", fmt.Errorf("index field is required")
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	data, err := c.client.data(c.database, c.name, true)
	if err != nil {
		return "", err
	}
	name := model.DefaultName()
	if _, exists := data.indexes[name]; !exists {
		data.indexes[name] = model
		c.client.logger.Debug("memory index created", "database", c.database, "collection", c.name, "index", name)
	}
	return name, nil
}

// Indexes returns the sorted names of the indexes on the collection.
func (c *Collection) Indexes() []string {
	c.client.mu.RLock()
	defer c.client.mu.RUnlock()
	data, _ := c.client.data(c.database, c.name, false)
	if data == nil {
		return nil
	}
	names := make([]string, 0, len(data.indexes))
	for name := range data.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type candidate struct {
	doc      bson.Raw
	distance float64
}

func (c *Collection) query(ctx context.Context, filter repository.Filter, opts store.FindOptions) ([]bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	compiled, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	c.client.mu.RLock()
	defer c.client.mu.RUnlock()
	data, err := c.client.data(c.database, c.name, false)
	if err != nil {
		return nil, err
	}
	geoFields := nearFields(compiled)
	for _, field := range geoFields {
		if data == nil || !data.hasSphereIndex(field) {
			return nil, fmt.Errorf("%w on %s.%s.%s", ErrNoIndex, c.database, c.name, field)
		}
	}
	if data == nil {
		return nil, nil
	}

	var matches []candidate
	for _, doc := range data.docs {
		r, err := matchDocument(doc, compiled)
		if err != nil {
			return nil, err
		}
		if r.matched {
			matches = append(matches, candidate{doc: doc, distance: r.distance})
		}
	}

	if len(geoFields) > 0 {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].distance < matches[j].distance
		})
	}
	if !opts.Sort.IsZero() {
		sortCandidates(matches, opts.Sort)
	}

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matches)) {
			return nil, nil
		}
		matches = matches[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matches)) {
		matches = matches[:opts.Limit]
	}

	docs := make([]bson.Raw, len(matches))
	for i, m := range matches {
		docs[i] = m.doc
	}
	return docs, nil
}

func sortCandidates(matches []candidate, s repository.Sort) {
	keys := make([]scalar, len(matches))
	for i, m := range matches {
		if v, ok := lookup(m.doc, s.Field); ok {
			keys[i] = normalize(v)
		} else {
			keys[i] = nullScalar
		}
	}
	idx := make([]int, len(matches))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c := compareScalars(keys[idx[a]], keys[idx[b]])
		if s.Descending() {
			return c > 0
		}
		return c < 0
	})
	sorted := make([]candidate, len(matches))
	for i, j := range idx {
		sorted[i] = matches[j]
	}
	copy(matches, sorted)
}

func (d *collectionData) indexOf(id bson.RawValue) int {
	for i, doc := range d.docs {
		if existing, err := doc.LookupErr(repository.IDField); err == nil && existing.Equal(id) {
			return i
		}
	}
	return -1
}

func (d *collectionData) hasSphereIndex(field string) bool {
	for _, idx := range d.indexes {
		if idx.Field == field && idx.Type == store.Index2DSphere {
			return true
		}
	}
	return false
}

func compileFilter(filter repository.Filter) (bson.Raw, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	raw, err := bson.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return raw, nil
}

func encode(doc interface{}) (bson.Raw, bson.RawValue, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, bson.RawValue{}, fmt.Errorf("failed to encode document: %w", err)
	}
	id, err := bson.Raw(raw).LookupErr(repository.IDField)
	if err != nil {
		return nil, bson.RawValue{}, fmt.Errorf("document has no %s field", repository.IDField)
	}
	return raw, id, nil
}

func decodeAll(docs []bson.Raw, results interface{}) error {
	rv := reflect.ValueOf(results)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("results argument must be a pointer to a slice, got %T", results)
	}
	sliceVal := rv.Elem()
	elemType := sliceVal.Type().Elem()
	out := reflect.MakeSlice(sliceVal.Type(), 0, len(docs))
	for _, doc := range docs {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(doc, elem.Interface()); err != nil {
			return fmt.Errorf("failed to decode document: %w", err)
		}
		out = reflect.Append(out, elem.Elem())
	}
	sliceVal.Set(out)
	return nil
}
