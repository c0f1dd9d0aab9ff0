// Package store defines the document store contract consumed by the
// repository layer.
package store

import (
	"context"

	"github.com/nimburion/docroute/pkg/repository"
)

// UnknownCount is reported when the store does not acknowledge how many
// documents a write touched.
const UnknownCount int64 = -1

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// Client is a connection to a document store holding many databases.
type Client interface {
	Adapter

	// Collection returns a handle on database/name. It does not create
	// anything; stores create collections implicitly on first write.
	Collection(database, name string) Collection
	ListCollectionNames(ctx context.Context, database string) ([]string, error)
	DropCollection(ctx context.Context, database, name string) error
	Ping(ctx context.Context) error
}

// Collection is a handle on one physical collection. Every method is atomic
// per single document; nothing spans documents.
type Collection interface {
	Database() string
	Name() string

	InsertOne(ctx context.Context, doc interface{}) error
	InsertMany(ctx context.Context, docs []interface{}) error
	ReplaceOne(ctx context.Context, filter repository.Filter, doc interface{}) (ReplaceResult, error)
	DeleteOne(ctx context.Context, filter repository.Filter) (int64, error)
	DeleteMany(ctx context.Context, filter repository.Filter) (int64, error)

	// Find decodes every match into results, which must point to a slice.
	Find(ctx context.Context, filter repository.Filter, opts FindOptions, results interface{}) error
	// FindOne decodes the first match into result and reports whether one
	// was found.
	FindOne(ctx context.Context, filter repository.Filter, result interface{}) (bool, error)

	CountDocuments(ctx context.Context, filter repository.Filter) (int64, error)
	// EstimatedDocumentCount may lag behind recent writes.
	EstimatedDocumentCount(ctx context.Context) (int64, error)

	// EnsureIndex creates the index unless an equivalent one exists and
	// returns its name.
	EnsureIndex(ctx context.Context, model IndexModel) (string, error)
}

// FindOptions controls ordering and windowing of Find.
type FindOptions struct {
	Sort repository.Sort
	Skip int64
	// Limit of zero means no limit.
	Limit int64
}

// ReplaceResult reports the outcome of ReplaceOne.
type ReplaceResult struct {
	MatchedCount  int64
	ModifiedCount int64
	// Acknowledged is false when the store did not report counts.
	Acknowledged bool
}

// IndexType is the kind of index built on a field.
type IndexType string

const (
	// IndexAscending is a regular ascending index.
	IndexAscending IndexType = "asc"
	// Index2DSphere is a spherical geo index.
	Index2DSphere IndexType = "2dsphere"
)

// IndexModel describes a single-field index.
type IndexModel struct {
	Field string
	Type  IndexType
	// Name is optional; stores derive one from Field and Type when empty.
	Name string
}

// DefaultName returns the store-derived index name.
func (m IndexModel) DefaultName() string {
	if m.Name != "" {
		return m.Name
	}
	suffix := "1"
	if m.Type == Index2DSphere {
		suffix = "2dsphere"
	}
	return m.Field + "_" + suffix
}
