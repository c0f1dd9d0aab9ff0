// Package selector resolves record types to physical database and
// collection names, applying partition routing.
//
// Database resolution order: the database declared for the type, then the
// partition database when partitioning is at database level, then the
// default database. Collection names supplied by the caller are used
// verbatim; only default collection names are rewritten for collection-level
// partitioning.
package selector

import (
	"context"
	"strings"

	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/repository/partition"
	"github.com/nimburion/docroute/pkg/store"
)

// Target is a resolved physical location.
type Target struct {
	Database   string `json:"database" yaml:"database"`
	Collection string `json:"collection" yaml:"collection"`
	// Partition is the partition bound to the resolving context, if any.
	Partition string `json:"partition,omitempty" yaml:"partition,omitempty"`
	// Explicit reports whether the collection name was supplied by the caller.
	Explicit bool `json:"explicit" yaml:"explicit"`
}

// Selector turns record types into collection handles.
type Selector struct {
	client          store.Client
	partitions      *partition.Manager
	registry        *Registry
	defaultDatabase string
}

// New creates a Selector. registry may be nil when no type declares
// metadata; defaultDatabase may be empty when every type declares a
// database or database-level partitioning is used.
func New(client store.Client, partitions *partition.Manager, registry *Registry, defaultDatabase string) *Selector {
	if partitions == nil {
		partitions = partition.NewManager()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Selector{
		client:          client,
		partitions:      partitions,
		registry:        registry,
		defaultDatabase: strings.TrimSpace(defaultDatabase),
	}
}

// Client returns the underlying store client.
func (s *Selector) Client() store.Client {
	return s.client
}

// Partitions returns the partition manager used for routing.
func (s *Selector) Partitions() *partition.Manager {
	return s.partitions
}

// Registry returns the record metadata registry.
func (s *Selector) Registry() *Registry {
	return s.registry
}

// DefaultDatabase returns the configured default database.
func (s *Selector) DefaultDatabase() string {
	return s.defaultDatabase
}

// ResolveTarget computes the location for a record type named typeName with
// declared metadata md. A blank explicit collection counts as absent.
func (s *Selector) ResolveTarget(ctx context.Context, typeName string, md Metadata, explicit string) (Target, error) {
	database, err := s.resolveDatabase(ctx, md)
	if err != nil {
		return Target{}, err
	}

	target := Target{Database: database, Partition: s.partitions.CurrentPartitionName(ctx)}
	if name := strings.TrimSpace(explicit); name != "" {
		target.Collection = name
		target.Explicit = true
		return target, nil
	}

	collection := md.Collection
	if collection == "" {
		collection = typeName
	}
	if collection == "" {
		return Target{}, repository.NewConfigurationError("record type has no name; declare a collection for it")
	}
	if s.partitions.Level() == partition.LevelCollection {
		collection, err = s.partitions.ResolveCollectionName(ctx, collection)
		if err != nil {
			return Target{}, err
		}
	}
	target.Collection = collection
	return target, nil
}

func (s *Selector) resolveDatabase(ctx context.Context, md Metadata) (string, error) {
	if md.Database != "" {
		return md.Database, nil
	}
	if s.partitions.Level() == partition.LevelDatabase {
		return s.partitions.ResolveDatabaseName(ctx)
	}
	if s.defaultDatabase != "" {
		return s.defaultDatabase, nil
	}
	return "", repository.NewConfigurationError("no database specified via type metadata or default configuration")
}

// TargetOf resolves the location of T.
func TargetOf[T any](ctx context.Context, s *Selector, explicit string) (Target, error) {
	t := TypeOf[T]()
	md, _ := s.registry.Lookup(t)
	return s.ResolveTarget(ctx, typeName(t), md, explicit)
}

// Resolve returns a handle on the collection holding T together with the
// resolved target.
func Resolve[T any](ctx context.Context, s *Selector, explicit string) (store.Collection, Target, error) {
	target, err := TargetOf[T](ctx, s, explicit)
	if err != nil {
		return nil, Target{}, err
	}
	return s.client.Collection(target.Database, target.Collection), target, nil
}

// CollectionNames lists the collections of database, or of the database a
// record without metadata would resolve to when database is blank.
func (s *Selector) CollectionNames(ctx context.Context, database string) ([]string, error) {
	database = strings.TrimSpace(database)
	if database == "" {
		var err error
		database, err = s.resolveDatabase(ctx, Metadata{})
		if err != nil {
			return nil, err
		}
	}
	return s.client.ListCollectionNames(ctx, database)
}
