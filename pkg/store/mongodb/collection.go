package mongodb

import (
	"context"
	"errors"

	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Server error codes returned when an index with the same name or keys
// already exists with different options.
const (
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// Collection implements store.Collection on a driver collection.
type Collection struct {
	adapter    *Adapter
	collection *mongo.Collection
}

var _ store.Collection = (*Collection)(nil)

// Database returns the database name.
func (c *Collection) Database() string {
	return c.collection.Database().Name()
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.collection.Name()
}

// InsertOne inserts a document into the collection.
func (c *Collection) InsertOne(ctx context.Context, doc interface{}) error {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()
	_, err := c.collection.InsertOne(opCtx, doc)
	return ignoreUnacknowledged(err)
}

// InsertMany performs an ordered bulk insert.
func (c *Collection) InsertMany(ctx context.Context, docs []interface{}) error {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()
	_, err := c.collection.InsertMany(opCtx, docs)
	return ignoreUnacknowledged(err)
}

// ReplaceOne replaces the first document matching filter.
func (c *Collection) ReplaceOne(ctx context.Context, filter repository.Filter, doc interface{}) (store.ReplaceResult, error) {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()
	result, err := c.collection.ReplaceOne(opCtx, toBSON(filter), doc)
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return store.ReplaceResult{MatchedCount: store.UnknownCount, ModifiedCount: store.UnknownCount}, nil
	}
	if err != nil {
		return store.ReplaceResult{}, err
	}
	return store.ReplaceResult{
		MatchedCount:  result.MatchedCount,
		ModifiedCount: result.ModifiedCount,
		Acknowledged:  true,
	}, nil
}

// DeleteOne deletes a single document matching the filter.
func (c *Collection) DeleteOne(ctx context.Context, filter repository.Filter) (int64, error) {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()
	result, err := c.collection.DeleteOne(opCtx, toBSON(filter))
	return deletedCount(result, err)
}

// DeleteMany deletes every document matching the filter.
func (c *Collection) DeleteMany(ctx context.Context, filter repository.Filter) (int64, error) {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()
	result, err := c.collection.DeleteMany(opCtx, toBSON(filter))
	return deletedCount(result, err)
}

// Find decodes every match into results.
func (c *Collection) Find(ctx context.Context, filter repository.Filter, opts store.FindOptions, results interface{}) error {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()

	findOpts := options.Find()
	if !opts.Sort.IsZero() {
		direction := 1
		if opts.Sort.Descending() {
			direction = -1
		}
		findOpts.SetSort(bson.D{{Key: opts.Sort.Field, Value: direction}})
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := c.collection.Find(opCtx, toBSON(filter), findOpts)
	if err != nil {
		return err
	}
	return cursor.All(opCtx, results)
}

// FindOne decodes the first match into result.
func (c *Collection) FindOne(ctx context.Context, filter repository.Filter, result interface{}) (bool, error) {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()
	err := c.collection.FindOne(opCtx, toBSON(filter)).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountDocuments returns the exact number of matches.
func (c *Collection) CountDocuments(ctx context.Context, filter repository.Filter) (int64, error) {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()
	return c.collection.CountDocuments(opCtx, toBSON(filter))
}

// EstimatedDocumentCount returns the collection metadata count.
func (c *Collection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()
	return c.collection.EstimatedDocumentCount(opCtx)
}

// EnsureIndex creates the index when no index of the same name exists.
// Conflicts with an equivalent existing index are not errors.
func (c *Collection) EnsureIndex(ctx context.Context, model store.IndexModel) (string, error) {
	opCtx, cancel := c.adapter.withOperationTimeout(ctx)
	defer cancel()

	name := model.DefaultName()
	exists, err := c.hasIndex(opCtx, name)
	if err != nil {
		return "", err
	}
	if exists {
		return name, nil
	}

	var key interface{} = 1
	if model.Type == store.Index2DSphere {
		key = "2dsphere"
	}
	created, err := c.collection.Indexes().CreateOne(opCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: model.Field, Value: key}},
		Options: options.Index().SetName(name),
	})
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && (cmdErr.Code == codeIndexOptionsConflict || cmdErr.Code == codeIndexKeySpecsConflict) {
		c.adapter.logger.Debug("MongoDB index already present under another definition",
			"collection", c.Name(), "index", name, "error", err)
		return name, nil
	}
	if err != nil {
		return "", err
	}
	c.adapter.logger.Info("MongoDB index created", "database", c.Database(), "collection", c.Name(), "index", created)
	return created, nil
}

func (c *Collection) hasIndex(ctx context.Context, name string) (bool, error) {
	specs, err := c.collection.Indexes().ListSpecifications(ctx)
	if err != nil {
		// Listing indexes of a collection that does not exist yet fails on
		// some server versions; creation will materialize it.
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceNotFound" {
			return false, nil
		}
		return false, err
	}
	for _, spec := range specs {
		if spec.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func toBSON(filter repository.Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func deletedCount(result *mongo.DeleteResult, err error) (int64, error) {
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return store.UnknownCount, nil
	}
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func ignoreUnacknowledged(err error) error {
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return nil
	}
	return err
}
