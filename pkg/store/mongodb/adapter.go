package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Adapter provides MongoDB connectivity and implements store.Client.
type Adapter struct {
	client          *mongo.Client
	defaultDatabase string
	logger          logger.Logger
	timeout         time.Duration
	mu              sync.RWMutex
	closed          bool
}

var _ store.Client = (*Adapter)(nil)

// Config holds MongoDB adapter configuration.
type Config struct {
	URL string
	// Database is the default database; it may be empty when every record
	// type declares its own database or database-level partitioning is used.
	Database         string
	AppName          string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// NewAdapter connects to MongoDB and verifies connectivity with a ping.
// It creates no collections or indexes.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongodb URL is required")
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URL)
	if cfg.AppName != "" {
		clientOpts.SetAppName(cfg.AppName)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("MongoDB connection established", "default_database", cfg.Database)
	return &Adapter{
		client:          client,
		defaultDatabase: cfg.Database,
		logger:          log,
		timeout:         cfg.OperationTimeout,
	}, nil
}

// Client returns the underlying driver client.
func (a *Adapter) Client() *mongo.Client {
	return a.client
}

// DefaultDatabase returns the configured default database name.
func (a *Adapter) DefaultDatabase() string {
	return a.defaultDatabase
}

// Collection returns a handle on database/name.
func (a *Adapter) Collection(database, name string) store.Collection {
	return &Collection{
		adapter:    a,
		collection: a.client.Database(database).Collection(name),
	}
}

// ListCollectionNames lists the collections in database.
func (a *Adapter) ListCollectionNames(ctx context.Context, database string) ([]string, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.client.Database(database).ListCollectionNames(opCtx, bson.D{})
}

// DropCollection removes database/name. Dropping a missing collection
// succeeds.
func (a *Adapter) DropCollection(ctx context.Context, database, name string) error {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	if err := a.client.Database(database).Collection(name).Drop(opCtx); err != nil {
		return err
	}
	a.logger.Warn("MongoDB collection dropped", "database", database, "collection", name)
	return nil
}

// Ping checks connectivity with the primary.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return fmt.Errorf("mongodb adapter is closed")
	}
	return a.client.Ping(ctx, readpref.Primary())
}

// HealthCheck pings MongoDB with a 2 second bound.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client. Calling it again is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	return nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
