// Package partition routes records to per-partition databases or collections.
//
// The partitioning level and naming templates are process-wide and meant to
// be configured once at startup. The current partition is carried by
// context.Context so concurrent units of work can target different partitions.
package partition

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nimburion/docroute/pkg/repository"
)

// Level is the granularity at which partitioning applies.
type Level int

const (
	// LevelDisabled routes every record to its unpartitioned location.
	LevelDisabled Level = iota
	// LevelDatabase gives each partition its own database.
	LevelDatabase
	// LevelCollection gives each partition its own collection.
	LevelCollection
)

func (l Level) String() string {
	switch l {
	case LevelDisabled:
		return "disabled"
	case LevelDatabase:
		return "database"
	case LevelCollection:
		return "collection"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a configured level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled", "disable", "none":
		return LevelDisabled, nil
	case "database", "database_level":
		return LevelDatabase, nil
	case "collection", "collection_level":
		return LevelCollection, nil
	default:
		return LevelDisabled, fmt.Errorf("invalid partition level: %s", s)
	}
}

// Default naming rules.
const (
	DefaultDatabasePrefix   = "Partition"
	DefaultDatabaseFormat   = "{prefix}_{partition}"
	DefaultCollectionFormat = "{base}_{partition}"
)

// Manager holds the partitioning level and naming templates.
//
// Reconfiguring the level after bindings exist is a caller error and is not
// detected.
type Manager struct {
	mu               sync.RWMutex
	level            Level
	databasePrefix   string
	databaseFormat   string
	collectionFormat string
}

// NewManager creates a Manager with partitioning disabled and default naming.
func NewManager() *Manager {
	return &Manager{
		level:            LevelDisabled,
		databasePrefix:   DefaultDatabasePrefix,
		databaseFormat:   DefaultDatabaseFormat,
		collectionFormat: DefaultCollectionFormat,
	}
}

// ConfigureLevel sets the partitioning level. Last write wins.
func (m *Manager) ConfigureLevel(level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
}

// Level returns the configured partitioning level.
func (m *Manager) Level() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// ConfigureDatabaseNaming overrides the database prefix and format.
// Blank arguments keep the current value.
func (m *Manager) ConfigureDatabaseNaming(prefix, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.level != LevelDatabase {
		return repository.NewConfigurationError("database naming requires partition level %s, got %s", LevelDatabase, m.level)
	}
	if strings.TrimSpace(prefix) != "" {
		m.databasePrefix = prefix
	}
	if strings.TrimSpace(format) != "" {
		m.databaseFormat = format
	}
	return nil
}

// ConfigureCollectionNaming overrides the collection format.
// A blank format keeps the current value.
func (m *Manager) ConfigureCollectionNaming(format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.level != LevelCollection {
		return repository.NewConfigurationError("collection naming requires partition level %s, got %s", LevelCollection, m.level)
	}
	if strings.TrimSpace(format) != "" {
		m.collectionFormat = format
	}
	return nil
}

// Bind returns a context carrying name as the current partition.
func (m *Manager) Bind(ctx context.Context, name string) (context.Context, error) {
	if m.Level() == LevelDisabled {
		return ctx, repository.NewConfigurationError("partitioning is disabled; configure a partition level before binding")
	}
	if strings.TrimSpace(name) == "" {
		return ctx, repository.NewValidationError("partition", "name must not be blank")
	}
	return WithName(ctx, name), nil
}

// CurrentPartitionName returns the partition bound to ctx, or "" when unbound.
func (m *Manager) CurrentPartitionName(ctx context.Context) string {
	name, _ := FromContext(ctx)
	return name
}

// ResolveDatabaseName formats the physical database name for the partition
// bound to ctx.
func (m *Manager) ResolveDatabaseName(ctx context.Context) (string, error) {
	m.mu.RLock()
	level, prefix, format := m.level, m.databasePrefix, m.databaseFormat
	m.mu.RUnlock()

	if level != LevelDatabase {
		return "", repository.NewConfigurationError("database name resolution requires partition level %s, got %s", LevelDatabase, level)
	}
	name, ok := FromContext(ctx)
	if !ok {
		return "", repository.NewStateError("no partition bound to the current context")
	}
	return formatDatabaseName(format, prefix, name), nil
}

// ResolveCollectionName formats the physical collection name for base and
// the partition bound to ctx.
func (m *Manager) ResolveCollectionName(ctx context.Context, base string) (string, error) {
	m.mu.RLock()
	level, format := m.level, m.collectionFormat
	m.mu.RUnlock()

	if level != LevelCollection {
		return "", repository.NewConfigurationError("collection name resolution requires partition level %s, got %s", LevelCollection, level)
	}
	name, ok := FromContext(ctx)
	if !ok {
		return "", repository.NewStateError("no partition bound to the current context")
	}
	return formatCollectionName(format, base, name), nil
}
