package config

import "time"

// Database type constants
const (
	// DatabaseTypeMongoDB represents MongoDB
	DatabaseTypeMongoDB = "mongodb"
	// DatabaseTypeMemory represents the in-process document store
	DatabaseTypeMemory = "memory"
)

// Partition level constants
const (
	PartitionLevelDisabled   = "disabled"
	PartitionLevelDatabase   = "database"
	PartitionLevelCollection = "collection"
)

// ID strategy constants
const (
	// IDStrategyObjectID generates hex encoded object identifiers
	IDStrategyObjectID = "objectid"
	// IDStrategyUUID generates random UUID strings
	IDStrategyUUID = "uuid"
)

// Config is the root configuration structure
type Config struct {
	Service       ServiceConfig
	Database      DatabaseConfig
	Partition     PartitionConfig
	Observability ObservabilityConfig
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig configures the document store connection and the
// behavior of the document engine on top of it.
type DatabaseConfig struct {
	Type           string        `mapstructure:"type"` // mongodb, memory
	URL            string        `mapstructure:"url"`
	DatabaseName   string        `mapstructure:"database_name"`
	AppName        string        `mapstructure:"app_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout"`
	// IDStrategy selects the generator for records added without an id.
	IDStrategy string `mapstructure:"id_strategy"`
	// BatchConcurrency bounds the unsupervised batch operations.
	BatchConcurrency int `mapstructure:"batch_concurrency"`
}

// PartitionConfig configures tenant partitioning. Level is process-wide;
// the bound partition name is carried per request in a context.
type PartitionConfig struct {
	Level            string `mapstructure:"level"` // disabled, database, collection
	DatabasePrefix   string `mapstructure:"database_prefix"`
	DatabaseFormat   string `mapstructure:"database_format"`
	CollectionFormat string `mapstructure:"collection_format"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"` // json, text
	ServiceName       string  `mapstructure:"service_name"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
}

// DefaultConfig returns the configuration used when neither a file nor the
// environment overrides a value.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docroute",
			Environment: "production",
		},
		Database: DatabaseConfig{
			Type:             DatabaseTypeMongoDB,
			URL:              "mongodb://localhost:27017",
			DatabaseName:     "Demo",
			ConnectTimeout:   10 * time.Second,
			QueryTimeout:     30 * time.Second,
			PingTimeout:      time.Second,
			IDStrategy:       IDStrategyObjectID,
			BatchConcurrency: 8,
		},
		Partition: PartitionConfig{
			Level:            PartitionLevelDisabled,
			DatabasePrefix:   "Partition",
			DatabaseFormat:   "{prefix}_{partition}",
			CollectionFormat: "{base}_{partition}",
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			MetricsEnabled:    true,
			TracingSampleRate: 0.1,
		},
	}
}
