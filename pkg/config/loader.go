package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
	settings           map[string]interface{}
	secretSettings     map[string]interface{}
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "DOCROUTE")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithServiceNameDefault sets the default service.name used when no config/env override is provided.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	if l == nil {
		return l
	}
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// ConfigFile returns the path to the config file, or empty string if none.
func (l *ViperLoader) ConfigFile() string {
	return l.configFile
}

// AllSettings returns the effective merged settings of the last load.
func (l *ViperLoader) AllSettings() map[string]interface{} {
	if l == nil || l.settings == nil {
		return map[string]interface{}{}
	}
	return l.settings
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	// Read config file if provided
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	return l.finish(v)
}

// finish applies environment overrides, decodes and validates.
func (l *ViperLoader) finish(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(l.envPrefix)
	l.bindLegacyEnvVars()
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	l.settings = v.AllSettings()

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// Database
	v.BindEnv("database.type", l.prefixedEnv("DB_TYPE"))
	v.BindEnv("database.url", l.prefixedEnv("DB_URL"))
	v.BindEnv("database.database_name", l.prefixedEnv("DB_NAME"))
	v.BindEnv("database.app_name", l.prefixedEnv("DB_APP_NAME"))
	v.BindEnv("database.connect_timeout", l.prefixedEnv("DB_CONNECT_TIMEOUT"))
	v.BindEnv("database.query_timeout", l.prefixedEnv("DB_QUERY_TIMEOUT"))
	v.BindEnv("database.ping_timeout", l.prefixedEnv("DB_PING_TIMEOUT"))
	v.BindEnv("database.id_strategy", l.prefixedEnv("DB_ID_STRATEGY"))
	v.BindEnv("database.batch_concurrency", l.prefixedEnv("DB_BATCH_CONCURRENCY"))

	// Partition
	v.BindEnv("partition.level", l.prefixedEnv("PARTITION_LEVEL"))
	v.BindEnv("partition.database_prefix", l.prefixedEnv("PARTITION_DATABASE_PREFIX"))
	v.BindEnv("partition.database_format", l.prefixedEnv("PARTITION_DATABASE_FORMAT"))
	v.BindEnv("partition.collection_format", l.prefixedEnv("PARTITION_COLLECTION_FORMAT"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("OBSERVABILITY_LOG_LEVEL"), l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("OBSERVABILITY_LOG_FORMAT"), l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.service_name", l.prefixedEnv("OBSERVABILITY_SERVICE_NAME"))
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("OBSERVABILITY_METRICS_ENABLED"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("OBSERVABILITY_TRACING_ENABLED"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("OBSERVABILITY_TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("OBSERVABILITY_TRACING_ENDPOINT"))
}

// bindLegacyEnvVars maps legacy env vars to current abbreviated names when abbreviated vars are absent.
func (l *ViperLoader) bindLegacyEnvVars() {
	aliases := []struct {
		abbrevSuffix string
		legacySuffix string
	}{
		{"DB_TYPE", "DATABASE_TYPE"},
		{"DB_URL", "DATABASE_URL"},
		{"DB_NAME", "DB_DATABASE_NAME"},
		{"DB_CONNECT_TIMEOUT", "DATABASE_CONNECT_TIMEOUT"},
		{"DB_QUERY_TIMEOUT", "DATABASE_QUERY_TIMEOUT"},
	}

	for _, alias := range aliases {
		abbrevEnv := l.prefixedEnv(alias.abbrevSuffix)
		if _, hasAbbrev := os.LookupEnv(abbrevEnv); hasAbbrev {
			continue
		}
		if legacyValue, hasLegacy := os.LookupEnv(l.prefixedEnv(alias.legacySuffix)); hasLegacy {
			_ = os.Setenv(abbrevEnv, legacyValue)
		}
	}
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "APP"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func (l *ViperLoader) defaultServiceName(fallback string) string {
	if l != nil {
		if configured := strings.TrimSpace(l.serviceNameDefault); configured != "" {
			return configured
		}
	}
	return strings.TrimSpace(fallback)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", l.defaultServiceName(cfg.Service.Name))
	v.SetDefault("service.environment", cfg.Service.Environment)

	// Database defaults
	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.database_name", cfg.Database.DatabaseName)
	v.SetDefault("database.app_name", cfg.Database.AppName)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.query_timeout", cfg.Database.QueryTimeout)
	v.SetDefault("database.ping_timeout", cfg.Database.PingTimeout)
	v.SetDefault("database.id_strategy", cfg.Database.IDStrategy)
	v.SetDefault("database.batch_concurrency", cfg.Database.BatchConcurrency)

	// Partition defaults
	v.SetDefault("partition.level", cfg.Partition.Level)
	v.SetDefault("partition.database_prefix", cfg.Partition.DatabasePrefix)
	v.SetDefault("partition.database_format", cfg.Partition.DatabaseFormat)
	v.SetDefault("partition.collection_format", cfg.Partition.CollectionFormat)

	// Observability defaults
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.service_name", cfg.Observability.ServiceName)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
}

// Validate validates the configuration and returns detailed errors
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	validTypes := []string{DatabaseTypeMongoDB, DatabaseTypeMemory}
	if !contains(validTypes, cfg.Database.Type) {
		errs = append(errs, fmt.Errorf("invalid database.type: %s (must be one of: %v)", cfg.Database.Type, validTypes))
	}
	if cfg.Database.Type == DatabaseTypeMongoDB && strings.TrimSpace(cfg.Database.URL) == "" {
		errs = append(errs, errors.New("database.url is required when database.type is mongodb"))
	}
	if cfg.Database.ConnectTimeout < 0 {
		errs = append(errs, errors.New("database.connect_timeout must be >= 0"))
	}
	if cfg.Database.QueryTimeout < 0 {
		errs = append(errs, errors.New("database.query_timeout must be >= 0"))
	}
	if cfg.Database.PingTimeout < 0 {
		errs = append(errs, errors.New("database.ping_timeout must be >= 0"))
	}
	validStrategies := []string{"", IDStrategyObjectID, IDStrategyUUID}
	if !contains(validStrategies, strings.ToLower(cfg.Database.IDStrategy)) {
		errs = append(errs, fmt.Errorf("invalid database.id_strategy: %s (must be one of: %v)", cfg.Database.IDStrategy, validStrategies[1:]))
	}
	if cfg.Database.BatchConcurrency < 1 {
		errs = append(errs, errors.New("database.batch_concurrency must be >= 1"))
	}

	level := strings.ToLower(strings.TrimSpace(cfg.Partition.Level))
	validLevels := []string{"", PartitionLevelDisabled, PartitionLevelDatabase, PartitionLevelCollection}
	if !contains(validLevels, level) {
		errs = append(errs, fmt.Errorf("invalid partition.level: %s (must be one of: %v)", cfg.Partition.Level, validLevels[1:]))
	}
	if level == PartitionLevelCollection && !strings.Contains(cfg.Partition.CollectionFormat, "{partition}") &&
		!strings.Contains(cfg.Partition.CollectionFormat, "{1}") {
		errs = append(errs, errors.New("partition.collection_format must reference {partition} or {1}"))
	}
	if level == PartitionLevelDatabase && !strings.Contains(cfg.Partition.DatabaseFormat, "{partition}") &&
		!strings.Contains(cfg.Partition.DatabaseFormat, "{1}") {
		errs = append(errs, errors.New("partition.database_format must reference {partition} or {1}"))
	}

	if _, err := parseLevelName(cfg.Observability.LogLevel); err != nil {
		errs = append(errs, err)
	}
	validFormats := []string{"json", "text", "console"}
	if !contains(validFormats, strings.ToLower(cfg.Observability.LogFormat)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validFormats))
	}
	if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
		errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
	}
	if cfg.Observability.TracingEnabled && strings.TrimSpace(cfg.Observability.TracingEndpoint) == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}

	return errors.Join(errs...)
}

func parseLevelName(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error":
		return level, nil
	}
	return "", fmt.Errorf("invalid observability.log_level: %s (must be one of: debug, info, warn, error)", level)
}

// contains checks if a string slice contains a specific item
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
