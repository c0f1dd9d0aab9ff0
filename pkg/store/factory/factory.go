// Package factory selects and opens a document store from configuration.
package factory

import (
	"fmt"
	"strings"

	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/store"
	"github.com/nimburion/docroute/pkg/store/memory"
	"github.com/nimburion/docroute/pkg/store/mongodb"
	"github.com/nimburion/docroute/pkg/version"
)

// NewClient opens the document store named by cfg.Type. The mongodb store
// connects and pings before returning; the memory store starts empty.
func NewClient(cfg config.DatabaseConfig, log logger.Logger) (store.Client, error) {
	if log == nil {
		log = logger.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.DatabaseTypeMongoDB:
		appName := cfg.AppName
		if appName == "" {
			appName = version.Current("docroute").AppName()
		}
		return mongodb.NewAdapter(mongodb.Config{
			URL:              cfg.URL,
			Database:         cfg.DatabaseName,
			AppName:          appName,
			ConnectTimeout:   cfg.ConnectTimeout,
			OperationTimeout: cfg.QueryTimeout,
		}, log)
	case config.DatabaseTypeMemory:
		log.Info("using in-memory document store", "default_database", cfg.DatabaseName)
		return memory.NewClient(log), nil
	default:
		return nil, fmt.Errorf("unsupported database.type %q (supported: %s, %s)",
			cfg.Type, config.DatabaseTypeMongoDB, config.DatabaseTypeMemory)
	}
}
