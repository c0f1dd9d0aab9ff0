package partition

import (
	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/repository"
)

// FromConfig builds a Manager from the partition section of the service
// configuration. Naming templates that do not apply to the configured level
// are ignored.
func FromConfig(cfg config.PartitionConfig) (*Manager, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, repository.NewConfigurationError("%v", err)
	}
	m := NewManager()
	m.ConfigureLevel(level)

	switch level {
	case LevelDatabase:
		if err := m.ConfigureDatabaseNaming(cfg.DatabasePrefix, cfg.DatabaseFormat); err != nil {
			return nil, err
		}
	case LevelCollection:
		if err := m.ConfigureCollectionNaming(cfg.CollectionFormat); err != nil {
			return nil, err
		}
	}
	return m, nil
}
