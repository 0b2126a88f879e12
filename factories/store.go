package factories

import (
	"reportvoice/store"
)

// MemoryStoreConfig selects the in-process store. It has no settings.
type MemoryStoreConfig struct{}

// StoreFactoryConfig selects where session reports are kept.
// Set exactly one provider config; when both are nil the memory store is used.
type StoreFactoryConfig struct {
	MemoryConfig *MemoryStoreConfig  `json:"memory,omitempty" yaml:"memory,omitempty"`
	SQLiteConfig *store.SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
}

// BuildReportStore constructs the configured ReportStore.
func BuildReportStore(config StoreFactoryConfig) (store.ReportStore, error) {
	if config.SQLiteConfig != nil {
		s, err := store.NewSQLiteStore(*config.SQLiteConfig)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return store.NewMemoryStore(), nil
}
