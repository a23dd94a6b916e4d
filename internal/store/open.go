package store

import (
	"fmt"
	"strings"

	"github.com/promptarena/promptarena/internal/config"
)

const DefaultSQLitePath = ".promptarena/runs.db"

// Open builds a Store from config. A "none" storage type returns a nil
// Store with no error; callers skip persistence when the store is nil.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: missing config")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLiteStore(path)
	case "memory":
		return NewSQLiteStore(":memory:")
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("store: unsupported type %q", storageType)
	}
}
