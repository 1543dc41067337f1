package storage

import (
	"context"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/pkg/logger"
)

// ProjectStore persists saved projects. Save upserts by ID: an empty ID creates a new
// project, and the store always sets UpdatedAt.
type ProjectStore interface {
	List(ctx context.Context, userID string) ([]*model.Project, error)
	Get(ctx context.Context, id string) (*model.Project, error)
	Save(ctx context.Context, project *model.Project) (*model.Project, error)
	Delete(ctx context.Context, id string) error

	Init() error
	Close() error
	Backup() error
}

// Open builds the store named by cfg.Type and initializes it. A store that fails to
// initialize is replaced by an in-memory one so the server can still start.
func Open(cfg config.StorageConfig) ProjectStore {
	var store ProjectStore

	switch cfg.Type {
	case "disk":
		store = NewDiskStorage(cfg.DataDir, cfg.CacheSize)
	case "sqlite":
		store = NewSQLiteStorage(cfg.SQLitePath)
	default:
		store = NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize %s storage, falling back to memory: %v", cfg.Type, err)
		store = NewMemoryStorage()
		_ = store.Init()
	}
	return store
}
