package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"emgstream/internal/config"
	"emgstream/internal/model"
)

// Store persists finalized recording sessions and emitted stage metrics.
// A nil Store (storage disabled) is valid; the pipeline keeps exports in
// memory regardless, so a persistence failure is never fatal.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveSession(ctx context.Context, export model.Export) error
	SaveStageMetrics(ctx context.Context, metrics []model.StageMetric) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
