package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"emgstream/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/emgstream?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			stopped_at TIMESTAMPTZ NOT NULL,
			samples INTEGER NOT NULL,
			columns TEXT NOT NULL,
			csv TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
		`CREATE TABLE IF NOT EXISTS stage_metrics (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			stage TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_metrics_stage_ts ON stage_metrics(stage, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveSession(ctx context.Context, export model.Export) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (started_at, stopped_at, samples, columns, csv)
		VALUES ($1, $2, $3, $4, $5)`,
		export.StartedAt.UTC(),
		export.StoppedAt.UTC(),
		export.Rows,
		strings.Join(export.Columns, ","),
		export.CSV,
	)
	return err
}

func (s *postgresStore) SaveStageMetrics(ctx context.Context, metrics []model.StageMetric) error {
	if s.db == nil || len(metrics) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stage_metrics (ts, stage, value) VALUES ($1, $2, $3)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, m := range metrics {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = nowUTC()
		}
		if _, err := stmt.ExecContext(ctx, ts.UTC(), m.Stage, m.Value); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
