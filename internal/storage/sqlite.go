package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"emgstream/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:emgstream.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			stopped_at TEXT NOT NULL,
			samples INTEGER NOT NULL,
			columns TEXT NOT NULL,
			csv TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
		`CREATE TABLE IF NOT EXISTS stage_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			stage TEXT NOT NULL,
			value REAL NOT NULL
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

func (s *sqliteStore) SaveSession(ctx context.Context, export model.Export) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (started_at, stopped_at, samples, columns, csv)
		VALUES (?, ?, ?, ?, ?)`,
		export.StartedAt.UTC(),
		export.StoppedAt.UTC(),
		export.Rows,
		strings.Join(export.Columns, ","),
		export.CSV,
	)
	return err
}

func (s *sqliteStore) SaveStageMetrics(ctx context.Context, metrics []model.StageMetric) error {
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
		`INSERT INTO stage_metrics (ts, stage, value) VALUES (?, ?, ?)`)
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
