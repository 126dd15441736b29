//go:build sqlite
// +build sqlite

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logx "matrixconsole/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, schedule, enabled, created FROM schedules ORDER BY pos`)
	if err != nil {
		s.log.Warn("schedule query failed, treating as empty", logx.Err(err))
		return []Record{}, nil
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var enabled int
		if err := rows.Scan(&r.ID, &r.Type, &r.Schedule, &enabled, &r.Created); err != nil {
			s.log.Warn("schedule row scan failed, skipping", logx.Err(err))
			continue
		}
		r.Enabled = enabled != 0
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("schedule scan aborted, treating as empty", logx.Err(err))
		return []Record{}, nil
	}
	return records, nil
}

func (s *sqliteStore) Save(ctx context.Context, records []Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules`); err != nil {
		return err
	}
	for i, r := range records {
		enabled := 0
		if r.Enabled {
			enabled = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schedules(id, type, schedule, enabled, created, pos) VALUES(?,?,?,?,?,?)`,
			r.ID, r.Type, r.Schedule, enabled, r.Created, i,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
