package store

import (
	"context"
	"errors"
	"strings"

	logx "matrixconsole/pkg/logx"
)

// Store is the persistence API used by the schedule service.
//
// Load and Save operate on the full record sequence; callers compose
// append/remove as load-modify-save and must serialize their own
// read-modify-write sequences.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
