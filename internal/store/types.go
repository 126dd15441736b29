package store

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("store disabled")

// Config configures schedule persistence.
//
// Driver values:
//   - "file": dependency-free single-file JSON backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty, "file" is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is one persisted schedule definition.
// Keep it compact and schema-stable: the on-disk layout is shared with
// older installs, so field values must round-trip verbatim.
type Record struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Schedule string `json:"schedule"`
	Enabled  bool   `json:"enabled"`
	Created  string `json:"created"` // ISO-8601, informational only
}
