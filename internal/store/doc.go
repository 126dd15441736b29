// Package store persists schedule definitions across process restarts.
//
// It currently supports:
//   - A single JSON file (default, matches the deployment's data volume)
//   - SQLite (optional build tag) for installs that already ship a database
package store
