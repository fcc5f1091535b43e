//go:build !cgosqlite
// +build !cgosqlite

package metastore

// Default build: pure Go SQLite, no C compiler required.
//
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to register with database/sql
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
