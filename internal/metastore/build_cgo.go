//go:build cgosqlite
// +build cgosqlite

package metastore

// CGO build: the C SQLite implementation, faster under heavy write load.
//
//   CGO_ENABLED=1 go build -tags "cgosqlite" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to register with database/sql
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
