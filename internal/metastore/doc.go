// Package metastore persists index metadata in SQLite: a single-row global
// table (monotonic vector-id counter, embedding model name) and one record
// per indexed file (owned vector ids, function start lines, content
// fingerprint).
//
// All mutations run in transactions, so a record and its function rows never
// diverge. The database is WAL-mode SQLite behind one of two drivers chosen
// at build time: modernc.org/sqlite by default (pure Go), mattn/go-sqlite3
// under the cgosqlite tag.
package metastore
