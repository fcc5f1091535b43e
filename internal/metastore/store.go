package metastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dshills/semcode-mcp/pkg/types"
)

// Global is the single-row index-wide state. NextVectorID is the next id the
// allocator will hand out; it only ever grows.
type Global struct {
	NextVectorID  int64
	Model         string
	SchemaVersion string
}

// FileRecord describes one indexed source file: the vector ids it owns, the
// start line of each function (parallel to VectorIDs, extraction order), and
// the content fingerprint taken when the file was last indexed.
type FileRecord struct {
	VectorIDs     []int64
	FunctionLines []uint32
	Fingerprint   types.Fingerprint
}

// Store persists index metadata in a single SQLite database. Safe for use
// from one process at a time; the indexer layers a file lock on top.
type Store struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open opens (creating if necessary) the metadata database at dbPath and
// applies any pending migrations.
func Open(dbPath string) (*Store, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (s *Store) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Global state operations

// LoadGlobal returns the global index state, defaulting to a zero counter and
// empty model name when the database has never been written. A negative
// counter means the file was tampered with or corrupted and is fatal.
func (s *Store) LoadGlobal(ctx context.Context) (Global, error) {
	return s.loadGlobalWithQuerier(ctx, s.db)
}

func (s *Store) loadGlobalWithQuerier(ctx context.Context, q querier) (Global, error) {
	g := Global{SchemaVersion: CurrentSchemaVersion}

	err := q.QueryRowContext(ctx, "SELECT next_vector_id, model FROM global WHERE id = 1").
		Scan(&g.NextVectorID, &g.Model)
	if err == sql.ErrNoRows {
		return g, nil
	}
	if err != nil {
		return Global{}, fmt.Errorf("%w: %v", types.ErrCorruptStore, err)
	}
	if g.NextVectorID < 0 {
		return Global{}, fmt.Errorf("%w: negative vector id counter %d", types.ErrCorruptStore, g.NextVectorID)
	}
	return g, nil
}

// SaveGlobal writes the global index state.
func (s *Store) SaveGlobal(ctx context.Context, g Global) error {
	return s.saveGlobalWithQuerier(ctx, s.db, g)
}

func (s *Store) saveGlobalWithQuerier(ctx context.Context, q querier, g Global) error {
	query := `
		INSERT INTO global (id, next_vector_id, model, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			next_vector_id = excluded.next_vector_id,
			model = excluded.model,
			updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query, g.NextVectorID, g.Model, time.Now()); err != nil {
		return fmt.Errorf("failed to save global state: %w", err)
	}
	return nil
}

// AllocateVectorIDs advances the id counter by n in one transaction and
// returns the first id of the allocated block. Allocated ids are contiguous
// and never reused.
func (s *Store) AllocateVectorIDs(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("allocation size must be positive, got %d", n)
	}

	var start int64
	err := s.withTx(ctx, func(q querier) error {
		g, err := s.loadGlobalWithQuerier(ctx, q)
		if err != nil {
			return err
		}
		start = g.NextVectorID
		g.NextVectorID += int64(n)
		return s.saveGlobalWithQuerier(ctx, q, g)
	})
	if err != nil {
		return 0, err
	}
	return start, nil
}

// File record operations

// LoadFileRecord returns the record stored under the normalized path, or
// types.ErrNotFound.
func (s *Store) LoadFileRecord(ctx context.Context, path string) (*FileRecord, error) {
	return s.loadFileRecordWithQuerier(ctx, s.db, path)
}

func (s *Store) loadFileRecordWithQuerier(ctx context.Context, q querier, path string) (*FileRecord, error) {
	var rec FileRecord
	var hash []byte
	err := q.QueryRowContext(ctx,
		"SELECT content_hash, mtime FROM file_records WHERE path = ?", path).
		Scan(&hash, &rec.Fingerprint.MTime)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Fingerprint.Hash = hash

	rows, err := q.QueryContext(ctx,
		"SELECT vector_id, start_line FROM file_functions WHERE file_path = ? ORDER BY position", path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		var line uint32
		if err := rows.Scan(&id, &line); err != nil {
			return nil, err
		}
		rec.VectorIDs = append(rec.VectorIDs, id)
		rec.FunctionLines = append(rec.FunctionLines, line)
	}
	return &rec, rows.Err()
}

// SaveFileRecord replaces the record stored under the normalized path. The
// record row and its function rows change together or not at all.
func (s *Store) SaveFileRecord(ctx context.Context, path string, rec *FileRecord) error {
	if len(rec.VectorIDs) != len(rec.FunctionLines) {
		return fmt.Errorf("file record for %s: %d vector ids, %d function lines", path, len(rec.VectorIDs), len(rec.FunctionLines))
	}

	return s.withTx(ctx, func(q querier) error {
		now := time.Now()
		query := `
			INSERT INTO file_records (path, content_hash, mtime, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				content_hash = excluded.content_hash,
				mtime = excluded.mtime,
				updated_at = excluded.updated_at
		`
		if _, err := q.ExecContext(ctx, query, path, rec.Fingerprint.Hash, rec.Fingerprint.MTime, now, now); err != nil {
			return fmt.Errorf("failed to save file record: %w", err)
		}

		if _, err := q.ExecContext(ctx, "DELETE FROM file_functions WHERE file_path = ?", path); err != nil {
			return fmt.Errorf("failed to clear function rows: %w", err)
		}
		for i, id := range rec.VectorIDs {
			_, err := q.ExecContext(ctx,
				"INSERT INTO file_functions (vector_id, file_path, start_line, position) VALUES (?, ?, ?, ?)",
				id, path, rec.FunctionLines[i], i)
			if err != nil {
				return fmt.Errorf("failed to save function row: %w", err)
			}
		}
		return nil
	})
}

// DeleteFileRecord removes the record stored under the normalized path.
// Deleting an absent record is a no-op.
func (s *Store) DeleteFileRecord(ctx context.Context, path string) error {
	return s.withTx(ctx, func(q querier) error {
		// CASCADE covers file_functions
		if _, err := q.ExecContext(ctx, "DELETE FROM file_records WHERE path = ?", path); err != nil {
			return fmt.Errorf("failed to delete file record: %w", err)
		}
		return nil
	})
}

// ListFileRecords returns every stored record keyed by normalized path.
func (s *Store) ListFileRecords(ctx context.Context) (map[string]*FileRecord, error) {
	records := make(map[string]*FileRecord)

	rows, err := s.db.QueryContext(ctx, "SELECT path, content_hash, mtime FROM file_records")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var path string
		var rec FileRecord
		var hash []byte
		if err := rows.Scan(&path, &hash, &rec.Fingerprint.MTime); err != nil {
			return nil, err
		}
		rec.Fingerprint.Hash = hash
		records[path] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fnRows, err := s.db.QueryContext(ctx,
		"SELECT file_path, vector_id, start_line FROM file_functions ORDER BY file_path, position")
	if err != nil {
		return nil, err
	}
	defer func() { _ = fnRows.Close() }()

	for fnRows.Next() {
		var path string
		var id int64
		var line uint32
		if err := fnRows.Scan(&path, &id, &line); err != nil {
			return nil, err
		}
		rec, ok := records[path]
		if !ok {
			return nil, fmt.Errorf("%w: function row for unknown file %s", types.ErrCorruptStore, path)
		}
		rec.VectorIDs = append(rec.VectorIDs, id)
		rec.FunctionLines = append(rec.FunctionLines, line)
	}
	return records, fnRows.Err()
}

// OwnedIDs returns the set of vector ids owned by any file record.
func (s *Store) OwnedIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT vector_id FROM file_functions")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	owned := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned[id] = struct{}{}
	}
	return owned, rows.Err()
}

// Lookup maps a vector id back to its owning file and function start line.
// Returns types.ErrNotFound for unowned ids.
func (s *Store) Lookup(ctx context.Context, vectorID int64) (types.FunctionRef, error) {
	var ref types.FunctionRef
	err := s.db.QueryRowContext(ctx,
		"SELECT file_path, start_line FROM file_functions WHERE vector_id = ?", vectorID).
		Scan(&ref.File, &ref.StartLine)
	if err == sql.ErrNoRows {
		return types.FunctionRef{}, types.ErrNotFound
	}
	if err != nil {
		return types.FunctionRef{}, err
	}
	ref.VectorID = vectorID
	return ref, nil
}
