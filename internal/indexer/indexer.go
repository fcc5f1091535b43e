package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/semcode-mcp/internal/ann"
	"github.com/dshills/semcode-mcp/internal/embedder"
	"github.com/dshills/semcode-mcp/internal/extractor"
	"github.com/dshills/semcode-mcp/internal/metastore"
	"github.com/dshills/semcode-mcp/pkg/types"
)

const (
	dbFileName    = "meta.db"
	indexFileName = "index.bin"
)

// Config contains configuration for the indexer
type Config struct {
	StorageDir string            // Directory holding the metadata DB and index blob
	Embedder   embedder.Embedder // Required
	Workers    int               // Concurrent fingerprint checks (default: runtime.NumCPU())
	NodeTypes  []string          // Syntax-tree node types treated as functions (default: extractor.DefaultNodeTypes)
}

// Options control a single indexing pass.
type Options struct {
	Force bool // Re-index every file regardless of fingerprints
}

// Statistics describes one completed indexing pass.
type Statistics struct {
	FilesIndexed     int
	FilesUnchanged   int
	FilesSkipped     int
	FunctionsIndexed int
	VectorsRemoved   int
	OrphansPruned    int
	IndexRebuilt     bool
	Duration         time.Duration
	ErrorMessages    []string
}

// Indexer maintains the vector index and its metadata incrementally. One
// Indexer owns the storage directory exclusively: an advisory file lock keeps
// other processes out, and an in-process lock serializes passes.
type Indexer struct {
	dir     string
	store   *metastore.Store
	emb     embedder.Embedder
	workers int
	types   []string

	mu    sync.RWMutex
	index ann.Index

	lock    IndexLock
	dirLock interface{ Unlock() error }
}

// Open acquires the storage directory and loads any existing index blob.
func Open(cfg Config) (*Indexer, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.StorageDir == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	dirLock, err := lockStorageDir(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	store, err := metastore.Open(filepath.Join(cfg.StorageDir, dbFileName))
	if err != nil {
		_ = dirLock.Unlock()
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ix := &Indexer{
		dir:     cfg.StorageDir,
		store:   store,
		emb:     cfg.Embedder,
		workers: workers,
		types:   cfg.NodeTypes,
		dirLock: dirLock,
	}

	blobPath := filepath.Join(cfg.StorageDir, indexFileName)
	if _, err := os.Stat(blobPath); err == nil {
		flat, err := ann.LoadFile(blobPath)
		if err != nil {
			_ = store.Close()
			_ = dirLock.Unlock()
			return nil, fmt.Errorf("%w: %v", types.ErrCorruptStore, err)
		}
		ix.index = flat
	}

	return ix, nil
}

// Close releases the store and the storage-directory lock.
func (ix *Indexer) Close() error {
	err := ix.store.Close()
	if ix.dirLock != nil {
		if uerr := ix.dirLock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}

// Store exposes the metadata store for the query and cluster layers.
func (ix *Indexer) Store() *metastore.Store {
	return ix.store
}

// Index exposes the current vector index, which may be nil before the first
// pass.
func (ix *Indexer) Index() ann.Index {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.index
}

// SetIndex swaps in a different index implementation. Used to exercise
// degraded capability paths.
func (ix *Indexer) SetIndex(index ann.Index) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.index = index
}

// Run executes one incremental pass over the job's files: reconcile orphans,
// diff fingerprints, re-embed new and changed files, persist the index blob.
func (ix *Indexer) Run(ctx context.Context, job *Job, opts Options) (*Statistics, error) {
	if !ix.lock.TryAcquire() {
		return nil, fmt.Errorf("an indexing pass is already running")
	}
	defer ix.lock.Release()

	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	// Scanning: probe the provider and make model and dimension coherent
	// before touching anything.
	dim, err := embedder.ProbeDimension(ctx, ix.emb)
	if err != nil {
		return nil, fmt.Errorf("embedding probe failed: %w", err)
	}

	global, err := ix.store.LoadGlobal(ctx)
	if err != nil {
		return nil, err
	}

	model := job.Model
	if model == "" {
		model = ix.emb.Model()
	}

	if err := ix.ensureCoherent(ctx, &global, model, dim, stats); err != nil {
		return nil, err
	}

	// Pruning: clear orphans left by an interrupted pass.
	pruned, err := Prune(ctx, ix.store, ix.Index())
	if err != nil {
		return nil, fmt.Errorf("orphan prune failed: %w", err)
	}
	stats.OrphansPruned = pruned

	// Diffing: fingerprint checks are read-only and run in parallel.
	records, err := ix.store.ListFileRecords(ctx)
	if err != nil {
		return nil, err
	}
	dirty, unchanged, err := ix.diff(ctx, job, records, opts)
	if err != nil {
		return nil, err
	}
	stats.FilesUnchanged = unchanged

	// PerFileUpdate: strictly sequential, old vectors gone before new ones
	// exist.
	for _, jf := range dirty {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ix.updateFile(ctx, jf, job.batchSize(), stats); err != nil {
			if errors.Is(err, types.ErrMissingFile) || errors.Is(err, types.ErrMissingTreeInput) {
				log.Printf("skipping %s: %v", jf.Path, err)
				stats.FilesSkipped++
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", jf.Path, err))
				continue
			}
			// Embedding and store failures poison the pass.
			return nil, err
		}
		stats.FilesIndexed++
	}

	// Flushed: one blob write per pass.
	if err := ix.flush(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// ensureCoherent checks the stored model and index dimension against the
// current provider, rebuilding from empty when they disagree. Rebuilds lose
// vectors, never ids: the allocation counter survives.
func (ix *Indexer) ensureCoherent(ctx context.Context, global *metastore.Global, model string, dim int, stats *Statistics) error {
	rebuild := false
	if global.Model != "" && global.Model != model {
		log.Printf("embedding model changed (%s -> %s), rebuilding index from scratch", global.Model, model)
		rebuild = true
	}
	if cur := ix.Index(); cur != nil && cur.Dimension() != dim {
		log.Printf("embedding dimension changed (%d -> %d), rebuilding index from scratch", cur.Dimension(), dim)
		rebuild = true
	}

	if rebuild {
		records, err := ix.store.ListFileRecords(ctx)
		if err != nil {
			return err
		}
		for path := range records {
			if err := ix.store.DeleteFileRecord(ctx, path); err != nil {
				return err
			}
		}
		ix.SetIndex(ann.NewFlat(dim))
		stats.IndexRebuilt = true
	} else if ix.Index() == nil {
		ix.SetIndex(ann.NewFlat(dim))
	}

	global.Model = model
	return ix.store.SaveGlobal(ctx, *global)
}

// diff splits the job's files into dirty (new or changed) and unchanged.
// Unchanged files cost one fingerprint comparison and nothing else.
func (ix *Indexer) diff(ctx context.Context, job *Job, records map[string]*metastore.FileRecord, opts Options) ([]JobFile, int, error) {
	type verdict struct {
		file  JobFile
		dirty bool
	}
	verdicts := make([]verdict, len(job.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)

	for i, jf := range job.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := metastore.NormalizePath(jf.Path)
			if err != nil {
				return err
			}
			jf.Path = path

			dirty := true
			if !opts.Force {
				if rec, ok := records[path]; ok && metastore.Unchanged(path, rec.Fingerprint) {
					dirty = false
				}
			}
			verdicts[i] = verdict{file: jf, dirty: dirty}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var dirty []JobFile
	unchanged := 0
	for _, v := range verdicts {
		if v.dirty {
			dirty = append(dirty, v.file)
		} else {
			unchanged++
		}
	}
	return dirty, unchanged, nil
}

// updateFile re-indexes one file: remove old vectors and record, extract,
// embed, add under a fresh contiguous id block, then save the record. The
// fingerprint is taken only after extraction and embedding succeed, so a
// crash mid-update re-indexes the file next pass.
func (ix *Indexer) updateFile(ctx context.Context, jf JobFile, batchSize int, stats *Statistics) error {
	source, err := os.ReadFile(jf.Path)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrMissingFile, jf.Path)
	}
	treeText, err := os.ReadFile(jf.TreeFile)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrMissingTreeInput, jf.TreeFile)
	}

	if err := ix.removeFile(ctx, jf.Path, stats); err != nil {
		return err
	}

	functions := extractor.Functions(string(treeText), jf.Path, string(source), ix.types)
	if len(functions) == 0 {
		// Nothing to index; the file simply does not appear.
		return nil
	}

	texts := make([]string, len(functions))
	for i, fn := range functions {
		texts[i] = fn.Text
	}
	vectors, err := ix.encodeBatched(ctx, texts, batchSize)
	if err != nil {
		return err
	}

	index := ix.Index()
	for i := range vectors {
		if len(vectors[i]) != index.Dimension() {
			return fmt.Errorf("%w: vector %d has dimension %d, index holds %d",
				types.ErrModelMismatch, i, len(vectors[i]), index.Dimension())
		}
		ann.Normalize(vectors[i])
	}

	fingerprint, err := metastore.Fingerprint(jf.Path)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrMissingFile, jf.Path)
	}

	start, err := ix.store.AllocateVectorIDs(ctx, len(vectors))
	if err != nil {
		return err
	}
	ids := make([]int64, len(vectors))
	lines := make([]uint32, len(vectors))
	for i := range vectors {
		ids[i] = start + int64(i)
		lines[i] = functions[i].StartLine
	}

	if err := index.Add(vectors, ids); err != nil {
		return fmt.Errorf("failed to add vectors for %s: %w", jf.Path, err)
	}

	rec := &metastore.FileRecord{
		VectorIDs:     ids,
		FunctionLines: lines,
		Fingerprint:   fingerprint,
	}
	if err := ix.store.SaveFileRecord(ctx, jf.Path, rec); err != nil {
		return err
	}

	stats.FunctionsIndexed += len(functions)
	return nil
}

// removeFile drops a file's vectors and record. A backend that cannot remove
// vectors gets metadata-only removal plus a warning; the next prune pass on a
// capable index cleans up.
func (ix *Indexer) removeFile(ctx context.Context, path string, stats *Statistics) error {
	rec, err := ix.store.LoadFileRecord(ctx, path)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	removed := false
	if remover, ok := ix.Index().(ann.Remover); ok {
		err := remover.Remove(rec.VectorIDs)
		if err == nil {
			removed = true
		} else if !errors.Is(err, types.ErrRemoveUnsupported) {
			return err
		}
	}
	if !removed {
		log.Printf("index does not support removal, %d stale vectors for %s left until prune", len(rec.VectorIDs), path)
	} else {
		stats.VectorsRemoved += len(rec.VectorIDs)
	}

	return ix.store.DeleteFileRecord(ctx, path)
}

// encodeBatched embeds texts with one provider call per batch.
func (ix *Indexer) encodeBatched(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := ix.emb.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// flush persists the index blob next to the metadata database.
func (ix *Indexer) flush() error {
	flat, ok := ix.Index().(*ann.Flat)
	if !ok {
		// Non-flat backends persist however they persist.
		return nil
	}
	return flat.SaveFile(filepath.Join(ix.dir, indexFileName))
}

// Status summarizes the current index for the status tool.
type Status struct {
	Files      int
	Vectors    int
	Model      string
	Dimension  int
	BuildMode  string
	StorageDir string
}

// Status reports file count, live vector count, model and dimension.
func (ix *Indexer) Status(ctx context.Context) (*Status, error) {
	global, err := ix.store.LoadGlobal(ctx)
	if err != nil {
		return nil, err
	}
	records, err := ix.store.ListFileRecords(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Files:      len(records),
		Model:      global.Model,
		BuildMode:  metastore.BuildMode,
		StorageDir: ix.dir,
	}
	if index := ix.Index(); index != nil {
		st.Vectors = index.Count()
		st.Dimension = index.Dimension()
	}
	return st, nil
}
