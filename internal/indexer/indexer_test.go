package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcode-mcp/internal/ann"
	"github.com/dshills/semcode-mcp/internal/embedder"
)

const testDim = 8

// writeSource writes a python-ish file with one two-line function per name,
// plus the matching syntax-tree dump, and returns the job entry for it.
func writeSource(t *testing.T, dir, name string, funcNames []string) JobFile {
	t.Helper()

	var src strings.Builder
	var tree strings.Builder
	total := 2 * len(funcNames)
	fmt.Fprintf(&tree, "(module [0:0-%d:0]", total)
	for i, fn := range funcNames {
		fmt.Fprintf(&src, "def %s():\n    pass\n", fn)
		fmt.Fprintf(&tree, " (function_definition [%d:0-%d:8])", 2*i, 2*i+1)
	}
	tree.WriteString(")")

	srcPath := filepath.Join(dir, name)
	treePath := filepath.Join(dir, name+".tree")
	require.NoError(t, os.WriteFile(srcPath, []byte(src.String()), 0o644))
	require.NoError(t, os.WriteFile(treePath, []byte(tree.String()), 0o644))

	return JobFile{Path: srcPath, TreeFile: treePath}
}

func openTestIndexer(t *testing.T, dir string) (*Indexer, *embedder.Mock) {
	t.Helper()
	mock := embedder.NewMock(testDim)
	ix, err := Open(Config{StorageDir: dir, Embedder: mock})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix, mock
}

func TestRunIndexesNewFiles(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	job := &Job{Files: []JobFile{
		writeSource(t, dir, "a.py", []string{"alpha", "beta", "gamma"}),
		writeSource(t, dir, "b.py", []string{"delta"}),
	}}

	stats, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 4, stats.FunctionsIndexed)
	assert.Equal(t, 4, ix.Index().Count())

	records, err := ix.Store().ListFileRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec := records[job.Files[0].Path]
	require.NotNil(t, rec)
	assert.Equal(t, []uint32{0, 2, 4}, rec.FunctionLines)
	assert.Len(t, rec.VectorIDs, 3)
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	ix, mock := openTestIndexer(t, dir)
	ctx := context.Background()

	job := &Job{Files: []JobFile{
		writeSource(t, dir, "a.py", []string{"alpha", "beta"}),
		writeSource(t, dir, "b.py", []string{"gamma"}),
	}}

	_, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)
	callsAfterFirst := mock.Calls()

	stats, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 2, stats.FilesUnchanged)
	assert.Equal(t, 3, ix.Index().Count())

	// Only the dimension probe hits the provider on a no-change pass.
	assert.Equal(t, callsAfterFirst+1, mock.Calls())
}

func TestRunForceReindexesEverything(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	job := &Job{Files: []JobFile{writeSource(t, dir, "a.py", []string{"alpha"})}}

	_, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)

	stats, err := ix.Run(ctx, job, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesUnchanged)
	assert.Equal(t, 1, ix.Index().Count())
}

// The two-file scenario: index 3+1 functions, change one file, re-run. The
// changed file gets entirely new ids, the untouched file keeps its ids, and
// the live count is back to 4.
func TestRunIncrementalUpdate(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	fileA := writeSource(t, dir, "a.py", []string{"alpha", "beta", "gamma"})
	fileB := writeSource(t, dir, "b.py", []string{"delta"})
	job := &Job{Files: []JobFile{fileA, fileB}}

	_, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)

	records, err := ix.Store().ListFileRecords(ctx)
	require.NoError(t, err)
	oldAIDs := records[fileA.Path].VectorIDs
	oldBIDs := records[fileB.Path].VectorIDs

	// Rewrite file A with one function renamed.
	writeSource(t, dir, "a.py", []string{"alpha", "beta", "renamed"})

	stats, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesUnchanged)
	assert.Equal(t, 4, ix.Index().Count())

	records, err = ix.Store().ListFileRecords(ctx)
	require.NoError(t, err)
	newAIDs := records[fileA.Path].VectorIDs

	// All of A's ids are fresh, none recycled.
	for _, id := range newAIDs {
		assert.NotContains(t, oldAIDs, id)
	}
	assert.Equal(t, oldBIDs, records[fileB.Path].VectorIDs)
}

func TestVectorIDsMonotonic(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	fileA := writeSource(t, dir, "a.py", []string{"alpha", "beta"})
	job := &Job{Files: []JobFile{fileA}}

	_, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)

	maxSeen := int64(-1)
	for pass := 0; pass < 3; pass++ {
		writeSource(t, dir, "a.py", []string{"alpha", fmt.Sprintf("beta_v%d", pass)})
		_, err := ix.Run(ctx, job, Options{})
		require.NoError(t, err)

		records, err := ix.Store().ListFileRecords(ctx)
		require.NoError(t, err)
		for _, id := range records[fileA.Path].VectorIDs {
			assert.Greater(t, id, maxSeen)
		}
		for _, id := range records[fileA.Path].VectorIDs {
			if id > maxSeen {
				maxSeen = id
			}
		}
	}
}

func TestRunZeroFunctionFile(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	srcPath := filepath.Join(dir, "empty.py")
	treePath := filepath.Join(dir, "empty.py.tree")
	require.NoError(t, os.WriteFile(srcPath, []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(treePath, []byte("(module [0:0-1:0])"), 0o644))

	job := &Job{Files: []JobFile{{Path: srcPath, TreeFile: treePath}}}
	stats, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, ix.Index().Count())

	records, err := ix.Store().ListFileRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunMissingInputsSkipped(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	good := writeSource(t, dir, "good.py", []string{"alpha"})
	job := &Job{Files: []JobFile{
		good,
		{Path: filepath.Join(dir, "gone.py"), TreeFile: filepath.Join(dir, "gone.tree")},
	}}

	stats, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "gone.py")
}

func TestRunEmbeddingFailureFatal(t *testing.T) {
	dir := t.TempDir()
	ix, mock := openTestIndexer(t, dir)

	mock.Err = errors.New("provider down")
	job := &Job{Files: []JobFile{writeSource(t, dir, "a.py", []string{"alpha"})}}

	_, err := ix.Run(context.Background(), job, Options{})
	require.Error(t, err)
}

func TestModelChangeRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	fileA := writeSource(t, dir, "a.py", []string{"alpha", "beta"})
	job := &Job{Files: []JobFile{fileA}, Model: "model-one"}

	_, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)

	records, err := ix.Store().ListFileRecords(ctx)
	require.NoError(t, err)
	oldIDs := records[fileA.Path].VectorIDs

	job.Model = "model-two"
	stats, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)
	assert.True(t, stats.IndexRebuilt)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 2, ix.Index().Count())

	// The counter survives the rebuild: no id is ever reissued.
	records, err = ix.Store().ListFileRecords(ctx)
	require.NoError(t, err)
	for _, id := range records[fileA.Path].VectorIDs {
		assert.NotContains(t, oldIDs, id)
	}

	global, err := ix.Store().LoadGlobal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "model-two", global.Model)
}

func TestPruneRemovesOrphans(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	job := &Job{Files: []JobFile{writeSource(t, dir, "a.py", []string{"alpha"})}}
	_, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)

	// Simulate a crash that stranded vectors: live in the index, owned by
	// nobody.
	start, err := ix.Store().AllocateVectorIDs(ctx, 2)
	require.NoError(t, err)
	orphan := make([]float32, testDim)
	orphan[0] = 1
	require.NoError(t, ix.Index().Add([][]float32{orphan, orphan}, []int64{start, start + 1}))
	require.Equal(t, 3, ix.Index().Count())

	removed, err := Prune(ctx, ix.Store(), ix.Index())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, ix.Index().Count())

	// A clean index prunes nothing.
	removed, err = Prune(ctx, ix.Store(), ix.Index())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

// coreOnly strips the optional capabilities from a flat index.
type coreOnly struct {
	inner *ann.Flat
}

func (c *coreOnly) Add(vectors [][]float32, ids []int64) error { return c.inner.Add(vectors, ids) }
func (c *coreOnly) Reconstruct(id int64) ([]float32, error)    { return c.inner.Reconstruct(id) }
func (c *coreOnly) Search(q []float32, k int) ([]ann.Result, error) {
	return c.inner.Search(q, k)
}
func (c *coreOnly) Count() int     { return c.inner.Count() }
func (c *coreOnly) Dimension() int { return c.inner.Dimension() }

func TestPruneWithoutEnumeration(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	flat := ann.NewFlat(testDim)
	v := make([]float32, testDim)
	v[0] = 1
	require.NoError(t, flat.Add([][]float32{v}, []int64{99}))

	removed, err := Prune(ctx, ix.Store(), &coreOnly{inner: flat})
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestRemoveUnsupportedDegrades(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	fileA := writeSource(t, dir, "a.py", []string{"alpha"})
	job := &Job{Files: []JobFile{fileA}}

	_, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)

	ix.SetIndex(ann.WithoutRemove(ix.Index()))
	writeSource(t, dir, "a.py", []string{"alpha_v2"})

	stats, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, stats.VectorsRemoved)

	// The stale vector stays live until a capable index prunes it, but the
	// record only owns the new id.
	assert.Equal(t, 2, ix.Index().Count())
	records, err := ix.Store().ListFileRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records[fileA.Path].VectorIDs, 1)
}

func TestReopenLoadsPersistedIndex(t *testing.T) {
	dir := t.TempDir()
	mock := embedder.NewMock(testDim)
	ix, err := Open(Config{StorageDir: dir, Embedder: mock})
	require.NoError(t, err)

	job := &Job{Files: []JobFile{writeSource(t, dir, "a.py", []string{"alpha", "beta"})}}
	_, err = ix.Run(context.Background(), job, Options{})
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	reopened, err := Open(Config{StorageDir: dir, Embedder: mock})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	require.NotNil(t, reopened.Index())
	assert.Equal(t, 2, reopened.Index().Count())
	assert.Equal(t, testDim, reopened.Index().Dimension())
}

func TestStorageDirLocked(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	_ = ix

	_, err := Open(Config{StorageDir: dir, Embedder: embedder.NewMock(testDim)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	ix, _ := openTestIndexer(t, dir)
	ctx := context.Background()

	job := &Job{Files: []JobFile{
		writeSource(t, dir, "a.py", []string{"alpha", "beta"}),
		writeSource(t, dir, "b.py", []string{"gamma"}),
	}, Model: "mock-model"}
	_, err := ix.Run(ctx, job, Options{})
	require.NoError(t, err)

	status, err := ix.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Files)
	assert.Equal(t, 3, status.Vectors)
	assert.Equal(t, "mock-model", status.Model)
	assert.Equal(t, testDim, status.Dimension)
}

func TestLoadJob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	content := `{"files":[{"path":"/src/a.py","tree_file":"/src/a.tree"}],"model":"m","batch_size":10}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	job, err := LoadJob(path)
	require.NoError(t, err)
	require.Len(t, job.Files, 1)
	assert.Equal(t, "/src/a.py", job.Files[0].Path)
	assert.Equal(t, "/src/a.tree", job.Files[0].TreeFile)
	assert.Equal(t, "m", job.Model)
	assert.Equal(t, 10, job.batchSize())
}

func TestLoadJobInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadJob(path)
	require.Error(t, err)

	_, err = LoadJob(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	require.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	lock.Release()
	assert.True(t, lock.TryAcquire())
}
