package cluster

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcode-mcp/internal/ann"
	"github.com/dshills/semcode-mcp/internal/metastore"
	"github.com/dshills/semcode-mcp/pkg/types"
)

func seedStore(t *testing.T, records map[string]*metastore.FileRecord) *metastore.Store {
	t.Helper()
	store, err := metastore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for path, rec := range records {
		require.NoError(t, store.SaveFileRecord(ctx, path, rec))
	}
	return store
}

// Two nearly-parallel unit vectors and one orthogonal outlier: with a
// threshold between the two gaps the parallel pair clusters and the outlier
// stays a discarded singleton.
func TestClustersPairPlusSingleton(t *testing.T) {
	angle := 0.1
	vecs := [][]float32{
		{1, 0},
		{float32(math.Cos(angle)), float32(math.Sin(angle))},
		{0, 1},
	}

	store := seedStore(t, map[string]*metastore.FileRecord{
		"/src/a.py": {
			VectorIDs:     []int64{0, 1},
			FunctionLines: []uint32{0, 10},
			Fingerprint:   types.Fingerprint{MTime: 1},
		},
		"/src/b.py": {
			VectorIDs:     []int64{2},
			FunctionLines: []uint32{0},
			Fingerprint:   types.Fingerprint{MTime: 1},
		},
	})

	index := ann.NewFlat(2)
	require.NoError(t, index.Add(vecs, []int64{0, 1, 2}))

	clusters, err := Clusters(context.Background(), store, index, 0.5)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	c := clusters[0]
	require.Len(t, c.Members, 2)
	assert.Equal(t, int64(0), c.Members[0].VectorID)
	assert.Equal(t, int64(1), c.Members[1].VectorID)

	// The pair merged at roughly the chord distance for a 0.1 rad angle.
	expected := 2 * math.Sin(angle/2)
	assert.InDelta(t, expected, c.AvgDistance, 0.01)
}

func TestClustersThresholdTooSmall(t *testing.T) {
	store := seedStore(t, map[string]*metastore.FileRecord{
		"/src/a.py": {
			VectorIDs:     []int64{0, 1},
			FunctionLines: []uint32{0, 10},
			Fingerprint:   types.Fingerprint{MTime: 1},
		},
	})

	index := ann.NewFlat(2)
	require.NoError(t, index.Add([][]float32{{1, 0}, {0, 1}}, []int64{0, 1}))

	clusters, err := Clusters(context.Background(), store, index, 0.01)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestClustersIdenticalVectors(t *testing.T) {
	store := seedStore(t, map[string]*metastore.FileRecord{
		"/src/a.py": {
			VectorIDs:     []int64{0, 1, 2},
			FunctionLines: []uint32{0, 10, 20},
			Fingerprint:   types.Fingerprint{MTime: 1},
		},
	})

	index := ann.NewFlat(2)
	require.NoError(t, index.Add([][]float32{{1, 0}, {1, 0}, {1, 0}}, []int64{0, 1, 2}))

	clusters, err := Clusters(context.Background(), store, index, 0.1)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 3)
	assert.InDelta(t, 0.0, clusters[0].AvgDistance, 1e-9)
}

func TestClustersSkipsUnreconstructable(t *testing.T) {
	// The record claims three ids but the index only holds two: the stale id
	// is skipped, the remaining pair still clusters.
	store := seedStore(t, map[string]*metastore.FileRecord{
		"/src/a.py": {
			VectorIDs:     []int64{0, 1, 99},
			FunctionLines: []uint32{0, 10, 20},
			Fingerprint:   types.Fingerprint{MTime: 1},
		},
	})

	index := ann.NewFlat(2)
	require.NoError(t, index.Add([][]float32{{1, 0}, {1, 0}}, []int64{0, 1}))

	clusters, err := Clusters(context.Background(), store, index, 0.1)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 2)
}

func TestClustersEmptyIndex(t *testing.T) {
	store := seedStore(t, nil)

	clusters, err := Clusters(context.Background(), store, ann.NewFlat(2), 1.0)
	require.NoError(t, err)
	assert.Empty(t, clusters)

	clusters, err = Clusters(context.Background(), store, nil, 1.0)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func writeFuncFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFilterMinClusterSize(t *testing.T) {
	clusters := []types.Cluster{
		{Members: []types.FunctionRef{{}, {}, {}}},
		{Members: []types.FunctionRef{{}, {}}},
	}

	out := Filter(clusters, Options{MinClusterSize: 3})
	require.Len(t, out, 1)
	assert.Len(t, out[0].Members, 3)
}

func TestFilterMinLines(t *testing.T) {
	dir := t.TempDir()
	long := writeFuncFile(t, dir, "long.py", "def f():\n    a = 1\n    b = 2\n    return a + b\n")
	short := writeFuncFile(t, dir, "short.py", "def g(): pass\n")

	clusters := []types.Cluster{
		{Members: []types.FunctionRef{{File: long, StartLine: 0}, {File: long, StartLine: 0}}},
		// One short member is enough to drop the whole cluster.
		{Members: []types.FunctionRef{{File: long, StartLine: 0}, {File: short, StartLine: 0}}},
	}

	out := Filter(clusters, Options{MinLines: 3})
	require.Len(t, out, 1)
	assert.Equal(t, long, out[0].Members[1].File)

	// The boundary is inclusive: exactly min lines is still too short.
	out = Filter(clusters[:1], Options{MinLines: 4})
	assert.Empty(t, out)
}

func TestFilterIgnoreIdentical(t *testing.T) {
	identical := types.Cluster{AvgDistance: 0, Members: []types.FunctionRef{{}, {}}}
	distinct := types.Cluster{AvgDistance: 0.05, Members: []types.FunctionRef{{}, {}}}

	out := Filter([]types.Cluster{identical, distinct}, Options{IgnoreIdentical: true})
	require.Len(t, out, 1)
	assert.Equal(t, 0.05, out[0].AvgDistance)

	out = Filter([]types.Cluster{identical, distinct}, Options{})
	assert.Len(t, out, 2)
}

func TestFilterNoOptions(t *testing.T) {
	clusters := []types.Cluster{{Members: []types.FunctionRef{{}, {}}}}
	assert.Equal(t, clusters, Filter(clusters, Options{}))
}
