package cluster

import (
	"context"
	"log"
	"math"
	"sort"

	"github.com/dshills/semcode-mcp/internal/ann"
	"github.com/dshills/semcode-mcp/internal/metastore"
	"github.com/dshills/semcode-mcp/pkg/types"
)

// leaf is one clusterable function: its location plus its normalized vector.
type leaf struct {
	ref types.FunctionRef
	vec []float32
}

// Clusters groups indexed functions whose embeddings sit closer together than
// threshold, using agglomerative clustering with Ward linkage. Merging stops
// before the first merge whose height exceeds the threshold; the surviving
// partitions minus singletons are the result, largest first.
//
// Vectors are reconstructed from the index by stable id; ids that fail to
// reconstruct (removed out from under a stale record) are skipped with a
// warning rather than failing the run.
func Clusters(ctx context.Context, store *metastore.Store, index ann.Index, threshold float64) ([]types.Cluster, error) {
	if index == nil || index.Count() == 0 {
		return nil, nil
	}

	records, err := store.ListFileRecords(ctx)
	if err != nil {
		return nil, err
	}

	// Deterministic leaf order: by path, then by position within the file.
	paths := make([]string, 0, len(records))
	for path := range records {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var leaves []leaf
	for _, path := range paths {
		rec := records[path]
		for i, id := range rec.VectorIDs {
			vec, err := index.Reconstruct(id)
			if err != nil {
				log.Printf("cannot reconstruct vector %d for %s, skipping", id, path)
				continue
			}
			ann.Normalize(vec)
			leaves = append(leaves, leaf{
				ref: types.FunctionRef{File: path, StartLine: rec.FunctionLines[i], VectorID: id},
				vec: vec,
			})
		}
	}
	if len(leaves) < 2 {
		return nil, nil
	}

	groups := agglomerate(ctx, leaves, threshold)

	var clusters []types.Cluster
	for _, g := range groups {
		if len(g.leaves) < 2 {
			continue
		}
		members := make([]types.FunctionRef, len(g.leaves))
		for i, li := range g.leaves {
			members[i] = leaves[li].ref
		}
		clusters = append(clusters, types.Cluster{
			AvgDistance: g.avgDistance(),
			Members:     members,
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Members) > len(clusters[j].Members)
	})
	return clusters, nil
}

// merge records one direct leaf-to-leaf merge and its dendrogram height.
type merge struct {
	a, b   int
	height float64
}

// group is an active cluster during agglomeration. leaves stay sorted by
// index so leaves[0] is the first member.
type group struct {
	leaves []int
	merges []merge
}

// avgDistance is the mean height of the direct leaf-to-leaf merges that
// involved the first member. Merges where the first member joined an
// already-formed cluster do not count, and the mean is zero when no direct
// merge exists. Deliberately narrower than an all-pairs mean; downstream
// thresholds depend on this definition.
func (g *group) avgDistance() float64 {
	first := g.leaves[0]
	var sum float64
	var n int
	for _, m := range g.merges {
		if m.a == first || m.b == first {
			sum += m.height
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// agglomerate runs Ward-linkage hierarchical clustering over the leaves with
// the Lance-Williams update on squared Euclidean distances. Merge height is
// the square root of the Ward criterion, so thresholds compare against
// Euclidean-scale distances.
func agglomerate(ctx context.Context, leaves []leaf, threshold float64) []*group {
	n := len(leaves)

	groups := make([]*group, n)
	active := make([]bool, n)
	size := make([]float64, n)
	for i := range leaves {
		groups[i] = &group{leaves: []int{i}}
		active[i] = true
		size[i] = 1
	}

	// d2[i][j] holds the Ward criterion (squared scale) between groups i, j.
	d2 := make([][]float64, n)
	for i := range d2 {
		d2[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := sqEuclidean(leaves[i].vec, leaves[j].vec)
			d2[i][j] = d
			d2[j][i] = d
		}
	}

	for {
		if ctx.Err() != nil {
			break
		}

		// Find the closest active pair.
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !active[j] {
					continue
				}
				if d2[i][j] < best {
					best = d2[i][j]
					bi, bj = i, j
				}
			}
		}
		if bi < 0 {
			break
		}
		height := math.Sqrt(best)
		if height > threshold {
			break
		}

		a, b := groups[bi], groups[bj]
		merged := &group{
			leaves: mergeSorted(a.leaves, b.leaves),
			merges: append(append([]merge{}, a.merges...), b.merges...),
		}
		if len(a.leaves) == 1 && len(b.leaves) == 1 {
			merged.merges = append(merged.merges, merge{a: a.leaves[0], b: b.leaves[0], height: height})
		}

		// Lance-Williams update for Ward linkage, merged group stored at bi.
		ni, nj := size[bi], size[bj]
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			nk := size[k]
			updated := ((ni+nk)*d2[bi][k] + (nj+nk)*d2[bj][k] - nk*best) / (ni + nj + nk)
			d2[bi][k] = updated
			d2[k][bi] = updated
		}

		groups[bi] = merged
		size[bi] = ni + nj
		active[bj] = false
		groups[bj] = nil
	}

	var out []*group
	for i, g := range groups {
		if active[i] {
			out = append(out, g)
		}
	}
	return out
}

func mergeSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func sqEuclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
