package ann

import (
	"errors"
	"math"
)

// Common errors
var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrIDExists          = errors.New("vector id already present")
	ErrIDNotFound        = errors.New("vector id not present")
	ErrCountMismatch     = errors.New("vectors and ids length mismatch")
)

// Result is one nearest-neighbor match. ID is the stable vector id; Score is
// the inner product with the query (cosine similarity when both sides are
// L2-normalized).
type Result struct {
	ID    int64
	Score float64
}

// Index is the vector container the indexing layer builds on. Vectors are
// addressed by caller-assigned stable int64 ids; physical storage slots are
// an implementation detail and are never exposed.
//
// k <= 0 or k greater than the live count means "search everything".
type Index interface {
	// Add inserts vectors under the given stable ids.
	Add(vectors [][]float32, ids []int64) error

	// Reconstruct returns a copy of the vector stored under id.
	Reconstruct(id int64) ([]float32, error)

	// Search returns the k nearest neighbors of query by descending inner
	// product. Ties keep insertion-scan order.
	Search(query []float32, k int) ([]Result, error)

	// Count reports the number of live vectors.
	Count() int

	// Dimension reports the fixed vector dimensionality.
	Dimension() int
}

// Remover is the optional removal capability. Indexes without it degrade to
// metadata-only removal upstream.
type Remover interface {
	Remove(ids []int64) error
}

// Enumerator is the optional id-enumeration capability used by orphan
// reconciliation. Indexes without it make pruning a no-op.
type Enumerator interface {
	IDs() []int64
}

// Normalize scales v to unit L2 length in place and returns it. A zero
// vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
