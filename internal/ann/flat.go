package ann

import (
	"fmt"
	"sort"
	"sync"
)

// Flat is an exact inner-product index. Vectors live in insertion order in a
// slot array; a side map translates stable ids to slots so removal can
// compact by swapping the last slot into the hole. Slots are therefore
// unstable across removals and never leave this package.
//
// All methods are safe for concurrent use.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	ids       []int64     // slot -> stable id
	vectors   [][]float32 // slot -> vector, parallel to ids
	slotByID  map[int64]int
}

// NewFlat creates an empty flat index for vectors of the given dimension.
func NewFlat(dimension int) *Flat {
	return &Flat{
		dimension: dimension,
		slotByID:  make(map[int64]int),
	}
}

// Add inserts vectors under the given stable ids. The call is atomic: any
// dimension mismatch or duplicate id fails the whole batch before the first
// insertion.
func (f *Flat) Add(vectors [][]float32, ids []int64) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: %d vectors, %d ids", ErrCountMismatch, len(vectors), len(ids))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, v := range vectors {
		if len(v) != f.dimension {
			return fmt.Errorf("%w: got %d, index holds %d", ErrDimensionMismatch, len(v), f.dimension)
		}
		if _, ok := f.slotByID[ids[i]]; ok {
			return fmt.Errorf("%w: %d", ErrIDExists, ids[i])
		}
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %d duplicated in batch", ErrIDExists, id)
		}
		seen[id] = struct{}{}
	}

	for i, v := range vectors {
		stored := make([]float32, len(v))
		copy(stored, v)
		f.slotByID[ids[i]] = len(f.ids)
		f.ids = append(f.ids, ids[i])
		f.vectors = append(f.vectors, stored)
	}
	return nil
}

// Remove deletes the given ids. Ids not present are ignored so removal is
// idempotent.
func (f *Flat) Remove(ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		slot, ok := f.slotByID[id]
		if !ok {
			continue
		}
		last := len(f.ids) - 1
		if slot != last {
			f.ids[slot] = f.ids[last]
			f.vectors[slot] = f.vectors[last]
			f.slotByID[f.ids[slot]] = slot
		}
		f.ids = f.ids[:last]
		f.vectors[last] = nil
		f.vectors = f.vectors[:last]
		delete(f.slotByID, id)
	}
	return nil
}

// Reconstruct returns a copy of the vector stored under id.
func (f *Flat) Reconstruct(id int64) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	slot, ok := f.slotByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrIDNotFound, id)
	}
	out := make([]float32, f.dimension)
	copy(out, f.vectors[slot])
	return out, nil
}

// Search scans every live vector and returns the k best by descending inner
// product. Equal scores keep slot-scan order.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has %d, index holds %d", ErrDimensionMismatch, len(query), f.dimension)
	}

	results := make([]Result, len(f.ids))
	for slot, v := range f.vectors {
		results[slot] = Result{ID: f.ids[slot], Score: dot(query, v)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// IDs returns the stable ids of all live vectors in unspecified order.
func (f *Flat) IDs() []int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]int64, len(f.ids))
	copy(out, f.ids)
	return out
}

// Count reports the number of live vectors.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Dimension reports the fixed vector dimensionality.
func (f *Flat) Dimension() int {
	return f.dimension
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
