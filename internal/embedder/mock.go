package embedder

import (
	"context"
	"sync"
)

// Mock is an in-memory Embedder for tests: deterministic vectors, optional
// per-text overrides, call and text counting, and an injectable error.
type Mock struct {
	mu        sync.Mutex
	Dim       int
	Vectors   map[string][]float32 // per-text overrides
	Err       error                // returned by every Encode when set
	CallCount int
	Encoded   []string // every text ever encoded, in order
}

// NewMock creates a mock embedder with the given dimension.
func NewMock(dim int) *Mock {
	return &Mock{Dim: dim}
}

func (m *Mock) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	if m.Err != nil {
		return nil, m.Err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		m.Encoded = append(m.Encoded, text)
		if vec, ok := m.Vectors[text]; ok {
			out := make([]float32, len(vec))
			copy(out, vec)
			vectors[i] = out
			continue
		}
		vectors[i] = deterministicVector(text, m.Dim)
	}
	return vectors, nil
}

func (m *Mock) Provider() string { return "mock" }
func (m *Mock) Model() string    { return "mock-model" }
func (m *Mock) Close() error     { return nil }

// Calls returns how many Encode calls the mock has served.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
