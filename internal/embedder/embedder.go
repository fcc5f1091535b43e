package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder turns batches of function text into embedding vectors. Encode is
// the whole surface: one call per batch, one vector per input text, in input
// order. Vectors come back unnormalized; callers normalize for cosine use.
type Embedder interface {
	// Encode embeds the given texts in order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// ProbeDimension discovers the embedding dimension by encoding one short
// probe text. Providers report fixed dimensions, but probing keeps the index
// layer honest when a model is reconfigured.
func ProbeDimension(ctx context.Context, e Embedder) (int, error) {
	vecs, err := e.Encode(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("%w: empty probe response", ErrInvalidInput)
	}
	return len(vecs[0]), nil
}

// Cache provides in-memory LRU caching of vectors by content hash
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000 // Default: cache 10k embeddings
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Should never happen with positive size, but fallback to default
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{
		cache: cache,
	}
}

// Get retrieves a deep copy of a vector from cache
// Returns a copy to prevent caller mutations from affecting cached values
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}

	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector in cache with automatic LRU eviction
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateBatch rejects empty batches and empty texts before they reach a
// provider.
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
