package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcode-mcp/pkg/types"
)

func TestValidateBatch(t *testing.T) {
	assert.NoError(t, ValidateBatch([]string{"a", "b"}))
	assert.ErrorIs(t, ValidateBatch(nil), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatch([]string{"a", ""}), ErrInvalidInput)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(10)

	hash := ComputeHash("some text")
	cache.Set(hash, []float32{1, 2, 3})

	vec, ok := cache.Get(hash)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	// Mutating the returned slice must not poison the cache.
	vec[0] = 99
	again, ok := cache.Get(hash)
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
}

func TestCacheMiss(t *testing.T) {
	cache := NewCache(10)
	_, ok := cache.Get("nope")
	assert.False(t, ok)
}

func TestLocalProviderDeterministic(t *testing.T) {
	local, err := NewLocalProvider(nil)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := local.Encode(ctx, []string{"def f(): pass"})
	require.NoError(t, err)
	b, err := local.Encode(ctx, []string{"def f(): pass"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a[0], LocalDimension)

	c, err := local.Encode(ctx, []string{"def g(): pass"})
	require.NoError(t, err)
	assert.NotEqual(t, a[0], c[0])
}

func TestProbeDimension(t *testing.T) {
	local, err := NewLocalProvider(nil)
	require.NoError(t, err)

	dim, err := ProbeDimension(context.Background(), local)
	require.NoError(t, err)
	assert.Equal(t, LocalDimension, dim)
}

func TestHTTPProviderEncode(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data  []datum `json:"data"`
			Model string  `json:"model"`
		}{Model: req.Model}
		for i := range req.Input {
			resp.Data = append(resp.Data, datum{Embedding: []float32{float32(i), 1}, Index: i})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	provider := &httpProvider{
		name:       "test",
		endpoint:   server.URL,
		apiKey:     "test-key",
		model:      "test-model",
		httpClient: server.Client(),
		cache:      NewCache(10),
	}

	vecs, err := provider.Encode(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0, 1}, vecs[0])
	assert.Equal(t, []float32{1, 1}, vecs[1])
	assert.Equal(t, 1, calls)

	// Second call is served entirely from cache.
	vecs, err = provider.Encode(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, vecs[1])
	assert.Equal(t, 1, calls)
}

func TestHTTPProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := &httpProvider{
		name:       "test",
		endpoint:   server.URL,
		apiKey:     "test-key",
		model:      "test-model",
		httpClient: server.Client(),
	}

	_, err := provider.Encode(context.Background(), []string{"one"})
	assert.ErrorIs(t, err, types.ErrEmbeddingProvider)
}

func TestMockEmbedder(t *testing.T) {
	mock := NewMock(4)
	mock.Vectors = map[string][]float32{"pinned": {1, 0, 0, 0}}
	ctx := context.Background()

	vecs, err := mock.Encode(ctx, []string{"pinned", "free"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vecs[0])
	assert.Len(t, vecs[1], 4)
	assert.Equal(t, 1, mock.Calls())
	assert.Equal(t, []string{"pinned", "free"}, mock.Encoded)
}

func TestNewExplicitConfig(t *testing.T) {
	e, err := New(Config{Provider: ProviderLocal})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())

	_, err = New(Config{Provider: "martian"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
