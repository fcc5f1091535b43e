package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dshills/semcode-mcp/pkg/types"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// httpProvider is the shared shape of the hosted embedding APIs: both Jina
// and OpenAI speak the same request/response dialect at different endpoints.
type httpProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewJinaProvider creates an embedder backed by the Jina AI API
func NewJinaProvider(apiKey, model string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	if model == "" {
		model = DefaultJinaModel
	}

	return &httpProvider{
		name:     ProviderJina,
		endpoint: "https://api.jina.ai/v1/embeddings",
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

// NewOpenAIProvider creates an embedder backed by the OpenAI API
func NewOpenAIProvider(apiKey, model string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &httpProvider{
		name:     ProviderOpenAI,
		endpoint: "https://api.openai.com/v1/embeddings",
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (p *httpProvider) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	// Serve what the cache already holds; only misses hit the API.
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if p.cache != nil {
			if vec, ok := p.cache.Get(ComputeHash(text)); ok {
				vectors[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	config := DefaultRetryConfig()
	fetched, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
		return p.callAPI(ctx, missing)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s after %d retries: %v", types.ErrEmbeddingProvider, p.name, MaxRetries, err)
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts", types.ErrEmbeddingProvider, p.name, len(fetched), len(missing))
	}

	for j, vec := range fetched {
		i := missingIdx[j]
		vectors[i] = vec
		if p.cache != nil {
			p.cache.Set(ComputeHash(texts[i]), vec)
		}
	}
	return vectors, nil
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": p.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vectors := make([][]float32, len(apiResp.Data))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("response index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

func (p *httpProvider) Provider() string {
	return p.name
}

func (p *httpProvider) Model() string {
	return p.model
}

func (p *httpProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds without any network dependency: vectors are derived
// deterministically from a chained SHA-256 of the text. Useless for semantic
// quality, but stable across runs, which is what offline development and the
// test suite need.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-embeddings",
		cache: cache,
	}, nil
}

func (l *LocalProvider) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		hash := ComputeHash(text)
		if l.cache != nil {
			if vec, ok := l.cache.Get(hash); ok {
				vectors[i] = vec
				continue
			}
		}

		vec := deterministicVector(text, LocalDimension)
		if l.cache != nil {
			l.cache.Set(hash, vec)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// deterministicVector expands a chained hash of text into dim bytes.
func deterministicVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	block := sha256.Sum256([]byte(text))
	for i := 0; i < dim; i++ {
		if i > 0 && i%len(block) == 0 {
			block = sha256.Sum256(block[:])
		}
		vec[i] = float32(block[i%len(block)])/255.0 - 0.5
	}
	return vec
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
