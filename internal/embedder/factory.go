package embedder

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables consulted by NewFromEnv
const (
	EnvProvider     = "SEMCODE_EMBEDDING_PROVIDER"
	EnvModel        = "SEMCODE_EMBEDDING_MODEL"
	EnvCacheSize    = "SEMCODE_EMBEDDING_CACHE_SIZE"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. SEMCODE_EMBEDDING_PROVIDER (jina, openai, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	provider := os.Getenv(EnvProvider)
	model := os.Getenv(EnvModel)
	jinaKey := os.Getenv(EnvJinaAPIKey)
	openaiKey := os.Getenv(EnvOpenAIAPIKey)

	cacheSize := 10000
	if raw := os.Getenv(EnvCacheSize); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cacheSize = n
		}
	}
	cache := NewCache(cacheSize)

	// Explicit provider selection
	if provider != "" {
		switch strings.ToLower(provider) {
		case ProviderJina:
			return NewJinaProvider(jinaKey, model, cache)
		case ProviderOpenAI:
			return NewOpenAIProvider(openaiKey, model, cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	// Auto-detect based on available API keys
	if jinaKey != "" {
		return NewJinaProvider(jinaKey, model, cache)
	}
	if openaiKey != "" {
		return NewOpenAIProvider(openaiKey, model, cache)
	}

	// Fallback to local provider
	return NewLocalProvider(cache)
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cfg.Model, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
