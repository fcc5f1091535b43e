// Package embedder turns function text into embedding vectors through a
// single batch Encode call. Hosted providers (OpenAI, Jina) share one HTTP
// implementation with exponential-backoff retry and a content-hash LRU cache;
// a deterministic local provider covers offline use. NewFromEnv picks a
// provider from SEMCODE_EMBEDDING_PROVIDER or available API keys.
package embedder
