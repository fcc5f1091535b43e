package types

import "errors"

// Domain errors shared across packages
var (
	// ErrMalformedTree is returned when a syntax-tree dump cannot be parsed.
	// Callers treat it as non-fatal: a broken file yields no functions.
	ErrMalformedTree = errors.New("malformed syntax tree")

	// ErrMissingFile indicates a job references a source file that does not exist.
	ErrMissingFile = errors.New("source file not found")

	// ErrMissingTreeInput indicates a job references a tree dump that does not exist.
	ErrMissingTreeInput = errors.New("tree input file not found")

	// ErrModelMismatch indicates the stored index was built with a different
	// embedding model than the one requested. The index must be rebuilt.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrCorruptStore indicates on-disk metadata exists but cannot be read.
	// Fatal for the whole run: index-metadata consistency cannot be trusted.
	ErrCorruptStore = errors.New("metadata store corrupt")

	// ErrRemoveUnsupported indicates the vector index cannot remove vectors.
	// Callers degrade to metadata-only removal and rely on a later prune.
	ErrRemoveUnsupported = errors.New("vector index does not support removal")

	// ErrEmbeddingProvider indicates the embedding provider failed. Fatal for
	// the current batch; already-committed files are unaffected.
	ErrEmbeddingProvider = errors.New("embedding provider failed")

	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("not found")
)
