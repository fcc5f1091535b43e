package query

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/dshills/semcode-mcp/internal/ann"
	"github.com/dshills/semcode-mcp/internal/metastore"
	"github.com/dshills/semcode-mcp/pkg/types"
)

// DefaultK is the result count when the caller does not set one.
const DefaultK = 5

// Options narrow a search.
type Options struct {
	Paths      []string // keep only these files (normalized absolute paths)
	Extensions []string // keep only these file extensions, case-insensitive, leading dot optional
	K          int      // max results after filtering (default DefaultK)
}

// Search finds the K best-matching functions for an embedded query.
//
// The whole live set is scored and filtered afterwards, rather than taking
// top-K first: a post-hoc filter over a truncated candidate list would starve
// narrow filters of results. Stable ids with no owning file record (a crash
// window artifact) are silently dropped.
func Search(ctx context.Context, store *metastore.Store, index ann.Index, queryVec []float32, opts Options) ([]types.SearchResult, error) {
	if index == nil || index.Count() == 0 {
		return nil, nil
	}

	k := opts.K
	if k <= 0 {
		k = DefaultK
	}

	query := make([]float32, len(queryVec))
	copy(query, queryVec)
	ann.Normalize(query)

	// k <= 0 scans everything.
	matches, err := index.Search(query, 0)
	if err != nil {
		return nil, err
	}

	pathSet := make(map[string]struct{}, len(opts.Paths))
	for _, p := range opts.Paths {
		normalized, err := metastore.NormalizePath(p)
		if err != nil {
			return nil, err
		}
		pathSet[normalized] = struct{}{}
	}
	extSet := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extSet[normalizeExt(ext)] = struct{}{}
	}

	results := make([]types.SearchResult, 0, k)
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ref, err := store.Lookup(ctx, m.ID)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if !matchesFilter(ref.File, pathSet, extSet) {
			continue
		}

		results = append(results, types.SearchResult{Function: ref, Score: m.Score})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// matchesFilter applies the combined path AND extension filter. An empty
// filter set passes everything.
func matchesFilter(file string, paths, exts map[string]struct{}) bool {
	if len(paths) > 0 {
		if _, ok := paths[file]; !ok {
			return false
		}
	}
	if len(exts) > 0 {
		if _, ok := exts[normalizeExt(filepath.Ext(file))]; !ok {
			return false
		}
	}
	return true
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
