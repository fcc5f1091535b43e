package cluster

import (
	"strings"

	"github.com/dshills/semcode-mcp/internal/extractor"
	"github.com/dshills/semcode-mcp/pkg/types"
)

// Options are the post-clustering filters. Zero values disable each filter.
type Options struct {
	IgnoreIdentical bool // drop clusters whose average merge distance is zero
	MinLines        int  // drop clusters where any member's text is this many lines or fewer
	MinClusterSize  int  // drop clusters with fewer members
}

// Filter applies the display filters to clusters. Function text is re-read
// from the source files (capped at 50 lines per function), so results reflect
// what is on disk now, not what was embedded.
func Filter(clusters []types.Cluster, opts Options) []types.Cluster {
	out := make([]types.Cluster, 0, len(clusters))
	for _, c := range clusters {
		if opts.IgnoreIdentical && c.AvgDistance == 0 {
			continue
		}
		if opts.MinLines > 0 && anyShorter(c.Members, opts.MinLines) {
			continue
		}
		if opts.MinClusterSize > 0 && len(c.Members) < opts.MinClusterSize {
			continue
		}
		out = append(out, c)
	}
	return out
}

// anyShorter reports whether any member's on-disk text has minLines lines or
// fewer.
func anyShorter(members []types.FunctionRef, minLines int) bool {
	for _, m := range members {
		text := extractor.ReadFunctionText(m.File, m.StartLine)
		if lineCount(text) <= minLines {
			return true
		}
	}
	return false
}

func lineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
