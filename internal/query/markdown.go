package query

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/semcode-mcp/pkg/types"
)

// contextLines of source are shown before the function start, and the body
// window below is capped so one hit cannot flood the output.
const (
	contextLines = 2
	maxBodyLines = 50
)

var extLanguages = map[string]string{
	"py":   "python",
	"go":   "go",
	"js":   "javascript",
	"ts":   "typescript",
	"tsx":  "tsx",
	"jsx":  "jsx",
	"rs":   "rust",
	"java": "java",
	"c":    "c",
	"h":    "c",
	"cpp":  "cpp",
	"cc":   "cpp",
	"rb":   "ruby",
	"php":  "php",
	"cs":   "csharp",
	"sh":   "bash",
}

// Markdown renders search results for an LLM consumer: one section per hit
// with location, score, and a fenced snippet read fresh from the source file
// with two lines of leading context.
func Markdown(query string, results []types.SearchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Search results for: %s\n", query)
	if len(results) == 0 {
		b.WriteString("\nNo matching functions found.\n")
		return b.String()
	}

	for i, r := range results {
		fmt.Fprintf(&b, "\n## %d. %s:%d (score %.4f)\n\n", i+1, r.Function.File, r.Function.StartLine+1, r.Score)
		fmt.Fprintf(&b, "```%s\n%s\n```\n", languageFor(r.Function.File), snippet(r.Function.File, int(r.Function.StartLine)))
	}
	return b.String()
}

// snippet reads the function region from disk, starting contextLines above
// the function. Files that cannot be read yield a placeholder line.
func snippet(path string, line int) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("// could not read file: %s", path)
	}

	lines := strings.Split(string(content), "\n")
	start := line - contextLines
	if start < 0 {
		start = 0
	}
	end := line + maxBodyLines
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.TrimRight(strings.Join(lines[start:end], "\n"), " \t\n")
}

func languageFor(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return extLanguages[ext]
}
