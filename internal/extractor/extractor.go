package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/dshills/semcode-mcp/internal/treesit"
	"github.com/dshills/semcode-mcp/pkg/types"
)

// DefaultNodeTypes are the syntax-tree node types treated as functions across
// the supported grammars.
var DefaultNodeTypes = []string{
	"function_definition",
	"method_definition",
	"function_declaration",
	"method_declaration",
}

// contextLines is how much source is re-read per function when text is
// reconstructed on demand.
const contextLines = 50

// Functions maps function-like nodes of a syntax-tree dump onto spans of the
// source file and returns one record per function, de-indented and ready for
// embedding.
//
// A tree that fails to parse yields an empty slice, not an error: the caller
// may legitimately hand over a syntactically broken file. Nodes whose start
// line falls beyond the end of the file (tree/file mismatch) are silently
// skipped.
func Functions(treeText, filePath, fileContent string, nodeTypes []string) []types.Function {
	root, err := treesit.Parse(treeText)
	if err != nil {
		return nil
	}

	if len(nodeTypes) == 0 {
		nodeTypes = DefaultNodeTypes
	}
	nodes := treesit.ExtractByType(root, nodeTypes)

	lines := strings.Split(fileContent, "\n")
	functions := make([]types.Function, 0, len(nodes))

	for _, node := range nodes {
		start := int(node.StartLine)
		if start >= len(lines) {
			continue
		}
		end := int(node.EndLine) + 1
		if end > len(lines) {
			end = len(lines)
		}

		text := Dedent(strings.Join(lines[start:end], "\n"))
		functions = append(functions, types.Function{
			File:      filePath,
			StartLine: node.StartLine,
			Text:      text,
		})
	}

	return functions
}

// Dedent strips the common leading whitespace from every line of text. The
// width is the minimum leading-whitespace length across non-blank lines,
// measured in characters, so the operation is language-agnostic and treats
// tabs and spaces alike.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")

	margin := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	if margin <= 0 {
		return text
	}

	for i, line := range lines {
		if len(line) >= margin {
			lines[i] = line[margin:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}

// ReadFunctionText re-reads a function's text from its source file, starting
// at the given 0-indexed line and spanning at most 50 lines. Errors never
// propagate; an unreadable file yields a placeholder so display and filter
// paths keep working.
func ReadFunctionText(path string, line uint32) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("// could not read file: %s", path)
	}

	lines := strings.Split(string(content), "\n")
	start := int(line)
	if start >= len(lines) {
		start = len(lines) - 1
	}
	if start < 0 {
		start = 0
	}
	end := start + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	return strings.TrimRight(strings.Join(lines[start:end], "\n"), " \t\n")
}
