package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodeTool returns the tool definition for index_code
func indexCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_code",
		Description: "Incrementally index source files into the semantic search index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_file": map[string]interface{}{
					"type":        "string",
					"description": "Path to a JSON job descriptor ({files:[{path, tree_file}], model, batch_size})",
				},
				"files": map[string]interface{}{
					"type":        "array",
					"description": "Inline file list, used when job_file is not given",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"path": map[string]interface{}{
								"type":        "string",
								"description": "Absolute path to the source file",
							},
							"tree_file": map[string]interface{}{
								"type":        "string",
								"description": "Path to the syntax-tree dump for the source file",
							},
						},
						"required": []string{"path", "tree_file"},
					},
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-index every file regardless of fingerprints",
					"default":     false,
				},
				"batch_size": map[string]interface{}{
					"type":        "integer",
					"description": "Embedding batch size (capped at the provider maximum)",
				},
			},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed functions with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language search query",
				},
				"n_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Keep only results from these files (absolute paths)",
					"items":       map[string]interface{}{"type": "string"},
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"description": "Keep only results with these file extensions (case-insensitive, leading dot optional)",
					"items":       map[string]interface{}{"type": "string"},
				},
				"format": map[string]interface{}{
					"type":        "string",
					"description": "Output format: markdown with code snippets, or plain JSON locations",
					"enum":        []string{"markdown", "json"},
					"default":     "markdown",
				},
			},
			Required: []string{"query"},
		},
	}
}

// clusterCodeTool returns the tool definition for cluster_code
func clusterCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cluster_code",
		Description: "Group near-duplicate functions by embedding distance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"max_distance": map[string]interface{}{
					"type":        "number",
					"description": "Distance threshold where cluster merging stops",
					"default":     0.2,
					"minimum":     0.0,
				},
				"min_lines": map[string]interface{}{
					"type":        "integer",
					"description": "Drop clusters containing a function with this many lines or fewer",
					"default":     0,
				},
				"min_cluster_size": map[string]interface{}{
					"type":        "integer",
					"description": "Drop clusters with fewer members",
					"default":     2,
				},
				"ignore_identical": map[string]interface{}{
					"type":        "boolean",
					"description": "Drop clusters whose average merge distance is zero (identical embeddings)",
					"default":     true,
				},
			},
		},
	}
}

// pruneIndexTool returns the tool definition for prune_index
func pruneIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "prune_index",
		Description: "Remove vectors that no indexed file owns (left by interrupted runs)",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics: file count, vector count, model, dimension",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
