package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/semcode-mcp/internal/cluster"
	"github.com/dshills/semcode-mcp/internal/indexer"
	"github.com/dshills/semcode-mcp/internal/metastore"
	"github.com/dshills/semcode-mcp/internal/query"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32001 // Query parameter is empty
	ErrorCodeIndexBusy     = -32002 // Another indexing pass is already running
)

// DefaultMaxDistance is the cluster_code merge threshold when the caller does
// not set one.
const DefaultMaxDistance = 0.2

// handleIndexCode handles the index_code tool invocation
func (s *Server) handleIndexCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	job, err := jobFromArgs(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	force := getBoolDefault(args, "force", false)

	stats, err := s.ix.Run(ctx, job, indexer.Options{Force: force})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"files_indexed":     stats.FilesIndexed,
		"files_unchanged":   stats.FilesUnchanged,
		"files_skipped":     stats.FilesSkipped,
		"functions_indexed": stats.FunctionsIndexed,
		"vectors_removed":   stats.VectorsRemoved,
		"orphans_pruned":    stats.OrphansPruned,
		"index_rebuilt":     stats.IndexRebuilt,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		if len(stats.ErrorMessages) > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = len(stats.ErrorMessages)
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// jobFromArgs builds an indexing job from either a job_file path or an inline
// files array.
func jobFromArgs(args map[string]interface{}) (*indexer.Job, error) {
	if jobFile := getStringDefault(args, "job_file", ""); jobFile != "" {
		job, err := indexer.LoadJob(jobFile)
		if err != nil {
			return nil, err
		}
		if bs := getIntDefault(args, "batch_size", 0); bs > 0 {
			job.BatchSize = bs
		}
		return job, nil
	}

	rawFiles, ok := args["files"].([]interface{})
	if !ok || len(rawFiles) == 0 {
		return nil, fmt.Errorf("either job_file or a non-empty files array is required")
	}

	job := &indexer.Job{
		BatchSize: getIntDefault(args, "batch_size", 0),
	}
	for i, raw := range rawFiles {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("files[%d] must be an object with path and tree_file", i)
		}
		path, _ := entry["path"].(string)
		treeFile, _ := entry["tree_file"].(string)
		if path == "" || treeFile == "" {
			return nil, fmt.Errorf("files[%d] must set both path and tree_file", i)
		}
		job.Files = append(job.Files, indexer.JobFile{Path: path, TreeFile: treeFile})
	}
	return job, nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	queryText, ok := args["query"].(string)
	if !ok || queryText == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	k := getIntDefault(args, "n_results", query.DefaultK)
	if k < 1 || k > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "n_results must be between 1 and 100", map[string]interface{}{
			"param": "n_results",
			"value": k,
		})
	}

	format := getStringDefault(args, "format", "markdown")
	if format != "markdown" && format != "json" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
			"param":   "format",
			"value":   format,
			"allowed": []string{"markdown", "json"},
		})
	}

	vectors, err := s.emb.Encode(ctx, []string{queryText})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to embed query", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results, err := query.Search(ctx, s.ix.Store(), s.ix.Index(), vectors[0], query.Options{
		Paths:      getStringSlice(args, "paths"),
		Extensions: getStringSlice(args, "extensions"),
		K:          k,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if format == "markdown" {
		return mcp.NewToolResultText(query.Markdown(queryText, results)), nil
	}

	hits := make([]map[string]interface{}, len(results))
	for i, r := range results {
		hits[i] = map[string]interface{}{
			"file":       r.Function.File,
			"start_line": r.Function.StartLine,
			"score":      r.Score,
		}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   queryText,
		"results": hits,
	})), nil
}

// handleClusterCode handles the cluster_code tool invocation
func (s *Server) handleClusterCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	maxDistance := getFloatDefault(args, "max_distance", DefaultMaxDistance)
	if maxDistance < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_distance must not be negative", map[string]interface{}{
			"param": "max_distance",
			"value": maxDistance,
		})
	}

	clusters, err := cluster.Clusters(ctx, s.ix.Store(), s.ix.Index(), maxDistance)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "clustering failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	clusters = cluster.Filter(clusters, cluster.Options{
		IgnoreIdentical: getBoolDefault(args, "ignore_identical", true),
		MinLines:        getIntDefault(args, "min_lines", 0),
		MinClusterSize:  getIntDefault(args, "min_cluster_size", 2),
	})

	out := make([]map[string]interface{}, len(clusters))
	for i, c := range clusters {
		members := make([]map[string]interface{}, len(c.Members))
		for j, m := range c.Members {
			members[j] = map[string]interface{}{
				"file":       m.File,
				"start_line": m.StartLine,
			}
		}
		out[i] = map[string]interface{}{
			"avg_distance": c.AvgDistance,
			"members":      members,
		}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cluster_count": len(out),
		"clusters":      out,
	})), nil
}

// handlePruneIndex handles the prune_index tool invocation
func (s *Server) handlePruneIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pruned, err := indexer.Prune(ctx, s.ix.Store(), s.ix.Index())
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "prune failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"orphans_pruned": pruned,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.ix.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"files":       status.Files,
		"vectors":     status.Vectors,
		"model":       status.Model,
		"dimension":   status.Dimension,
		"storage_dir": status.StorageDir,
		"provider":    s.emb.Provider(),
		"build": map[string]interface{}{
			"mode":          status.BuildMode,
			"sqlite_driver": metastore.DriverName,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, ignoring non-strings
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
