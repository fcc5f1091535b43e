// Package mcp implements the Model Context Protocol (MCP) server for semcode.
//
// The MCP server exposes five tools to AI coding assistants:
//   - index_code: Incrementally index source files for semantic search
//   - search_code: Search indexed functions with natural language queries
//   - cluster_code: Group near-duplicate functions by embedding distance
//   - prune_index: Remove orphaned vectors left by interrupted runs
//   - get_status: Check index statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output, so all
// logging goes to stderr.
//
// # Tool: index_code
//
// Index source files described by a job:
//
//	Request:
//	{
//	  "name": "index_code",
//	  "arguments": {
//	    "job_file": "/path/to/job.json",
//	    "force": false
//	  }
//	}
//
//	Response:
//	{
//	  "files_indexed": 42,
//	  "files_unchanged": 205,
//	  "functions_indexed": 318,
//	  "orphans_pruned": 0,
//	  "duration_ms": 5120
//	}
//
// Instead of job_file, the files argument can carry the file list inline:
//
//	"files": [{"path": "/src/a.py", "tree_file": "/tmp/a.tree"}]
//
// # Tool: search_code
//
// Search indexed functions:
//
//	Request:
//	{
//	  "name": "search_code",
//	  "arguments": {
//	    "query": "parse configuration file",
//	    "n_results": 5,
//	    "extensions": ["py"],
//	    "format": "markdown"
//	  }
//	}
//
// The markdown format returns one section per hit with a code snippet read
// from the source file; the json format returns bare locations and scores.
//
// # Tool: cluster_code
//
// Find groups of near-duplicate functions:
//
//	Request:
//	{
//	  "name": "cluster_code",
//	  "arguments": {
//	    "max_distance": 0.2,
//	    "min_lines": 5,
//	    "ignore_identical": true
//	  }
//	}
//
// # Error Handling
//
// The server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "Invalid params",
//	    "data": {"param": "query", "reason": "missing or empty"}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (storage, embedding provider, filesystem)
//   - -32001: Empty query
//   - -32002: Indexing pass already running
//
// # MCP Client Configuration
//
// Configure in an MCP client's settings:
//
//	{
//	  "mcpServers": {
//	    "semcode": {
//	      "command": "/usr/local/bin/semcode",
//	      "env": {
//	        "SEMCODE_DB_PATH": "~/.semcode/index",
//	        "OPENAI_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
package mcp
