package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/semcode-mcp/internal/embedder"
	"github.com/dshills/semcode-mcp/internal/indexer"
)

const (
	// ServerName is the MCP server name
	ServerName = "semcode-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultStorageDir is the default location for the index storage
	DefaultStorageDir = "~/.semcode/index"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	ix  *indexer.Indexer
	emb embedder.Embedder
}

// NewServer creates a new MCP server instance
func NewServer(storageDir string) (*Server, error) {
	// Expand home directory if needed
	if storageDir == "" || storageDir == DefaultStorageDir {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		storageDir = filepath.Join(home, ".semcode", "index")
	}

	// One embedder instance; its cache serves both indexing and queries.
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ix, err := indexer.Open(indexer.Config{
		StorageDir: storageDir,
		Embedder:   emb,
	})
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to open index storage: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp: mcpServer,
		ix:  ix,
		emb: emb,
	}

	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases the index storage and the embedding provider.
func (s *Server) Close() error {
	err := s.ix.Close()
	if cerr := s.emb.Close(); err == nil {
		err = cerr
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodeTool(), s.handleIndexCode)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(clusterCodeTool(), s.handleClusterCode)
	s.mcp.AddTool(pruneIndexTool(), s.handlePruneIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
