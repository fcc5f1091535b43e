package indexer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dshills/semcode-mcp/internal/embedder"
)

// JobFile pairs a source file with the syntax-tree dump describing it.
type JobFile struct {
	Path     string `json:"path"`
	TreeFile string `json:"tree_file"`
}

// Job describes one indexing pass: the files to consider, the embedding
// model the pass expects, and the embedding batch size.
type Job struct {
	Files     []JobFile `json:"files"`
	Model     string    `json:"model"`
	BatchSize int       `json:"batch_size"`
}

// LoadJob reads a job descriptor from a JSON file.
func LoadJob(path string) (*Job, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var job Job
	if err := json.Unmarshal(content, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	return &job, nil
}

// batchSize returns the effective embedding batch size.
func (j *Job) batchSize() int {
	if j.BatchSize > 0 && j.BatchSize <= embedder.MaxBatchSize {
		return j.BatchSize
	}
	return embedder.DefaultBatchSize
}
