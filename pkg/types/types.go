package types

// Function is a function extracted from a source file, ready for embedding.
// The text is consumed once to produce a vector; only the file and start line
// are persisted, so display text is re-read from the source on demand.
type Function struct {
	File      string
	StartLine uint32
	Text      string
}

// FunctionRef points at an indexed function through its stable vector id.
type FunctionRef struct {
	File      string
	StartLine uint32
	VectorID  int64
}

// Fingerprint captures the content identity of a file at index time.
// Hash is the SHA-256 of the full content; MTime is the modification time
// in float seconds since the epoch.
type Fingerprint struct {
	Hash  []byte
	MTime float64
}

// SearchResult is one ranked query match.
type SearchResult struct {
	Score    float64
	Function FunctionRef
}

// Cluster groups near-duplicate functions.
//
// AvgDistance is the mean of the dendrogram merge distances recorded when a
// non-first member was joined directly to the cluster's first member. It is
// deliberately not the mean over all member pairs; downstream distance
// thresholds depend on this narrower definition.
type Cluster struct {
	AvgDistance float64
	Members     []FunctionRef
}
