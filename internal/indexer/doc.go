// Package indexer keeps the vector index synchronized with source files
// incrementally. A pass runs in fixed order: probe the embedding provider,
// reconcile orphaned vectors, diff file fingerprints, re-embed new and
// changed files one at a time (old vectors removed before new ones are
// added), then persist the index blob once.
//
// Every function ever indexed gets a fresh vector id from a monotonic
// counter; ids are never reused, so a stale id can never silently alias a
// newer function. A file's fingerprint is recorded only after its extraction
// and embedding succeed, which makes an interrupted pass self-healing: the
// file diffs as changed next time and the orphan pass sweeps any vectors the
// crash stranded.
//
// Usage:
//
//	ix, err := indexer.Open(indexer.Config{StorageDir: dir, Embedder: emb})
//	if err != nil { ... }
//	defer ix.Close()
//
//	job, err := indexer.LoadJob("job.json")
//	stats, err := ix.Run(ctx, job, indexer.Options{})
package indexer
