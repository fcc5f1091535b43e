package indexer

import (
	"context"
	"errors"
	"log"

	"github.com/dshills/semcode-mcp/internal/ann"
	"github.com/dshills/semcode-mcp/internal/metastore"
	"github.com/dshills/semcode-mcp/pkg/types"
)

// Prune removes live vectors that no file record owns, restoring the
// one-owner-per-vector invariant after an interrupted pass. Returns how many
// vectors were removed.
//
// An index that cannot enumerate its ids cannot be reconciled; pruning is
// then a no-op.
func Prune(ctx context.Context, store *metastore.Store, index ann.Index) (int, error) {
	enum, ok := index.(ann.Enumerator)
	if !ok {
		log.Printf("index cannot enumerate ids, skipping orphan prune")
		return 0, nil
	}

	owned, err := store.OwnedIDs(ctx)
	if err != nil {
		return 0, err
	}

	var orphans []int64
	for _, id := range enum.IDs() {
		if _, ok := owned[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	remover, ok := index.(ann.Remover)
	if !ok {
		log.Printf("index cannot remove vectors, %d orphans left in place", len(orphans))
		return 0, nil
	}
	if err := remover.Remove(orphans); err != nil {
		if errors.Is(err, types.ErrRemoveUnsupported) {
			log.Printf("index does not support removal, %d orphans left in place", len(orphans))
			return 0, nil
		}
		return 0, err
	}

	log.Printf("pruned %d orphaned vectors", len(orphans))
	return len(orphans), nil
}
