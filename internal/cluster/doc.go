// Package cluster finds groups of near-duplicate functions by running
// Ward-linkage agglomerative clustering over the reconstructed, normalized
// embedding vectors. A distance threshold decides where merging stops;
// singletons never surface. Filter trims the result for display by size,
// minimum function length, and exact-duplicate suppression.
package cluster
