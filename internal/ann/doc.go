// Package ann provides the vector-index primitive behind semantic search: an
// exact inner-product index addressed by caller-assigned stable int64 ids.
//
// The Index interface is the required surface. Removal and id enumeration are
// optional capabilities expressed as separate interfaces (Remover,
// Enumerator) so backends without them still plug in; callers type-assert and
// degrade gracefully. Flat implements all of them plus opaque blob
// persistence (gzip-compressed gob with a magic/version header).
package ann
