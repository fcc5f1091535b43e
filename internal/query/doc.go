// Package query answers semantic searches against the vector index: score
// every live vector, map stable ids back to functions through the metadata
// store, apply path and extension filters, and keep the best K. Markdown
// renders hits with source context for LLM consumption.
package query
