// Package treesit parses the parenthesized syntax-tree dumps produced by an
// external source-code parser (tree-sitter CLI style) into typed nodes with
// line/column spans.
//
// The grammar is:
//
//	node  := "(" TYPE [ "[" L ":" C "-" L ":" C "]" ] node* ")"
//
// where TYPE is any run of characters excluding whitespace, parentheses,
// brackets and colon. Parsing is a single left-to-right recursive descent
// bounded by MaxDepth.
//
// The package deliberately knows nothing about source text; mapping spans to
// function text lives in the extractor package.
package treesit
