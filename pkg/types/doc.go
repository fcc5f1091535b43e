// Package types defines the shared records and error taxonomy for the
// semantic code index.
//
// The central identity in the system is the vector id: a permanently unique
// int64 assigned once when a function is embedded and never reused, even
// after removal. FunctionRef ties a vector id back to a file and start line;
// the function text itself is never stored, it is re-read from the source
// file when needed.
package types
