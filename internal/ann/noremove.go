package ann

import "github.com/dshills/semcode-mcp/pkg/types"

// NoRemove wraps an index and refuses removal, standing in for backends that
// cannot delete vectors. Callers that hit the refusal degrade to
// metadata-only removal.
type NoRemove struct {
	Index
}

// WithoutRemove wraps index so Remove always fails with the unsupported
// sentinel.
func WithoutRemove(index Index) *NoRemove {
	return &NoRemove{Index: index}
}

func (n *NoRemove) Remove(ids []int64) error {
	return types.ErrRemoveUnsupported
}

// IDs passes through when the wrapped index can enumerate.
func (n *NoRemove) IDs() []int64 {
	if enum, ok := n.Index.(Enumerator); ok {
		return enum.IDs()
	}
	return nil
}
