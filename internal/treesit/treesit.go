package treesit

import (
	"fmt"
	"strings"

	"github.com/dshills/semcode-mcp/pkg/types"
)

// MaxDepth bounds the parser's recursion. Real syntax trees for source files
// stay far below this; the guard keeps a pathological input from overflowing
// the stack.
const MaxDepth = 10000

// Node is one node of a parsed syntax-tree dump. Line and column positions
// are 0-indexed; a node without an explicit position range spans (0,0)-(0,0).
type Node struct {
	Type      string
	StartLine uint32
	StartCol  uint32
	EndLine   uint32
	EndCol    uint32
	Children  []*Node
}

// String renders the node in the same parenthesized form the parser accepts.
func (n *Node) String() string {
	var b strings.Builder
	n.render(&b)
	return b.String()
}

func (n *Node) render(b *strings.Builder) {
	b.WriteByte('(')
	b.WriteString(n.Type)
	fmt.Fprintf(b, " [%d:%d-%d:%d]", n.StartLine, n.StartCol, n.EndLine, n.EndCol)
	for _, c := range n.Children {
		b.WriteByte(' ')
		c.render(b)
	}
	b.WriteByte(')')
}

// Parse parses a syntax-tree dump of the form
//
//	(node_type [start_line:start_col-end_line:end_col] (child) (child) ...)
//
// into a Node tree. The position range is optional. Parse fails with
// types.ErrMalformedTree when the input does not start with '(' or a node
// cannot be fully closed.
func Parse(text string) (*Node, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "(") {
		return nil, fmt.Errorf("%w: input must start with '('", types.ErrMalformedTree)
	}

	p := &parser{input: text}
	node, err := p.parseNode(0)
	if err != nil {
		return nil, err
	}
	return node, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseNode(depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: tree deeper than %d", types.ErrMalformedTree, MaxDepth)
	}

	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return nil, fmt.Errorf("%w: expected '(' at offset %d", types.ErrMalformedTree, p.pos)
	}
	p.pos++
	p.skipSpace()

	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("%w: unexpected end of input", types.ErrMalformedTree)
	}

	node := &Node{Type: p.scanType()}
	p.skipSpace()

	if p.pos < len(p.input) && p.input[p.pos] == '[' {
		if err := p.scanRange(node); err != nil {
			return nil, err
		}
	}
	p.skipSpace()

	for p.pos < len(p.input) && p.input[p.pos] == '(' {
		child, err := p.parseNode(depth + 1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
		p.skipSpace()
	}

	if p.pos >= len(p.input) || p.input[p.pos] != ')' {
		return nil, fmt.Errorf("%w: expected ')' at offset %d", types.ErrMalformedTree, p.pos)
	}
	p.pos++

	return node, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && isSpace(p.input[p.pos]) {
		p.pos++
	}
}

// scanType reads a node type: any run of characters excluding whitespace,
// parens, brackets and colon.
func (p *parser) scanType() string {
	start := p.pos
	for p.pos < len(p.input) && !isTypeTerminator(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// scanRange reads an optional "[l:c-l:c]" position range. A bracket pair
// whose interior doesn't match the expected shape is skipped, leaving the
// node's span at its zero value.
func (p *parser) scanRange(node *Node) error {
	p.pos++ // consume '['

	save := p.pos
	sl, ok1 := p.scanUint()
	ok2 := ok1 && p.consume(':')
	sc, ok3 := p.scanUint()
	ok4 := ok2 && ok3 && p.consume('-')
	el, ok5 := p.scanUint()
	ok6 := ok4 && ok5 && p.consume(':')
	ec, ok7 := p.scanUint()

	if ok6 && ok7 {
		node.StartLine, node.StartCol = sl, sc
		node.EndLine, node.EndCol = el, ec
	} else {
		p.pos = save
	}

	// Advance to the closing bracket regardless of whether the interior
	// parsed, matching the tolerant behavior expected for decorated dumps.
	for p.pos < len(p.input) && p.input[p.pos] != ']' {
		p.pos++
	}
	if p.pos < len(p.input) {
		p.pos++
	}
	return nil
}

func (p *parser) scanUint() (uint32, bool) {
	start := p.pos
	var v uint32
	for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
		v = v*10 + uint32(p.input[p.pos]-'0')
		p.pos++
	}
	return v, p.pos > start
}

func (p *parser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isTypeTerminator(c byte) bool {
	return isSpace(c) || c == '(' || c == ')' || c == '[' || c == ']' || c == ':'
}

// ExtractByType returns every node in the tree whose type exactly matches one
// of the given type strings, in pre-order (first seen, first returned).
func ExtractByType(root *Node, nodeTypes []string) []*Node {
	wanted := make(map[string]struct{}, len(nodeTypes))
	for _, t := range nodeTypes {
		wanted[t] = struct{}{}
	}

	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if _, ok := wanted[n.Type]; ok {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}
