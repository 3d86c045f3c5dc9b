package parse

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/saccade/internal/lang"
)

// Tree is an immutable parse result for one document version.
type Tree struct {
	raw     *sitter.Tree
	src     []byte
	lang    *lang.Language
	version int
}

func newTree(raw *sitter.Tree, src []byte, l *lang.Language, version int) *Tree {
	return &Tree{raw: raw, src: src, lang: l, version: version}
}

// Version returns the document version the tree was parsed from.
func (t *Tree) Version() int { return t.version }

// Source returns the parsed text. Callers must not modify it.
func (t *Tree) Source() []byte { return t.src }

// Language returns the grammar used for the tree.
func (t *Tree) Language() *lang.Language { return t.lang }

// Root returns the document node.
func (t *Tree) Root() Node {
	return wrap(t.raw.RootNode())
}

// TopLevel returns the named children of the root in document order.
func (t *Tree) TopLevel() []Node {
	return t.Root().Children()
}

// Side selects how Resolve treats a node boundary that falls exactly on
// the offset.
type Side int

const (
	// Before enters nodes that end at the offset.
	Before Side = -1
	// Inside enters only nodes that strictly surround the offset.
	Inside Side = 0
	// After enters nodes that start at the offset.
	After Side = 1
)

func (s Side) enters(n Node, off int) bool {
	switch {
	case s < 0:
		return n.Start < off && off <= n.End
	case s > 0:
		return n.Start <= off && off < n.End
	default:
		return n.Start < off && off < n.End
	}
}

// Resolve returns the innermost named node at off, descending from the
// root through children that side allows entering. The root is returned
// when no child qualifies.
func (t *Tree) Resolve(off int, side Side) Node {
	cur := t.Root()
	for {
		next, ok := Node{}, false
		for _, c := range cur.Children() {
			if c.Start > off {
				break
			}
			if side.enters(c, off) {
				next, ok = c, true
				break
			}
		}
		if !ok {
			return cur
		}
		cur = next
	}
}

// SmallestContaining returns the innermost named node whose span covers
// [from, to]. The root is returned when nothing smaller does.
func (t *Tree) SmallestContaining(from, to int) Node {
	cur := t.Root()
	for {
		next, ok := Node{}, false
		for _, c := range cur.Children() {
			if c.Start <= from && to <= c.End && c.Len() > 0 {
				next, ok = c, true
				break
			}
		}
		if !ok {
			return cur
		}
		cur = next
	}
}

// Node is a value snapshot of a tree-sitter node.
type Node struct {
	Type  string
	Start int
	End   int
	raw   *sitter.Node
}

func wrap(raw *sitter.Node) Node {
	if raw == nil || raw.IsNull() {
		return Node{}
	}
	return Node{
		Type:  raw.Type(),
		Start: int(raw.StartByte()),
		End:   int(raw.EndByte()),
		raw:   raw,
	}
}

// Valid reports whether n refers to a node.
func (n Node) Valid() bool { return n.raw != nil }

// Len returns the byte length of the node.
func (n Node) Len() int { return n.End - n.Start }

// Text returns the node's source text.
func (n Node) Text(src []byte) string {
	if !n.Valid() {
		return ""
	}
	return lang.NodeText(n.raw, src)
}

// Parent returns the enclosing node, if any.
func (n Node) Parent() (Node, bool) {
	if !n.Valid() {
		return Node{}, false
	}
	p := wrap(n.raw.Parent())
	return p, p.Valid()
}

// Children returns the named children in document order.
func (n Node) Children() []Node {
	if !n.Valid() {
		return nil
	}
	count := int(n.raw.NamedChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if c := wrap(n.raw.NamedChild(i)); c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first named child.
func (n Node) FirstChild() (Node, bool) {
	if !n.Valid() || n.raw.NamedChildCount() == 0 {
		return Node{}, false
	}
	c := wrap(n.raw.NamedChild(0))
	return c, c.Valid()
}
