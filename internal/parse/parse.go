// Package parse owns tree-sitter trees for open documents: full and
// incremental parsing, a per-document cache keyed by version, and read-only
// node queries over immutable tree snapshots.
package parse

import (
	"context"
	"fmt"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/saccade/internal/document"
	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/logging"
)

// Parser wraps a tree-sitter parser for one language.
// It is not safe for concurrent use.
type Parser struct {
	lang   *lang.Language
	parser *sitter.Parser
}

// NewParser creates a parser for l.
func NewParser(l *lang.Language) *Parser {
	return &Parser{lang: l, parser: l.NewParser()}
}

// Language returns the grammar the parser was built for.
func (p *Parser) Language() *lang.Language {
	return p.lang
}

// Parse performs a full parse of doc.
func (p *Parser) Parse(ctx context.Context, doc *document.Document) (*Tree, error) {
	src := []byte(doc.Text())
	raw, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", doc.URI(), err)
	}
	return newTree(raw, src, p.lang, doc.Version()), nil
}

// Reparse parses doc reusing the unchanged subtrees of old. edits must
// transform old's source into doc's text. old is left untouched: the edits
// are applied to a copy so readers of the previous snapshot are unaffected.
func (p *Parser) Reparse(ctx context.Context, old *Tree, doc *document.Document, edits []document.Edit) (*Tree, error) {
	if old == nil || old.lang != p.lang {
		return p.Parse(ctx, doc)
	}
	edited := old.raw.Copy()
	defer edited.Close()
	for _, e := range edits {
		edited.Edit(editInput(e))
	}
	src := []byte(doc.Text())
	raw, err := p.parser.ParseCtx(ctx, edited, src)
	if err != nil {
		return nil, fmt.Errorf("reparsing %s: %w", doc.URI(), err)
	}
	return newTree(raw, src, p.lang, doc.Version()), nil
}

func editInput(e document.Edit) sitter.EditInput {
	return sitter.EditInput{
		StartIndex:  uint32(e.StartByte),
		OldEndIndex: uint32(e.OldEndByte),
		NewEndIndex: uint32(e.NewEndByte),
		StartPoint:  point(e.StartPoint),
		OldEndPoint: point(e.OldEndPoint),
		NewEndPoint: point(e.NewEndPoint),
	}
}

func point(p document.Point) sitter.Point {
	return sitter.Point{Row: uint32(p.Row), Column: uint32(p.Column)}
}

// Update carries the edits that turned version Base into the document
// version being requested.
type Update struct {
	Base  int
	Edits []document.Edit
}

// Cache holds the newest tree for a single document.
type Cache struct {
	tree *Tree
}

// Tree returns the cached tree, or nil.
func (c *Cache) Tree() *Tree {
	return c.tree
}

// Reset drops the cached tree.
func (c *Cache) Reset() {
	c.tree = nil
}

// Get returns a tree for doc. A cached tree with the same version is
// returned as is. When upd continues from the cached version the tree is
// reparsed incrementally; anything else triggers a full parse.
func (c *Cache) Get(ctx context.Context, p *Parser, doc *document.Document, upd *Update) (*Tree, error) {
	if c.tree != nil && c.tree.version == doc.Version() && c.tree.lang == p.lang {
		return c.tree, nil
	}

	logger := logging.FromContext(ctx)
	start := time.Now()

	var (
		t   *Tree
		err error
	)
	if c.tree != nil && upd != nil && len(upd.Edits) > 0 && upd.Base == c.tree.version {
		t, err = p.Reparse(ctx, c.tree, doc, upd.Edits)
		logger.Debug("incremental parse",
			logging.FieldURI, doc.URI(),
			logging.FieldVersion, doc.Version(),
			logging.FieldEdits, len(upd.Edits),
			logging.FieldElapsed, time.Since(start))
	} else {
		t, err = p.Parse(ctx, doc)
		logger.Debug("full parse",
			logging.FieldURI, doc.URI(),
			logging.FieldVersion, doc.Version(),
			logging.FieldElapsed, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	c.tree = t
	return t, nil
}
