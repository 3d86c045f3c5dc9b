// Package session tracks open documents and answers cell and selection
// queries against them.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phobologic/saccade/internal/cell"
	"github.com/phobologic/saccade/internal/config"
	"github.com/phobologic/saccade/internal/document"
	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/logging"
	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/parse"
	"github.com/phobologic/saccade/internal/selection"
)

// ErrUnknownDocument is returned for documents that were never opened.
var ErrUnknownDocument = errors.New("unknown document")

// Engine serves every document of one host session. All methods are safe
// for concurrent use; operations run one at a time.
type Engine struct {
	mu      sync.Mutex
	reg     *Registry
	cfg     *config.Config
	parsers map[*lang.Language]*parse.Parser

	flashID atomic.Uint64

	// flashEnd, when set, is called after a flash expires.
	flashEnd func(uri string)
}

// New returns an engine using cfg; nil means defaults.
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		reg:     NewRegistry(),
		cfg:     cfg.Clone(),
		parsers: make(map[*lang.Language]*parse.Parser),
	}
}

// Config returns a copy of the active settings.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// SetConfig replaces the settings. Cached marker scans are dropped since
// the marker set may have changed.
func (e *Engine) SetConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg.Clone()
	for _, st := range e.reg.states {
		st.markers = nil
	}
}

// SetFlashHook installs fn to be called, outside the engine lock, each time
// a flash on a still-open document expires.
func (e *Engine) SetFlashHook(fn func(uri string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flashEnd = fn
}

// Registry exposes the document registry. Callers must not use it
// concurrently with the engine.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// Open starts tracking a document, replacing any earlier state for uri.
func (e *Engine) Open(ctx context.Context, uri, languageID string, version int, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reg.Discard(uri)
	st := e.reg.StateFor(uri)
	st.doc = document.New(uri, languageID, version, text)
	st.lang = lang.Detect(uri, languageID, []byte(text))

	name := ""
	if st.lang != nil {
		name = st.lang.Name
	}
	logging.FromContext(ctx).Debug("document opened",
		logging.FieldURI, uri,
		logging.FieldVersion, version,
		logging.FieldLang, name)
}

// Change applies host edits. Text changes clear the selection history and
// the marker cache; the tree is reparsed on next use.
func (e *Engine) Change(ctx context.Context, uri string, version int, changes []model.Change) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.lookup(uri)
	if err != nil {
		return err
	}
	next, edits, err := st.doc.Apply(version, changes)
	if err != nil {
		return fmt.Errorf("applying changes to %s: %w", uri, err)
	}

	tree := st.cache.Tree()
	switch {
	case edits == nil || tree == nil:
		st.pending = nil
	case tree.Version() == st.doc.Version():
		st.pending = &parse.Update{Base: tree.Version(), Edits: edits}
	case st.pending != nil && st.pending.Base == tree.Version():
		st.pending.Edits = append(st.pending.Edits, edits...)
	default:
		st.pending = nil
	}

	st.doc = next
	st.markers = nil
	st.resetSelection()

	logging.FromContext(ctx).Debug("document changed",
		logging.FieldURI, uri,
		logging.FieldVersion, version,
		logging.FieldEdits, len(edits))
	return nil
}

// Close forgets uri.
func (e *Engine) Close(ctx context.Context, uri string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg.Discard(uri)
	logging.FromContext(ctx).Debug("document closed", logging.FieldURI, uri)
}

// CellAt returns the cell at pos.
func (e *Engine) CellAt(ctx context.Context, uri string, pos model.Position, mode model.Mode) (model.Cell, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, _, err := e.resolver(ctx, uri)
	if err != nil {
		return model.Cell{}, false, err
	}
	c, ok := r.At(pos, mode)
	return c, ok, nil
}

// Cells enumerates the cells of uri. A non-negative upTo stops at cells
// starting after that line.
func (e *Engine) Cells(ctx context.Context, uri string, mode model.Mode, upTo int) ([]model.Cell, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, _, err := e.resolver(ctx, uri)
	if err != nil {
		return nil, err
	}
	cells := r.Cells(mode, upTo)
	logging.FromContext(ctx).Debug("cells enumerated",
		logging.FieldURI, uri,
		logging.FieldMode, string(r.Effective(mode)),
		logging.FieldCells, len(cells))
	return cells, nil
}

// NextCell returns the cell after the one at pos.
func (e *Engine) NextCell(ctx context.Context, uri string, pos model.Position, mode model.Mode) (model.Cell, bool, error) {
	return e.navigate(ctx, uri, pos, mode, (*cell.Resolver).Next)
}

// PreviousCell returns the cell before the one at pos.
func (e *Engine) PreviousCell(ctx context.Context, uri string, pos model.Position, mode model.Mode) (model.Cell, bool, error) {
	return e.navigate(ctx, uri, pos, mode, (*cell.Resolver).Previous)
}

func (e *Engine) navigate(ctx context.Context, uri string, pos model.Position, mode model.Mode,
	step func(*cell.Resolver, model.Cell, model.Mode) (model.Cell, bool),
) (model.Cell, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, _, err := e.resolver(ctx, uri)
	if err != nil {
		return model.Cell{}, false, err
	}
	cur, ok := r.At(pos, mode)
	if !ok {
		// Between cells: treat the cursor line as an empty cell.
		cur = model.Cell{StartLine: pos.Line, EndLine: pos.Line}
	}
	c, ok := step(r, cur, mode)
	return c, ok, nil
}

// Expand grows sel. A sel other than the last one the engine produced
// means the user moved the selection, so the history starts over.
func (e *Engine) Expand(ctx context.Context, uri string, sel model.Selection) (model.Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, st, err := e.resolver(ctx, uri)
	if err != nil {
		return sel, err
	}
	e.syncSelection(st, sel)
	next, _ := selection.Expand(r, &st.history, sel)
	st.last = &next
	return next, nil
}

// Shrink undoes the last expand, or narrows sel along the tree.
func (e *Engine) Shrink(ctx context.Context, uri string, sel model.Selection) (model.Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, st, err := e.resolver(ctx, uri)
	if err != nil {
		return sel, err
	}
	e.syncSelection(st, sel)
	next, _ := selection.Shrink(r, &st.history, sel)
	st.last = &next
	return next, nil
}

// SelectionRanges returns, for a caret at pos, the increasing chain of
// ranges successive expands would visit. It leaves the history alone.
func (e *Engine) SelectionRanges(ctx context.Context, uri string, pos model.Position) ([]model.Range, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, _, err := e.resolver(ctx, uri)
	if err != nil {
		return nil, err
	}
	var (
		out     []model.Range
		scratch selection.History
	)
	sel := model.Caret(pos)
	for {
		next, ok := selection.Expand(r, &scratch, sel)
		if !ok {
			return out, nil
		}
		out = append(out, next.Range())
		sel = next
	}
}

// SelectionChanged records a selection made by the user. Echoes of the
// engine's own last result are ignored.
func (e *Engine) SelectionChanged(uri string, sel model.Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.reg.Lookup(uri)
	if !ok {
		return
	}
	e.syncSelection(st, sel)
}

func (e *Engine) syncSelection(st *DocumentState, sel model.Selection) {
	if st.last == nil || *st.last != sel {
		st.resetSelection()
	}
}

// Evaluation is the code to run for a cell.
type Evaluation struct {
	Cell   model.Cell  `json:"cell"`
	Range  model.Range `json:"range"`
	Source string      `json:"source"`
}

// Evaluate resolves what to run for sel: the selected text when sel is
// non-empty, otherwise the cell at the cursor. It reports false when no
// cell is found. A blank Source means there is nothing to run; otherwise
// the cell is flashed.
func (e *Engine) Evaluate(ctx context.Context, uri string, sel model.Selection, mode model.Mode) (Evaluation, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, st, err := e.resolver(ctx, uri)
	if err != nil {
		return Evaluation{}, false, err
	}
	c, ok := r.FromSelection(sel)
	if !ok {
		c, ok = r.At(sel.Active, mode)
	}
	if !ok {
		return Evaluation{}, false, nil
	}
	ev := Evaluation{Cell: c, Range: cell.Span(st.doc, c), Source: r.Source(c)}
	if strings.TrimSpace(ev.Source) != "" {
		e.flash(uri, st, ev.Range)
	}
	return ev, true, nil
}

// RunUpTo returns the cells up to and including the one at pos, and the
// first line after it.
func (e *Engine) RunUpTo(ctx context.Context, uri string, pos model.Position, mode model.Mode) ([]model.Cell, int, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, _, err := e.resolver(ctx, uri)
	if err != nil {
		return nil, 0, false, err
	}
	cur, ok := r.At(pos, mode)
	if !ok {
		return nil, 0, false, nil
	}
	return r.Cells(mode, cur.EndLine), cur.EndLine + 1, true, nil
}

// Decorations returns the current-cell borders for pos plus any active
// evaluation highlights.
func (e *Engine) Decorations(ctx context.Context, uri string, pos model.Position) ([]cell.Decoration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, st, err := e.resolver(ctx, uri)
	if err != nil {
		return nil, err
	}
	var out []cell.Decoration
	if e.cfg.CurrentCell.Show {
		if c, ok := r.At(pos, model.Auto); ok {
			out = append(out, cell.Borders(st.doc, c)...)
		}
	}
	for _, rng := range st.Flashes() {
		out = append(out, cell.Decoration{Kind: cell.Evaluating, Range: rng})
	}
	return out, nil
}

// flash highlights rng until the configured duration passes. The timer
// looks the document up again when it fires, since it may have been
// closed or reopened in the meantime.
func (e *Engine) flash(uri string, st *DocumentState, rng model.Range) {
	id := e.flashID.Add(1)
	st.flashes[id] = rng
	time.AfterFunc(e.cfg.FlashDuration.Std(), func() {
		e.mu.Lock()
		cur, ok := e.reg.Lookup(uri)
		if ok {
			delete(cur.flashes, id)
		}
		hook := e.flashEnd
		e.mu.Unlock()
		if ok && hook != nil {
			hook(uri)
		}
	})
}

// Document returns the current snapshot of uri.
func (e *Engine) Document(uri string) (*document.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.lookup(uri)
	if err != nil {
		return nil, err
	}
	return st.doc, nil
}

func (e *Engine) lookup(uri string) (*DocumentState, error) {
	st, ok := e.reg.Lookup(uri)
	if !ok || st.doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	return st, nil
}

// resolver brings the tree for uri up to date and wraps it for queries.
func (e *Engine) resolver(ctx context.Context, uri string) (*cell.Resolver, *DocumentState, error) {
	st, err := e.lookup(uri)
	if err != nil {
		return nil, nil, err
	}

	var tree *parse.Tree
	if st.lang != nil {
		p, ok := e.parsers[st.lang]
		if !ok {
			p = parse.NewParser(st.lang)
			e.parsers[st.lang] = p
		}
		tree, err = st.cache.Get(ctx, p, st.doc, st.pending)
		if err != nil {
			return nil, nil, err
		}
		st.pending = nil
	}

	opts := e.cfg.CellOptions()
	if st.markers == nil {
		has := opts.HasMarkers(st.doc)
		st.markers = &has
	}
	return &cell.Resolver{Doc: st.doc, Tree: tree, Opts: opts, HasMarkers: *st.markers}, st, nil
}
