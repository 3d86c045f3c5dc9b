package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/saccade/internal/cell"
	"github.com/phobologic/saccade/internal/config"
	"github.com/phobologic/saccade/internal/model"
)

const uri = "file:///work/analysis.py"

const source = "import os\n\n\ndef f(x):\n    return x + 1\n\n\ny = f(2)\n"

func pos(line, char int) model.Position {
	return model.Position{Line: line, Character: char}
}

func open(t *testing.T, cfg *config.Config, text string) *Engine {
	t.Helper()
	e := New(cfg)
	e.Open(context.Background(), uri, "python", 1, text)
	return e
}

func insert(line, char int, text string) model.Change {
	p := pos(line, char)
	return model.Change{Range: &model.Range{Start: p, End: p}, Text: text}
}

func TestUnknownDocument(t *testing.T) {
	t.Parallel()
	e := New(nil)

	_, _, err := e.CellAt(context.Background(), "file:///missing.py", pos(0, 0), model.Auto)
	assert.ErrorIs(t, err, ErrUnknownDocument)
	assert.ErrorIs(t, e.Change(context.Background(), "file:///missing.py", 2, nil), ErrUnknownDocument)
	assert.Zero(t, e.Registry().Len(), "queries must not create state")
}

func TestCellAtAndCells(t *testing.T) {
	t.Parallel()
	e := open(t, nil, source)
	ctx := context.Background()

	c, ok, err := e.CellAt(ctx, uri, pos(4, 2), model.Auto)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "def f(x):\n    return x + 1", c.Text)

	cells, err := e.Cells(ctx, uri, model.Auto, -1)
	require.NoError(t, err)
	require.Len(t, cells, 3)
	assert.Equal(t, "y = f(2)", cells[2].Text)
}

func TestCloseDiscardsState(t *testing.T) {
	t.Parallel()
	e := open(t, nil, source)
	ctx := context.Background()

	_, err := e.Expand(ctx, uri, model.Caret(pos(4, 11)))
	require.NoError(t, err)
	st, ok := e.Registry().Lookup(uri)
	require.True(t, ok)
	assert.Equal(t, 1, st.HistoryLen())
	assert.NotNil(t, st.Tree())

	e.Close(ctx, uri)
	_, ok = e.Registry().Lookup(uri)
	assert.False(t, ok)
	assert.Zero(t, e.Registry().Len())

	e.Open(ctx, uri, "python", 1, "z = 0\n")
	st, ok = e.Registry().Lookup(uri)
	require.True(t, ok)
	assert.Zero(t, st.HistoryLen())
	assert.Nil(t, st.Tree())

	c, ok, err := e.CellAt(ctx, uri, pos(0, 0), model.Auto)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "z = 0", c.Text)
}

func TestIncrementalEditsMatchFreshParse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := open(t, nil, source)

	edits := [][]model.Change{
		{insert(0, 9, ", sys")},
		{insert(1, 0, "\n")},
		{insert(8, 0, "z = y * 2\n")},
		{{Range: &model.Range{Start: pos(2, 0), End: pos(3, 0)}, Text: ""}},
	}
	version := 1
	for i, changes := range edits {
		// Parse between edits so each change reuses the previous tree.
		_, err := e.Cells(ctx, uri, model.Auto, -1)
		require.NoError(t, err, "step %d", i)
		version++
		require.NoError(t, e.Change(ctx, uri, version, changes), "step %d", i)
	}

	doc, err := e.Document(uri)
	require.NoError(t, err)
	fresh := New(nil)
	fresh.Open(ctx, uri, "python", version, doc.Text())

	got, err := e.Cells(ctx, uri, model.Auto, -1)
	require.NoError(t, err)
	want, err := fresh.Cells(ctx, uri, model.Auto, -1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for line := 0; line < doc.LineCount(); line++ {
		a, okA, _ := e.CellAt(ctx, uri, pos(line, 0), model.Implicit)
		b, okB, _ := fresh.CellAt(ctx, uri, pos(line, 0), model.Implicit)
		assert.Equal(t, okB, okA, "line %d", line)
		assert.Equal(t, b, a, "line %d", line)
	}
}

func TestBatchedEditsWithoutParse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := open(t, nil, "x = 1\n")

	_, _, err := e.CellAt(ctx, uri, pos(0, 0), model.Auto)
	require.NoError(t, err)
	require.NoError(t, e.Change(ctx, uri, 2, []model.Change{insert(1, 0, "y = 2\n")}))
	require.NoError(t, e.Change(ctx, uri, 3, []model.Change{insert(2, 0, "\n\nz = 3\n")}))

	cells, err := e.Cells(ctx, uri, model.Implicit, -1)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "x = 1\ny = 2", cells[0].Text)
	assert.Equal(t, "z = 3", cells[1].Text)
}

func TestExpandShrinkThroughEngine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := open(t, nil, source)

	origin := model.Caret(pos(4, 11))
	sel := origin
	for i := 0; i < 4; i++ {
		next, err := e.Expand(ctx, uri, sel)
		require.NoError(t, err)
		assert.False(t, sel.Range().LargerThan(next.Range()))
		sel = next
	}
	for i := 0; i < 4; i++ {
		prev, err := e.Shrink(ctx, uri, sel)
		require.NoError(t, err)
		sel = prev
	}
	assert.Equal(t, origin, sel)
}

func TestHistoryClearedByEditsAndUserSelection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := open(t, nil, source)
	st, _ := e.Registry().Lookup(uri)

	sel, err := e.Expand(ctx, uri, model.Caret(pos(4, 11)))
	require.NoError(t, err)
	e.SelectionChanged(uri, sel)
	assert.Equal(t, 1, st.HistoryLen(), "echo of the engine's own selection")

	e.SelectionChanged(uri, model.Caret(pos(0, 0)))
	assert.Zero(t, st.HistoryLen())

	_, err = e.Expand(ctx, uri, model.Caret(pos(4, 11)))
	require.NoError(t, err)
	_, err = e.Expand(ctx, uri, model.Caret(pos(7, 0)))
	require.NoError(t, err)
	assert.Equal(t, 1, st.HistoryLen(), "expand from a foreign selection starts over")

	require.NoError(t, e.Change(ctx, uri, 2, []model.Change{insert(0, 0, "# top\n")}))
	assert.Zero(t, st.HistoryLen())

	// With the history gone, shrinking a whole cell falls back to the tree.
	got, err := e.Shrink(ctx, uri, model.Selection{Anchor: pos(4, 0), Active: pos(5, 16)})
	require.NoError(t, err)
	assert.Equal(t, model.Selection{Anchor: pos(4, 4), Active: pos(4, 5)}, got)
}

func TestUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := New(nil)
	e.Open(ctx, "file:///notes.txt", "plaintext", 1, "hello\n# %%\nworld\n")

	_, ok, err := e.CellAt(ctx, "file:///notes.txt", pos(0, 0), model.Implicit)
	require.NoError(t, err)
	assert.False(t, ok)

	c, ok, err := e.CellAt(ctx, "file:///notes.txt", pos(2, 0), model.Explicit)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "world\n", c.Text)
}

func TestSetConfigSwitchesAutoMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := open(t, nil, "# %%\na = 1\n\n\nb = 2\n")

	c, _, err := e.CellAt(ctx, uri, pos(4, 0), model.Auto)
	require.NoError(t, err)
	assert.Equal(t, "b = 2", c.Text)

	cfg := e.Config()
	cfg.UseExplicitCellsIfPresent = true
	e.SetConfig(cfg)

	c, _, err = e.CellAt(ctx, uri, pos(4, 0), model.Auto)
	require.NoError(t, err)
	assert.Equal(t, 1, c.StartLine)
	assert.True(t, c.Explicit)
}

func TestNavigationAndRunUpTo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := open(t, nil, source)

	next, ok, err := e.NextCell(ctx, uri, pos(0, 0), model.Auto)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, next.StartLine)

	prev, ok, err := e.PreviousCell(ctx, uri, pos(7, 0), model.Auto)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, prev.StartLine)

	cells, line, ok, err := e.RunUpTo(ctx, uri, pos(4, 0), model.Auto)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cells, 2)
	assert.Equal(t, 5, line)
}

func TestEvaluateFlashes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := config.Default()
	cfg.FlashDuration = config.Duration(30 * time.Millisecond)
	e := open(t, cfg, source)

	var ended atomic.Int32
	e.SetFlashHook(func(string) { ended.Add(1) })

	ev, ok, err := e.Evaluate(ctx, uri, model.Caret(pos(7, 0)), model.Auto)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "y = f(2)", ev.Source)

	decs, err := e.Decorations(ctx, uri, pos(7, 0))
	require.NoError(t, err)
	kinds := map[cell.DecorationKind]bool{}
	for _, d := range decs {
		kinds[d.Kind] = true
	}
	assert.True(t, kinds[cell.Evaluating])
	assert.True(t, kinds[cell.TopAbove])

	assert.Eventually(t, func() bool { return ended.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	decs, err = e.Decorations(ctx, uri, pos(7, 0))
	require.NoError(t, err)
	for _, d := range decs {
		assert.NotEqual(t, cell.Evaluating, d.Kind)
	}
}

func TestSetFlashHookWhileFlashing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := config.Default()
	cfg.FlashDuration = config.Duration(time.Millisecond)
	e := open(t, cfg, source)

	var (
		wg    sync.WaitGroup
		calls atomic.Int32
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, _, err := e.Evaluate(ctx, uri, model.Caret(pos(7, 0)), model.Auto)
			assert.NoError(t, err)
			time.Sleep(time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			e.SetFlashHook(func(string) { calls.Add(1) })
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvaluateSelectionAndBlank(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := open(t, nil, "# only a comment\n")
	cfg := e.Config()
	cfg.RenderComments = false
	e.SetConfig(cfg)

	ev, ok, err := e.Evaluate(ctx, uri, model.Caret(pos(0, 0)), model.Auto)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, ev.Source)
	st, _ := e.Registry().Lookup(uri)
	assert.Empty(t, st.Flashes(), "nothing to run, nothing to flash")

	e = open(t, nil, source)
	ev, ok, err = e.Evaluate(ctx, uri, model.Selection{Anchor: pos(7, 0), Active: pos(7, 5)}, model.Auto)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "y = f", ev.Cell.Text)
}

func TestSelectionRanges(t *testing.T) {
	t.Parallel()
	e := open(t, nil, source)

	ranges, err := e.SelectionRanges(context.Background(), uri, pos(4, 11))
	require.NoError(t, err)
	require.NotEmpty(t, ranges)
	for i := 1; i < len(ranges); i++ {
		assert.True(t, ranges[i].LargerThan(ranges[i-1]))
	}
	st, _ := e.Registry().Lookup(uri)
	assert.Zero(t, st.HistoryLen())
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := open(t, nil, source)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _, _ = e.CellAt(ctx, uri, pos(j%8, 0), model.Auto)
				_, _ = e.Expand(ctx, uri, model.Caret(pos(4, 11)))
			}
		}(i)
	}
	wg.Wait()

	_, err := e.Cells(ctx, uri, model.Auto, -1)
	assert.NoError(t, err)
}
