package cell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/saccade/internal/document"
	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/parse"
)

func resolver(t *testing.T, src string, opts Options) *Resolver {
	t.Helper()
	doc := document.New("file:///test.py", "python", 1, src)
	tree, err := parse.NewParser(lang.Languages["python"]).Parse(context.Background(), doc)
	require.NoError(t, err)
	return NewResolver(doc, tree, opts)
}

func at(line int) model.Position {
	return model.Position{Line: line}
}

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want map[string]string
	}{
		{"tag and pairs", `# %% [markdown] tag="test" id="123"`, map[string]string{"type": "markdown", "tag": "test", "id": "123"}},
		{"last duplicate wins", `# %% a="1" a="2"`, map[string]string{"a": "2"}},
		{"unterminated quote", `# %% a="1" b="oops`, map[string]string{"a": "1"}},
		{"spaces around equals", `# + name = "x"`, map[string]string{"name": "x"}},
		{"empty", `# %%`, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseMetadata(tt.line))
		})
	}
}

func TestMarkers(t *testing.T) {
	t.Parallel()
	o := DefaultOptions()

	assert.True(t, o.IsStart("# %%"))
	assert.True(t, o.IsStart("  # + [markdown]"))
	assert.False(t, o.IsStart("#%%"))
	assert.True(t, o.IsEnd("# - "))
	assert.False(t, o.IsEnd("# - note"))

	doc := document.New("u", "python", 1, "x = 1\n# %%\ny = 2\n")
	assert.True(t, o.HasMarkers(doc))
	o.ScanLines = 1
	assert.False(t, o.HasMarkers(doc), "marker past the scan window")
}

func TestExplicitRoundTrip(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()

	doc := document.New("u", "python", 1, "# %%\nA\n# %%\nB")
	for _, line := range []int{0, 1} {
		c, ok := Explicit(doc, line, opts)
		require.True(t, ok)
		assert.Equal(t, "A", c.Text)
		assert.Equal(t, 1, c.StartLine)
		assert.Equal(t, 1, c.EndLine)
		assert.True(t, c.Explicit)
	}
	c, ok := Explicit(doc, 3, opts)
	require.True(t, ok)
	assert.Equal(t, "B", c.Text)

	doc = document.New("u", "python", 1, "# %%\nA\n# %%\nB\n")
	c, ok = Explicit(doc, 3, opts)
	require.True(t, ok)
	assert.Equal(t, "B\n", c.Text)
	assert.NotContains(t, c.Text, "# %%")
}

func TestExplicitEdges(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()

	doc := document.New("u", "python", 1, "# +\nx = 1\n# -\ny = 2\n# %% [markdown]\n# Hi\n")

	c, ok := Explicit(doc, 1, opts)
	require.True(t, ok)
	assert.Equal(t, "x = 1", c.Text)

	c, ok = Explicit(doc, 2, opts)
	require.True(t, ok, "end marker line belongs to the cell above")
	assert.Equal(t, 1, c.StartLine)
	assert.Equal(t, 1, c.EndLine)

	c, ok = Explicit(doc, 3, opts)
	require.True(t, ok)
	assert.Equal(t, 1, c.StartLine, "no start marker between the end marker and the cursor")
	assert.Equal(t, 3, c.EndLine)

	c, ok = Explicit(doc, 5, opts)
	require.True(t, ok)
	assert.True(t, c.Markdown)
	assert.Equal(t, "markdown", c.Metadata["type"])

	empty := document.New("u", "python", 1, "# %%\n# %%\nx = 1")
	_, ok = Explicit(empty, 0, opts)
	assert.False(t, ok)
}

func TestImplicitBlankLineCut(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()

	r := resolver(t, "x = 1\n\n\ny = 2", opts)
	c, ok := r.At(at(0), model.Implicit)
	require.True(t, ok)
	assert.Equal(t, "x = 1", c.Text)
	c, ok = r.At(at(3), model.Implicit)
	require.True(t, ok)
	assert.Equal(t, "y = 2", c.Text)
	assert.Equal(t, 3, c.StartLine)

	r = resolver(t, "x = 1\n\ny = 2", opts)
	c, ok = r.At(at(2), model.Implicit)
	require.True(t, ok)
	assert.Equal(t, "x = 1\n\ny = 2", c.Text)
	assert.Equal(t, 0, c.StartLine)
	assert.Equal(t, 2, c.EndLine)
}

func TestImplicitCommentsAndHardCut(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()

	r := resolver(t, "# Title\n# more\n\n\nx = 1\n", opts)
	c, ok := r.At(at(0), model.Implicit)
	require.True(t, ok)
	assert.Equal(t, "# Title\n# more", c.Text)
	assert.True(t, c.Markdown)
	assert.Equal(t, "markdown", c.Type())

	c, ok = r.At(at(4), model.Implicit)
	require.True(t, ok)
	assert.False(t, c.Markdown)

	// A hard cut stops the walk that enters it, never the one leaving it.
	r = resolver(t, "# %% setup\nimport os\nx = 1\n", opts)
	c, ok = r.At(at(0), model.Implicit)
	require.True(t, ok)
	assert.Equal(t, "# %% setup\nimport os\nx = 1", c.Text)
	assert.False(t, c.Markdown)
	c, ok = r.At(at(1), model.Implicit)
	require.True(t, ok)
	assert.Equal(t, "import os\nx = 1", c.Text)
	assert.Equal(t, 1, c.StartLine)

	r = resolver(t, "x = 1\n# %% next\ny = 2\n", opts)
	c, ok = r.At(at(0), model.Implicit)
	require.True(t, ok)
	assert.Equal(t, "x = 1", c.Text)
	c, ok = r.At(at(2), model.Implicit)
	require.True(t, ok)
	assert.Equal(t, "y = 2", c.Text)

	r = resolver(t, "x = 1\n\n\n# %% next\ny = 2\n", opts)
	cells := r.Cells(model.Implicit, -1)
	require.Len(t, cells, 2)
	assert.Equal(t, "x = 1", cells[0].Text)
	assert.Equal(t, "# %% next\ny = 2", cells[1].Text)
	assert.False(t, cells[1].Markdown)
}

func TestImplicitEmptyDocument(t *testing.T) {
	t.Parallel()

	r := resolver(t, "", DefaultOptions())
	_, ok := r.At(at(0), model.Implicit)
	assert.False(t, ok)

	r.Tree = nil
	_, ok = r.At(at(0), model.Implicit)
	assert.False(t, ok, "unsupported language")
}

func TestAutoMode(t *testing.T) {
	t.Parallel()
	src := "# %%\nx = 1\ny = 2\n\n\nz = 3\n"

	r := resolver(t, src, DefaultOptions())
	c, ok := r.At(at(5), model.Auto)
	require.True(t, ok)
	assert.Equal(t, "z = 3", c.Text, "markers ignored unless preferred")

	opts := DefaultOptions()
	opts.PreferExplicit = true
	r = resolver(t, src, opts)
	c, ok = r.At(at(5), model.Auto)
	require.True(t, ok)
	assert.Equal(t, 1, c.StartLine)
	assert.True(t, c.Explicit)

	r = resolver(t, "x = 1\n", opts)
	_, ok = r.At(at(0), model.Explicit)
	assert.False(t, ok, "explicit mode without markers")
	assert.Equal(t, model.Implicit, r.Effective(model.Auto))
}

func TestCellsAndNavigation(t *testing.T) {
	t.Parallel()
	src := "import os\n\n\n# note\ndef f():\n    return 1\n\n\nprint(f())\n"
	r := resolver(t, src, DefaultOptions())

	cells := r.Cells(model.Auto, -1)
	require.Len(t, cells, 3)
	assert.Equal(t, [2]int{0, 0}, [2]int{cells[0].StartLine, cells[0].EndLine})
	assert.Equal(t, [2]int{3, 5}, [2]int{cells[1].StartLine, cells[1].EndLine})
	assert.Equal(t, "print(f())", cells[2].Text)

	upTo := r.Cells(model.Auto, 3)
	assert.Len(t, upTo, 2)

	next, ok := r.Next(cells[0], model.Auto)
	require.True(t, ok)
	assert.Equal(t, 3, next.StartLine)

	prev, ok := r.Previous(cells[2], model.Auto)
	require.True(t, ok)
	assert.Equal(t, 3, prev.StartLine)

	_, ok = r.Previous(cells[0], model.Auto)
	assert.False(t, ok)
	_, ok = r.Next(cells[2], model.Auto)
	assert.False(t, ok)
}

func TestExplicitCellsAndNavigation(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.PreferExplicit = true
	r := resolver(t, "x = 0\n# %%\na = 1\n\n# -\n\n# %% [markdown]\n# Hi\n", opts)

	cells := r.Cells(model.Auto, -1)
	require.Len(t, cells, 3)
	assert.Equal(t, "x = 0", cells[0].Text)
	assert.Equal(t, "a = 1\n", cells[1].Text)
	assert.True(t, cells[2].Markdown)

	next, ok := r.Next(cells[1], model.Auto)
	require.True(t, ok)
	assert.Equal(t, 7, next.StartLine)

	prev, ok := r.Previous(cells[2], model.Auto)
	require.True(t, ok)
	assert.Equal(t, 2, prev.StartLine)
}

func TestSource(t *testing.T) {
	t.Parallel()

	r := resolver(t, "# Title\nx = 1\n", DefaultOptions())
	c, ok := r.At(at(0), model.Implicit)
	require.True(t, ok)
	assert.Equal(t,
		"# \nfrom IPython.display import display, Markdown\n# \ndisplay(Markdown(\"Title\"))\nx = 1",
		r.Source(c))

	r.Opts.RenderComments = false
	assert.Equal(t, "x = 1", r.Source(c))

	r = resolver(t, "# -*- coding: utf-8 -*-\nx = 1\n", DefaultOptions())
	c, ok = r.At(at(1), model.Implicit)
	require.True(t, ok)
	assert.Contains(t, r.Source(c), "# --*- coding: utf-8 -*-")
	assert.NotContains(t, r.Source(c), "display(Markdown(")

	r = resolver(t, "# %% [markdown]\n# Hello\n# <b>world</b>\n# %%\n# comment\nx = 1", DefaultOptions())
	c, ok = Explicit(r.Doc, 1, r.Opts)
	require.True(t, ok)
	assert.Equal(t,
		"from IPython.display import display, Markdown\ndisplay(Markdown(\"Hello\\n<b>world</b>\"))",
		r.Source(c))
	c, ok = Explicit(r.Doc, 5, r.Opts)
	require.True(t, ok)
	assert.Equal(t, "x = 1", r.Source(c))
}

func TestFromSelection(t *testing.T) {
	t.Parallel()
	r := resolver(t, "x = 1\ny = 2\n", DefaultOptions())

	_, ok := r.FromSelection(model.Caret(at(0)))
	assert.False(t, ok)

	c, ok := r.FromSelection(model.Selection{
		Anchor: model.Position{Line: 1, Character: 5},
		Active: model.Position{Line: 0, Character: 4},
	})
	require.True(t, ok)
	assert.Equal(t, "1\ny = 2", c.Text)
	assert.Equal(t, 0, c.StartLine)
	assert.Equal(t, 1, c.EndLine)
}

func TestBordersAndRanges(t *testing.T) {
	t.Parallel()
	doc := document.New("u", "python", 1, "a = 1   \n\n\nb = 2")

	first := model.Cell{StartLine: 0, EndLine: 0}
	assert.Equal(t, []Decoration{
		{Kind: TopOn, Range: model.Range{}},
		{Kind: BottomBelow, Range: model.Range{Start: at(1), End: at(1)}},
	}, Borders(doc, first))
	assert.Equal(t, model.Position{Line: 0, Character: 5}, SelectionRange(doc, first).End)
	assert.Equal(t, model.Position{Line: 0, Character: 8}, Span(doc, first).End)

	last := model.Cell{StartLine: 3, EndLine: 3}
	end := model.Position{Line: 3, Character: 5}
	assert.Equal(t, []Decoration{
		{Kind: TopAbove, Range: model.Range{Start: at(2), End: at(2)}},
		{Kind: BottomOn, Range: model.Range{Start: end, End: end}},
	}, Borders(doc, last))
}
