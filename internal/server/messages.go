package server

import (
	"go.lsp.dev/protocol"

	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/notebook"
)

// Custom methods served alongside the standard protocol.
const (
	MethodCellAt             = "saccade/cellAt"
	MethodCells              = "saccade/cells"
	MethodExpandSelection    = "saccade/expandSelection"
	MethodShrinkSelection    = "saccade/shrinkSelection"
	MethodSelectionChanged   = "saccade/selectionChanged"
	MethodEvaluationSource   = "saccade/evaluationSource"
	MethodNextCell           = "saccade/nextCell"
	MethodPreviousCell       = "saccade/previousCell"
	MethodDecorations        = "saccade/decorations"
	MethodExportNotebook     = "saccade/exportNotebook"
	MethodRunUpTo            = "saccade/runUpTo"
	MethodDecorationsChanged = "saccade/decorationsChanged"
)

// didChangeParams mirrors textDocument/didChange with an optional range,
// since a change without one replaces the whole document.
type didChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                          `json:"contentChanges"`
}

type contentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

type positionParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Position     model.Position                  `json:"position"`
	Mode         string                          `json:"mode,omitempty"`
}

type cellsParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Mode         string                          `json:"mode,omitempty"`
	UpToLine     *int                            `json:"upToLine,omitempty"`
}

type selectionParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Selection    model.Selection                 `json:"selection"`
	Mode         string                          `json:"mode,omitempty"`
}

type documentParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Mode         string                          `json:"mode,omitempty"`
}

type runUpToResult struct {
	Cells    []model.Cell `json:"cells"`
	NextLine int          `json:"nextLine"`
}

type exportResult struct {
	Notebook *notebook.Notebook `json:"notebook"`
}

type decorationsChangedParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

func toModelPosition(p protocol.Position) model.Position {
	return model.Position{Line: int(p.Line), Character: int(p.Character)}
}

func toProtocolRange(r model.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(r.Start.Line), Character: uint32(r.Start.Character)},
		End:   protocol.Position{Line: uint32(r.End.Line), Character: uint32(r.End.Character)},
	}
}

func toChanges(in []contentChange) []model.Change {
	out := make([]model.Change, len(in))
	for i, c := range in {
		out[i].Text = c.Text
		if c.Range != nil {
			out[i].Range = &model.Range{
				Start: toModelPosition(c.Range.Start),
				End:   toModelPosition(c.Range.End),
			}
		}
	}
	return out
}

// selectionRange links ranges, innermost first, into the parent chain
// textDocument/selectionRange expects.
func selectionRange(ranges []model.Range) protocol.SelectionRange {
	var parent *protocol.SelectionRange
	for i := len(ranges) - 1; i > 0; i-- {
		parent = &protocol.SelectionRange{Range: toProtocolRange(ranges[i]), Parent: parent}
	}
	return protocol.SelectionRange{Range: toProtocolRange(ranges[0]), Parent: parent}
}
