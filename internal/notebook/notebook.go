// Package notebook converts a document's cells into a Jupyter notebook and
// renders an HTML preview of them.
package notebook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/phobologic/saccade/internal/cell"
	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/model"
)

// Notebook is an nbformat 4 document.
type Notebook struct {
	NBFormat      int      `json:"nbformat"`
	NBFormatMinor int      `json:"nbformat_minor"`
	Metadata      Metadata `json:"metadata"`
	Cells         []Cell   `json:"cells"`
}

// Metadata is the notebook-level metadata block.
type Metadata struct {
	KernelSpec   KernelSpec   `json:"kernelspec"`
	LanguageInfo LanguageInfo `json:"language_info"`
}

type KernelSpec struct {
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Name        string `json:"name"`
}

type LanguageInfo struct {
	CodeMirrorMode    *CodeMirrorMode `json:"codemirror_mode,omitempty"`
	FileExtension     string          `json:"file_extension"`
	MimeType          string          `json:"mimetype"`
	Name              string          `json:"name"`
	NBConvertExporter string          `json:"nbconvert_exporter,omitempty"`
	PygmentsLexer     string          `json:"pygments_lexer,omitempty"`
	Version           string          `json:"version,omitempty"`
}

type CodeMirrorMode struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// Cell is one notebook cell. Code cells carry empty outputs and a null
// execution count; markdown cells carry neither.
type Cell struct {
	Type     string
	Metadata map[string]string
	Source   []string
}

func (c Cell) MarshalJSON() ([]byte, error) {
	meta := c.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	src := c.Source
	if src == nil {
		src = []string{}
	}
	if c.Type == "markdown" {
		return json.Marshal(struct {
			CellType string            `json:"cell_type"`
			Metadata map[string]string `json:"metadata"`
			Source   []string          `json:"source"`
		}{c.Type, meta, src})
	}
	return json.Marshal(struct {
		CellType       string            `json:"cell_type"`
		ExecutionCount *int              `json:"execution_count"`
		Metadata       map[string]string `json:"metadata"`
		Outputs        []any             `json:"outputs"`
		Source         []string          `json:"source"`
	}{c.Type, nil, meta, []any{}, src})
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw struct {
		CellType string            `json:"cell_type"`
		Metadata map[string]string `json:"metadata"`
		Source   []string          `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Type, c.Metadata, c.Source = raw.CellType, raw.Metadata, raw.Source
	return nil
}

// Text joins the cell's source lines.
func (c Cell) Text() string {
	return strings.Join(c.Source, "")
}

// Build converts cells, in order, into a notebook for language l.
// Markdown cells lose their comment markers; code cells keep their text.
func Build(cells []model.Cell, l *lang.Language) *Notebook {
	nb := &Notebook{
		NBFormat:      4,
		NBFormatMinor: 2,
		Metadata:      metadataFor(l),
		Cells:         make([]Cell, 0, len(cells)),
	}
	for _, c := range cells {
		text := c.Text
		if c.Markdown {
			text = cell.StripCommentMarkers(text)
		}
		meta := make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			meta[k] = v
		}
		nb.Cells = append(nb.Cells, Cell{Type: c.Type(), Metadata: meta, Source: SplitLines(text)})
	}
	return nb
}

// SplitLines splits text the way nbformat stores sources: every line but
// the last keeps its newline.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Write encodes nb with Jupyter's one-space indentation.
func Write(w io.Writer, nb *Notebook) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(nb); err != nil {
		return fmt.Errorf("encoding notebook: %w", err)
	}
	return nil
}

// Read decodes a notebook.
func Read(r io.Reader) (*Notebook, error) {
	var nb Notebook
	if err := json.NewDecoder(r).Decode(&nb); err != nil {
		return nil, fmt.Errorf("decoding notebook: %w", err)
	}
	return &nb, nil
}

func metadataFor(l *lang.Language) Metadata {
	if l != nil && l.Name == "ruby" {
		return Metadata{
			KernelSpec: KernelSpec{DisplayName: "Ruby", Language: "ruby", Name: "ruby"},
			LanguageInfo: LanguageInfo{
				FileExtension: ".rb",
				MimeType:      "application/x-ruby",
				Name:          "ruby",
			},
		}
	}
	return Metadata{
		KernelSpec: KernelSpec{DisplayName: "Python 3", Language: "python", Name: "python3"},
		LanguageInfo: LanguageInfo{
			CodeMirrorMode:    &CodeMirrorMode{Name: "ipython", Version: 3},
			FileExtension:     ".py",
			MimeType:          "text/x-python",
			Name:              "python",
			NBConvertExporter: "python",
			PygmentsLexer:     "ipython3",
			Version:           "3.8.0",
		},
	}
}
