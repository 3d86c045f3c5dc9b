package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/logging"
	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/notebook"
)

func documentURI(uri string) protocol.DocumentURI {
	return protocol.DocumentURI(uri)
}

func (s *Server) noop(context.Context, *jsonrpc2.Request) (any, error) {
	return nil, nil
}

func (s *Server) initialize(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params protocol.InitializeParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	if params.InitializationOptions != nil {
		if err := s.applySettings(params.InitializationOptions); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindIncremental,
			},
			SelectionRangeProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{Name: "saccade", Version: s.version},
	}, nil
}

func (s *Server) shutdownRequest(context.Context, *jsonrpc2.Request) (any, error) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	return nil, nil
}

func (s *Server) exit(context.Context, *jsonrpc2.Request) (any, error) {
	s.mu.Lock()
	conn, clean := s.conn, s.shutdown
	s.mu.Unlock()
	if !clean {
		s.logger.Warn("exit received before shutdown")
	}
	if conn != nil {
		go conn.Close()
	}
	return nil, nil
}

func (s *Server) didOpen(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params protocol.DidOpenTextDocumentParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	td := params.TextDocument
	s.engine.Open(ctx, string(td.URI), string(td.LanguageID), int(td.Version), td.Text)
	return nil, nil
}

func (s *Server) didChange(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params didChangeParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	uri := string(params.TextDocument.URI)
	return nil, s.engine.Change(ctx, uri, int(params.TextDocument.Version), toChanges(params.ContentChanges))
}

func (s *Server) didClose(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params protocol.DidCloseTextDocumentParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	s.engine.Close(ctx, string(params.TextDocument.URI))
	return nil, nil
}

func (s *Server) didChangeConfiguration(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params protocol.DidChangeConfigurationParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	if err := s.applySettings(params.Settings); err != nil {
		// Keep serving with the previous settings.
		s.logger.Warn("ignoring configuration", logging.FieldError, err)
	}
	return nil, nil
}

// applySettings overlays client settings, either bare or nested under a
// "saccade" key, onto the engine's current configuration.
func (s *Server) applySettings(settings any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	var nested map[string]json.RawMessage
	if json.Unmarshal(raw, &nested) == nil {
		if inner, ok := nested["saccade"]; ok {
			raw = inner
		}
	}

	cfg := s.engine.Config()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("decoding settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.engine.SetConfig(cfg)
	logging.SetLoggerLevel(s.logger, cfg.LogLevel)
	s.logger.Debug("configuration updated", "explicit", cfg.UseExplicitCellsIfPresent)
	return nil
}

func (s *Server) selectionRange(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params protocol.SelectionRangeParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	uri := string(params.TextDocument.URI)
	out := make([]protocol.SelectionRange, 0, len(params.Positions))
	for _, p := range params.Positions {
		pos := toModelPosition(p)
		ranges, err := s.engine.SelectionRanges(ctx, uri, pos)
		if err != nil {
			return nil, err
		}
		if len(ranges) == 0 {
			ranges = []model.Range{{Start: pos, End: pos}}
		}
		out = append(out, selectionRange(ranges))
	}
	return out, nil
}

func (s *Server) cellAt(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params positionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	c, ok, err := s.engine.CellAt(ctx, string(params.TextDocument.URI), params.Position, model.ParseMode(params.Mode))
	return optionalCell(c, ok, err)
}

func (s *Server) nextCell(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params positionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	c, ok, err := s.engine.NextCell(ctx, string(params.TextDocument.URI), params.Position, model.ParseMode(params.Mode))
	return optionalCell(c, ok, err)
}

func (s *Server) previousCell(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params positionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	c, ok, err := s.engine.PreviousCell(ctx, string(params.TextDocument.URI), params.Position, model.ParseMode(params.Mode))
	return optionalCell(c, ok, err)
}

// optionalCell maps "no cell" to a JSON null result.
func optionalCell(c model.Cell, ok bool, err error) (any, error) {
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (s *Server) cells(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params cellsParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	upTo := -1
	if params.UpToLine != nil {
		upTo = *params.UpToLine
	}
	cells, err := s.engine.Cells(ctx, string(params.TextDocument.URI), model.ParseMode(params.Mode), upTo)
	if err != nil {
		return nil, err
	}
	if cells == nil {
		cells = []model.Cell{}
	}
	return cells, nil
}

func (s *Server) expandSelection(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params selectionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	return s.engine.Expand(ctx, string(params.TextDocument.URI), params.Selection)
}

func (s *Server) shrinkSelection(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params selectionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	return s.engine.Shrink(ctx, string(params.TextDocument.URI), params.Selection)
}

func (s *Server) selectionChanged(_ context.Context, req *jsonrpc2.Request) (any, error) {
	var params selectionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	s.engine.SelectionChanged(string(params.TextDocument.URI), params.Selection)
	return nil, nil
}

func (s *Server) evaluationSource(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params selectionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	ev, ok, err := s.engine.Evaluate(ctx, string(params.TextDocument.URI), params.Selection, model.ParseMode(params.Mode))
	if err != nil || !ok {
		return nil, err
	}
	return &ev, nil
}

func (s *Server) decorations(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params positionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	decs, err := s.engine.Decorations(ctx, string(params.TextDocument.URI), params.Position)
	if err != nil {
		return nil, err
	}
	return decs, nil
}

func (s *Server) runUpTo(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params positionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	cells, next, ok, err := s.engine.RunUpTo(ctx, string(params.TextDocument.URI), params.Position, model.ParseMode(params.Mode))
	if err != nil || !ok {
		return nil, err
	}
	return runUpToResult{Cells: cells, NextLine: next}, nil
}

func (s *Server) exportNotebook(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params documentParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	uri := string(params.TextDocument.URI)
	doc, err := s.engine.Document(uri)
	if err != nil {
		return nil, err
	}
	cells, err := s.engine.Cells(ctx, uri, model.ParseMode(params.Mode), -1)
	if err != nil {
		return nil, err
	}
	l := lang.Detect(uri, doc.LanguageID(), []byte(doc.Text()))
	return exportResult{Notebook: notebook.Build(cells, l)}, nil
}
