// Package server exposes the session engine to editors as a language
// server speaking JSON-RPC over a byte stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/phobologic/saccade/internal/logging"
	"github.com/phobologic/saccade/internal/session"
)

// codeServerNotInitialized is the LSP error code for requests sent
// before initialize.
const codeServerNotInitialized int64 = -32002

var errInternal = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "saccade: internal error"}

type handlerFunc func(ctx context.Context, req *jsonrpc2.Request) (any, error)

// Server dispatches protocol messages to an engine.
type Server struct {
	engine  *session.Engine
	logger  *log.Logger
	version string

	mu          sync.Mutex
	conn        *jsonrpc2.Conn
	initialized bool
	shutdown    bool

	methods map[string]handlerFunc
}

// New returns a server for engine. Version is reported to the client.
func New(engine *session.Engine, logger *log.Logger, version string) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{engine: engine, logger: logger, version: version}
	s.methods = map[string]handlerFunc{
		"initialize":                       s.initialize,
		"initialized":                      s.noop,
		"shutdown":                         s.shutdownRequest,
		"exit":                             s.exit,
		"$/cancelRequest":                  s.noop,
		"$/setTrace":                       s.noop,
		"textDocument/didOpen":             s.didOpen,
		"textDocument/didChange":           s.didChange,
		"textDocument/didClose":            s.didClose,
		"textDocument/didSave":             s.noop,
		"workspace/didChangeConfiguration": s.didChangeConfiguration,
		"textDocument/selectionRange":      s.selectionRange,
		MethodCellAt:                       s.cellAt,
		MethodCells:                        s.cells,
		MethodExpandSelection:              s.expandSelection,
		MethodShrinkSelection:              s.shrinkSelection,
		MethodSelectionChanged:             s.selectionChanged,
		MethodEvaluationSource:             s.evaluationSource,
		MethodNextCell:                     s.nextCell,
		MethodPreviousCell:                 s.previousCell,
		MethodDecorations:                  s.decorations,
		MethodExportNotebook:               s.exportNotebook,
		MethodRunUpTo:                      s.runUpTo,
	}
	return s
}

// Serve speaks the protocol on rwc until the peer disconnects, exit is
// received, or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.engine.SetFlashHook(s.notifyDecorations)

	s.logger.Info("language server started", "version", s.version)
	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		_ = conn.Close()
		<-conn.DisconnectNotify()
		return ctx.Err()
	}
	s.logger.Info("language server stopped")
	return nil
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request panicked", logging.FieldMethod, req.Method, "panic", r)
			result, err = nil, errInternal
		}
	}()

	h, ok := s.methods[req.Method]
	if !ok {
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}

	s.mu.Lock()
	ready := s.initialized || req.Method == "initialize" || req.Method == "exit"
	s.mu.Unlock()
	if !ready {
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: codeServerNotInitialized, Message: "server not initialized"}
	}

	result, err = h(logging.WithLogger(ctx, s.logger), req)
	if err != nil {
		s.logger.Warn("request failed", logging.FieldMethod, req.Method, logging.FieldError, err)
		var rpcErr *jsonrpc2.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
			if errors.Is(err, session.ErrUnknownDocument) {
				rpcErr.Code = jsonrpc2.CodeInvalidParams
			}
		}
		return nil, rpcErr
	}
	s.logger.Debug("handled", logging.FieldMethod, req.Method, logging.FieldElapsed, time.Since(start))
	return result, nil
}

func decode(req *jsonrpc2.Request, v any) error {
	if req.Params == nil || string(*req.Params) == "null" {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) notifyDecorations(uri string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	params := decorationsChangedParams{}
	params.TextDocument.URI = documentURI(uri)
	if err := conn.Notify(context.Background(), MethodDecorationsChanged, params); err != nil {
		s.logger.Debug("decorations notification dropped", logging.FieldURI, uri, logging.FieldError, err)
	}
}
