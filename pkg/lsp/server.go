// Package lsp implements a Language Server Protocol front end for 3BX,
// recompiling on every change and publishing the diagnostics bus back to
// the editor instead of proxying to a separate backing compiler.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/threebx-lang/threebx/pkg/compiler"
	"github.com/threebx-lang/threebx/pkg/config"
	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/source"
)

// ServerConfig holds the server's fixed collaborators.
type ServerConfig struct {
	Logger Logger
	Config *config.Config
}

// Server is the 3BX language server: one process, one overlay file system
// shadowing disk for open buffers, recompiling whichever document changed.
type Server struct {
	cfg ServerConfig
	fs  *source.Overlay

	connMu sync.RWMutex
	conn   jsonrpc2.Conn
	ctx    context.Context
}

// NewServer creates a Server backed by the real disk file system, with an
// empty overlay until the client opens documents.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = NewLogger("info", os.Stderr)
	}
	return &Server{
		cfg: cfg,
		fs:  &source.Overlay{Base: osFS{}, Buffers: source.MapFS{}},
	}
}

// SetConn installs the connection this server replies and notifies on.
// Callers must call this before Handler's connection starts serving
// requests, to avoid a race between the first request and publishing.
func (s *Server) SetConn(conn jsonrpc2.Conn, ctx context.Context) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conn = conn
	s.ctx = ctx
}

func (s *Server) getConn() (jsonrpc2.Conn, context.Context) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn, s.ctx
}

// Handler returns the jsonrpc2.Handler that dispatches incoming requests.
func (s *Server) Handler() jsonrpc2.Handler {
	return jsonrpc2.ReplyHandler(s.handleRequest)
}

func (s *Server) handleRequest(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.cfg.Logger.Debugf("request: %s", req.Method())

	switch req.Method() {
	case "initialize":
		return s.handleInitialize(ctx, reply, req)
	case "initialized":
		return reply(ctx, nil, nil)
	case "shutdown":
		return reply(ctx, nil, nil)
	case "exit":
		return reply(ctx, nil, nil)
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, reply, req)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, reply, req)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, reply, req)
	case "textDocument/didClose":
		return s.handleDidClose(ctx, reply, req)
	case "textDocument/hover":
		return s.handleHover(ctx, reply, req)
	default:
		return reply(ctx, nil, nil)
	}
}

func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}

	result := &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{IncludeText: false},
			},
			HoverProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{Name: "3bx-lsp", Version: "0.1.0-alpha"},
	}
	return reply(ctx, result, nil)
}

func (s *Server) handleDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	path := uriToPath(params.TextDocument.URI)
	s.fs.Set(path, params.TextDocument.Text)
	s.recompileAndPublish(path, params.TextDocument.URI)
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}
	// Full-document sync only (see TextDocumentSyncKindFull above): the
	// last change event carries the whole new text.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	path := uriToPath(params.TextDocument.URI)
	s.fs.Set(path, text)
	s.recompileAndPublish(path, params.TextDocument.URI)
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	path := uriToPath(params.TextDocument.URI)
	s.recompileAndPublish(path, params.TextDocument.URI)
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	path := uriToPath(params.TextDocument.URI)
	s.fs.Clear(path)
	s.publishDiagnostics(params.TextDocument.URI, nil)
	return reply(ctx, nil, nil)
}

func (s *Server) handleHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.HoverParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	path := uriToPath(params.TextDocument.URI)
	res := compiler.Compile(s.fs, s.cfg.Config, path)
	if res.Program == nil {
		return reply(ctx, nil, nil)
	}

	defByID := map[int]*pattern.Definition{}
	for _, d := range res.Program.Trie.Definitions() {
		defByID[d.ID] = d
	}

	line := int(params.Position.Line) + 1
	var names []string
	for _, r := range res.Program.Lines {
		if r.Line == nil || r.Match == nil || r.Line.Origin.Line != line {
			continue
		}
		if d, ok := defByID[r.Match.DefID]; ok {
			names = append(names, d.Kind.String()+" "+d.Raw)
		}
	}
	if len(names) == 0 {
		return reply(ctx, nil, nil)
	}
	hover := &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: strings.Join(names, ", ")},
	}
	return reply(ctx, hover, nil)
}

// recompileAndPublish reruns the pipeline against the overlay-backed file
// system and pushes the resulting diagnostics to the client, replacing
// whatever was published for this document before (LSP diagnostics are
// not incremental: each publish is the full current set).
func (s *Server) recompileAndPublish(path string, uri protocol.DocumentURI) {
	res := compiler.Compile(s.fs, s.cfg.Config, path)
	s.publishDiagnostics(uri, res.Bus.Items())
}

func (s *Server) publishDiagnostics(uri protocol.DocumentURI, items []diag.Diagnostic) {
	conn, ctx := s.getConn()
	if conn == nil {
		return
	}

	diags := make([]protocol.Diagnostic, 0, len(items))
	for _, d := range items {
		diags = append(diags, protocol.Diagnostic{
			Range:    toProtocolRange(d.Range),
			Severity: toProtocolSeverity(d.Severity),
			Source:   "3bx",
			Message:  d.Message,
			Code:     string(d.Kind),
		})
	}

	params := &protocol.PublishDiagnosticsParams{URI: uri, Diagnostics: diags}
	if err := conn.Notify(ctx, "textDocument/publishDiagnostics", params); err != nil {
		s.cfg.Logger.Warnf("publishDiagnostics: %v", err)
	}
}

func toProtocolRange(r source.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(max0(r.Start.Line - 1)), Character: uint32(max0(r.Start.Col - 1))},
		End:   protocol.Position{Line: uint32(max0(r.End.Line - 1)), Character: uint32(max0(r.End.Col - 1))},
	}
}

func toProtocolSeverity(sev diag.Severity) protocol.DiagnosticSeverity {
	switch sev {
	case diag.Error:
		return protocol.DiagnosticSeverityError
	case diag.Warning:
		return protocol.DiagnosticSeverityWarning
	case diag.Info:
		return protocol.DiagnosticSeverityInformation
	default:
		return protocol.DiagnosticSeverityHint
	}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// uriToPath turns the editor's document URI into the plain path 3BX's
// own FileSystem collaborator deals in.
func uriToPath(uri protocol.DocumentURI) string {
	return uri.Filename()
}

// osFS is the disk-backed FileSystem the overlay falls back to for any
// path the editor hasn't opened.
type osFS struct{}

func (osFS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, path)
	}
	return data, nil
}

var _ source.FileSystem = osFS{}
