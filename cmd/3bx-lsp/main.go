// Command 3bx-lsp starts the 3BX language server over stdio.
package main

import (
	"context"
	"io"
	"os"

	"go.lsp.dev/jsonrpc2"

	"github.com/threebx-lang/threebx/pkg/config"
	"github.com/threebx-lang/threebx/pkg/lsp"
)

func main() {
	logLevel := os.Getenv("THREEBX_LSP_LOG")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := lsp.NewLogger(logLevel, os.Stderr)
	logger.Infof("starting 3bx-lsp (log level: %s)", logLevel)

	cfg, err := config.Load(".", nil)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	server := lsp.NewServer(lsp.ServerConfig{Logger: logger, Config: cfg})

	rwc := &stdinoutCloser{stdin: os.Stdin, stdout: os.Stdout, logger: logger}
	stream := jsonrpc2.NewStream(rwc)
	conn := jsonrpc2.NewConn(stream)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store the connection before the handler starts serving, so the
	// first publishDiagnostics call never races a nil connection.
	server.SetConn(conn, ctx)

	conn.Go(ctx, server.Handler())
	<-conn.Done()
	logger.Infof("3bx-lsp stopped")
}

// stdinoutCloser wraps os.Stdin/os.Stdout as the io.ReadWriteCloser the
// JSON-RPC2 stream transport needs.
type stdinoutCloser struct {
	stdin  *os.File
	stdout *os.File
	logger lsp.Logger
}

func (s *stdinoutCloser) Read(p []byte) (int, error)  { return s.stdin.Read(p) }
func (s *stdinoutCloser) Write(p []byte) (int, error) { return s.stdout.Write(p) }
func (s *stdinoutCloser) Close() error {
	s.logger.Infof("stdinoutCloser.Close called")
	return nil
}

var _ io.ReadWriteCloser = (*stdinoutCloser)(nil)
