package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no
// HTTP surface. It returns when the client disconnects or the process is
// interrupted.
func ServeMCP(opts Options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := New(opts)
	if err := a.Startup(ctx); err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.mcp.ServeStdio()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.log.Error("mcp server stopped", zap.Error(err))
		}
		return err
	case <-ctx.Done():
		a.log.Info("interrupted, shutting down")
		return nil
	}
}

// ServeHTTP runs the HTTP API, the streamable MCP transport and the metrics
// endpoint until interrupted.
func ServeHTTP(opts Options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := New(opts)
	if err := a.Startup(ctx); err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	return a.Serve(ctx)
}
