package commands

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/cli/config"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/connection"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/debugserver"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/objectexplorer"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/scripting"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/smo"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/templating"
)

// ServerType is the only server type the service speaks to.
const ServerType = "pg"

// NewServeCommand creates the serve command.
func NewServeCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve JSON-RPC on stdin/stdout",
		Long: `Start the tools service for IDE integration.

The service communicates over stdin/stdout using Content-Length framed
JSON-RPC 2.0. Logs go to stderr or to log_file; stdout carries only
protocol messages.`,
		Example: `  # Start the service (usually called by an IDE)
  pgtoolsservice serve

  # With template hot reload and debug endpoints
  pgtoolsservice serve --templates-dir ./templates --watch-templates --debug-addr 127.0.0.1:6060`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunServe(cmd, version)
		},
	}
	return cmd
}

// RunServe runs the service on the command's input and output streams.
func RunServe(cmd *cobra.Command, version string) error {
	ctx := cmd.Context()
	return Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), config.GetConfig(ctx), config.GetLogger(ctx), version)
}

// Serve wires every service onto one JSON-RPC server reading in and writing
// out, and runs until the client disconnects or ctx is canceled.
func Serve(ctx context.Context, in io.Reader, out io.Writer, cfg *config.Config, logger *slog.Logger, version string) error {
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}
	resolver, err := NewResolver(cfg, logger)
	if err != nil {
		return err
	}
	opener, err := connection.NewOpener(ServerType, cfg.ConnectionSettings(), logger.With("component", "connection"))
	if err != nil {
		return err
	}

	srv := jsonrpc.NewServer(in, out,
		jsonrpc.WithLogger(logger.With("component", "jsonrpc")),
		jsonrpc.WithQueueSize(cfg.OutboundQueue),
		jsonrpc.WithVersion(version),
	)

	conns := connection.NewService(opener, srv, logger.With("component", "connection"))
	explorer := objectexplorer.NewService(opener, resolver, srv, logger.With("component", "objectexplorer"))
	scripts := scripting.NewService(explorer, logger.With("component", "scripting"))
	conns.Register(srv)
	explorer.Register(srv)
	scripts.Register(srv)
	defer conns.Close()
	defer explorer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return srv.Run(gctx)
	})

	if cfg.DebugAddr != "" {
		debug := debugserver.New(debugserver.Config{
			Addr:     cfg.DebugAddr,
			Sessions: explorer,
			Version:  version,
			Logger:   logger.With("component", "debugserver"),
		})
		g.Go(func() error {
			return debug.Serve(gctx)
		})
	}

	if cfg.WatchTemplates {
		g.Go(func() error {
			return resolver.Watch(gctx, cfg.TemplatesDir)
		})
	}

	return g.Wait()
}

// NewResolver opens the template bundle: templates_dir when configured,
// the embedded bundle otherwise.
func NewResolver(cfg *config.Config, logger *slog.Logger) (*templating.Resolver, error) {
	var bundle fs.FS
	if cfg.TemplatesDir != "" {
		bundle = os.DirFS(cfg.TemplatesDir)
	} else {
		var err error
		bundle, err = smo.Bundle(ServerType)
		if err != nil {
			return nil, fmt.Errorf("loading embedded templates: %w", err)
		}
	}
	return templating.New(bundle,
		templating.WithLogger(logger.With("component", "templating")),
		templating.WithServerType(ServerType),
	), nil
}
