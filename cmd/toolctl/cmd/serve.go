package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suntianc/toolcore/internal/logging"
	"github.com/suntianc/toolcore/internal/mcpserver"
	"github.com/suntianc/toolcore/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var transport string
	var embedderProvider string
	var embedderModel string
	var manifestDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve find_tools over the Model Context Protocol",
		Long: `serve starts the MCP server: it opens the vector index, wires the
hybrid retrieval engine, and exposes a single find_tools tool over
stdio for AI clients (Claude Code, Cursor, etc.) to call.

The stdio transport requires stdout to carry ONLY the JSON-RPC
stream, so this command never writes status output to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), transport, embedderProvider, embedderModel, manifestDir)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (only stdio is supported)")
	cmd.Flags().StringVar(&embedderProvider, "embedder", "", "Embedder backend: ollama, static, mlx (default: ollama with static fallback)")
	cmd.Flags().StringVar(&embedderModel, "embedder-model", "", "Embedding model name (provider-specific default if empty)")
	cmd.Flags().StringVar(&manifestDir, "manifest-dir", "", "Directory to watch for tool manifests (disabled if empty)")

	return cmd
}

func runServe(ctx context.Context, transport, embedderProvider, embedderModel, manifestDir string) error {
	cleanup, err := logging.SetupMCPMode()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, embedderProvider, embedderModel)
	if err != nil {
		return err
	}
	defer application.Close()

	if manifestDir != "" {
		w, err := watcher.NewHybridWatcher(watcher.Options{}.WithDefaults())
		if err != nil {
			return err
		}
		ingester := watcher.NewManifestIngester(w, manifestLoader, manifestSink{app: application}, manifestIDOf, slog.Default())
		go func() {
			if err := ingester.Run(ctx, manifestDir); err != nil && ctx.Err() == nil {
				slog.Error("manifest watcher stopped", slog.Any("err", err))
			}
		}()
	}

	srv, err := mcpserver.New(application.engine, slog.Default())
	if err != nil {
		return err
	}

	return srv.Serve(ctx, transport)
}
