package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/wrangle/internal/engine"
	"github.com/leapstack-labs/wrangle/internal/server"
	"github.com/leapstack-labs/wrangle/internal/workspace"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the workspace HTTP service",
		Long: `Start an HTTP service that stores workspaces and runs recipes over them.

Workspaces hold uploaded data, a recipe and properties, and are kept in the
state database alongside the schema registry. Executions return a preview of at most --limit rows unless
the request asks for other sampling.

Endpoints:
  GET    /health
  GET    /directives
  POST   /compile
  GET    /events
  GET    /workspaces
  POST   /workspaces
  DELETE /workspaces?scope=<scope>
  GET    /workspaces/{id}
  DELETE /workspaces/{id}
  GET    /workspaces/{id}/data
  PUT    /workspaces/{id}/data
  PUT    /workspaces/{id}/recipe
  PUT    /workspaces/{id}/properties
  POST   /workspaces/{id}/execute
  GET    /schemas
  POST   /schemas
  GET    /schemas/{id}
  DELETE /schemas/{id}
  GET    /schemas/{id}/versions
  POST   /schemas/{id}/versions
  GET    /schemas/{id}/versions/{version|latest}
  GET    /schemas/{id}/versions/{version|latest}/specification
  DELETE /schemas/{id}/versions/{version|latest}`,
		Example: `  # Serve on the default address
  wrangle serve

  # Serve on all interfaces with a custom state file
  wrangle serve --addr :8080 --state /var/lib/wrangle/state.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("addr", "", "Listen address")
	cmd.Flags().Int("cache-size", 0, "Compiled recipe cache size")
	addSamplingFlags(cmd)
	addExecutionFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := workspace.NewStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(); err != nil {
		return err
	}

	so := cfg.Sampling
	so.Limit = so.PreviewLimit()
	eng := engine.New(engine.Config{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		CacheSize:   cfg.Server.CacheSize,
		Sampling:    so.Options(),
		Logger:      logger,
	})

	srv := server.New(server.Config{
		Addr:      cfg.Server.Addr,
		Namespace: cfg.Namespace,
		Engine:    eng,
		Store:     store,
		Logger:    logger,
	})

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	cmdCtx.Renderer.Success(fmt.Sprintf("Serving on http://%s (state: %s)", cfg.Server.Addr, cfg.StatePath))
	logger.Info("server starting", slog.String("addr", cfg.Server.Addr), slog.String("namespace", cfg.Namespace))
	return srv.Serve(ctx)
}
