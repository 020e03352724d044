package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ferrostack/ferro/internal/config"
	"github.com/ferrostack/ferro/internal/orchestrator"
	"github.com/ferrostack/ferro/internal/server"
	"github.com/ferrostack/ferro/internal/watch"
)

func newSyncCmd() *cobra.Command {
	var (
		watchMode  bool
		typesPath  string
		clientPath string
	)

	cmd := &cobra.Command{
		Use:   "sync-types",
		Short: "Synchronize TypeScript artifacts with the backend API",
		Long: `Introspect the configured source, normalize models and endpoints into a
catalog, and generate the TypeScript type definitions and API client.

In one-shot mode the command runs a single pass and exits non-zero if the
pass fails. With --watch it keeps running: source file changes trigger
debounced re-runs, and the catalog is served over HTTP for metadata
consumers.`,
		Example: `  ferro sync-types                 # one-shot sync
  ferro sync-types --watch         # watch sources and serve metadata`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(watchMode, typesPath, clientPath)
		},
	}

	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Watch source paths and re-sync on change")
	cmd.Flags().StringVar(&typesPath, "types", "", "Output path for the type definitions (overrides config)")
	cmd.Flags().StringVar(&clientPath, "client", "", "Output path for the API client (overrides config)")

	viper.BindPFlag("output.types", cmd.Flags().Lookup("types"))
	viper.BindPFlag("output.client", cmd.Flags().Lookup("client"))

	return cmd
}

func runSync(watchMode bool, typesPath, clientPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if typesPath != "" {
		cfg.Output.Types = typesPath
	}
	if clientPath != "" {
		cfg.Output.Client = clientPath
	}

	logger := newLogger(cfg.Logging)

	models, routes, closeSource, err := buildRegistries(cfg)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}
	defer closeSource()

	orch, closeCache, err := buildOrchestrator(cfg, models, routes, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	ctx := context.Background()
	orch.Restore(ctx)

	if !watchMode {
		run, err := orch.Sync(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if run.Skipped {
			logger.Info("catalog unchanged, artifacts left as-is", "fingerprint", run.Fingerprint)
		} else {
			logger.Info("artifacts written",
				"types", cfg.Output.Types,
				"client", cfg.Output.Client,
				"fingerprint", run.Fingerprint)
		}
		return nil
	}

	return runWatch(ctx, cfg, orch, logger)
}

// runWatch runs the long-lived watch loop: file watcher, re-run worker, and
// the HTTP metadata server. The server's shutdown signal ends all three.
func runWatch(ctx context.Context, cfg *config.YAMLConfig, orch *orchestrator.Orchestrator, logger *slog.Logger) error {
	// Initial pass before watching; a failure is reported but does not
	// abort watch mode, since the next file change may fix it.
	if _, err := orch.Sync(ctx); err != nil {
		logger.Error("initial sync failed", "error", err)
	}

	watcher, err := watch.New(watch.Config{
		Paths:      cfg.Watch.Paths,
		Extensions: cfg.Watch.Extensions,
		Ignored:    cfg.Watch.Ignored,
		Debounce:   parseDuration(cfg.Watch.Debounce, 0),
	}, orch.Trigger, logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go orch.Serve(serveCtx)

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		BaseURL:         cfg.Server.BaseURL,
		ShutdownTimeout: parseDuration(cfg.Server.ShutdownTimeout, 15*time.Second),
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
		TriggerSecret:   cfg.Server.TriggerSecret,
	}, orch, logger)

	logger.Info("watch mode started",
		"paths", cfg.Watch.Paths,
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	return srv.ListenAndServe()
}
