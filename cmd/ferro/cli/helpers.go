package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/ferrostack/ferro/internal/clientgen"
	"github.com/ferrostack/ferro/internal/config"
	"github.com/ferrostack/ferro/internal/orchestrator"
	"github.com/ferrostack/ferro/internal/registry"
	"github.com/ferrostack/ferro/internal/registry/mysql"
	"github.com/ferrostack/ferro/internal/registry/postgres"
	"github.com/ferrostack/ferro/internal/registry/sqlite"
	"github.com/ferrostack/ferro/internal/registry/static"
)

// loadConfig loads ferro.yaml (from --config or the working directory) merged
// over defaults. Selected values can be overridden by FERRO_* environment
// variables.
func loadConfig() (*config.YAMLConfig, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("ferro.yaml"); err == nil {
			path = "ferro.yaml"
		}
	}

	cfg := config.DefaultYAMLConfig()
	if path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Environment overrides for values that should stay out of the file.
	if secret := viper.GetString("trigger_secret"); secret != "" {
		cfg.Server.TriggerSecret = secret
	}
	if dsn := viper.GetString("source_dsn"); dsn != "" {
		cfg.Source.DSN = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	if devMode {
		cfg.Level = "debug"
	}
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newDrivers creates a driver registry with all supported database bindings.
func newDrivers() *registry.Drivers {
	drivers := registry.NewDrivers()
	drivers.Register("postgres", func() registry.Binding { return postgres.New() })
	drivers.Register("mysql", func() registry.Binding { return mysql.New() })
	drivers.Register("sqlite", func() registry.Binding { return sqlite.New() })
	return drivers
}

// buildRegistries resolves the configured source into model and route
// registries. Database sources provide models only; routes come from static
// registrations, which a standalone CLI run has none of.
func buildRegistries(cfg *config.YAMLConfig) (registry.ModelRegistry, registry.RouteRegistry, func(), error) {
	if cfg.Source.Driver == "static" {
		reg := static.New()
		return reg, reg, func() {}, nil
	}

	drivers := newDrivers()
	conn := registry.ConnectionConfig{
		Driver:     cfg.Source.Driver,
		DSN:        cfg.Source.DSN,
		SchemaName: cfg.Source.Schema,
	}
	if pool := cfg.Source.Pool; pool != nil {
		conn.MaxOpenConns = pool.MaxOpenConns
		conn.MaxIdleConns = pool.MaxIdleConns
		conn.ConnMaxLifetime = parseDuration(pool.ConnMaxLifetime, 0)
	}

	if err := drivers.Connect("source", conn); err != nil {
		return nil, nil, nil, err
	}
	binding, err := drivers.Get("source")
	if err != nil {
		drivers.CloseAll()
		return nil, nil, nil, err
	}

	return binding, static.New(), drivers.CloseAll, nil
}

// buildOrchestrator composes the cache and orchestrator from config.
func buildOrchestrator(cfg *config.YAMLConfig, models registry.ModelRegistry, routes registry.RouteRegistry, logger *slog.Logger) (*orchestrator.Orchestrator, func(), error) {
	var cache orchestrator.ArtifactCache
	cleanup := func() {}

	if cfg.Cache.Enabled {
		sqliteCache, err := orchestrator.NewSQLiteCache(cfg.Cache.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open artifact cache: %w", err)
		}
		cache = sqliteCache
		cleanup = func() { sqliteCache.Close() }
	}

	orch := orchestrator.New(orchestrator.Config{
		TypesPath:  cfg.Output.Types,
		ClientPath: cfg.Output.Client,
		ClientOptions: clientgen.Options{
			TypesImport: cfg.Output.TypesImport,
		},
	}, models, routes, cache, logger)

	return orch, cleanup, nil
}

// parseDuration parses a duration string, falling back when empty or invalid.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
