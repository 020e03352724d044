package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ferro.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

func TestDefaultYAMLConfig(t *testing.T) {
	cfg := DefaultYAMLConfig()

	if cfg.Source.Driver != "static" {
		t.Errorf("default driver = %q, want static", cfg.Source.Driver)
	}
	if cfg.Server.Port != 4680 {
		t.Errorf("default port = %d, want 4680", cfg.Server.Port)
	}
	if cfg.Output.Types == "" || cfg.Output.Client == "" {
		t.Error("default output paths must be set")
	}
	if !cfg.Cache.Enabled || cfg.Cache.DataDir == "" {
		t.Error("cache should default to enabled with a data dir")
	}
	if cfg.MCP.Enabled {
		t.Error("MCP should default to disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

func TestLoadYAMLConfig(t *testing.T) {
	path := writeConfig(t, `
source:
  driver: postgres
  dsn: postgres://localhost/app
  schema: public

output:
  types: frontend/src/types.ts

server:
  port: 9000
  trigger_secret: hunter2
`)

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}

	if cfg.Source.Driver != "postgres" || cfg.Source.Schema != "public" {
		t.Errorf("source not loaded: %+v", cfg.Source)
	}
	if cfg.Output.Types != "frontend/src/types.ts" {
		t.Errorf("output.types = %q", cfg.Output.Types)
	}
	if cfg.Server.Port != 9000 || cfg.Server.TriggerSecret != "hunter2" {
		t.Errorf("server not loaded: %+v", cfg.Server)
	}

	// Unset keys keep their defaults.
	if cfg.Output.Client != "web/src/api-client.ts" {
		t.Errorf("unset output.client lost its default: %q", cfg.Output.Client)
	}
	if cfg.Watch.Debounce != "150ms" {
		t.Errorf("unset watch.debounce lost its default: %q", cfg.Watch.Debounce)
	}
}

func TestLoadYAMLConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("FERRO_TEST_DSN", "postgres://prod-host/app")
	t.Setenv("FERRO_TEST_SECRET", "s3cret")

	path := writeConfig(t, `
source:
  driver: postgres
  dsn: ${FERRO_TEST_DSN}

server:
  trigger_secret: ${FERRO_TEST_SECRET}
`)

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.DSN != "postgres://prod-host/app" {
		t.Errorf("dsn = %q, env var not expanded", cfg.Source.DSN)
	}
	if cfg.Server.TriggerSecret != "s3cret" {
		t.Errorf("trigger_secret = %q, env var not expanded", cfg.Server.TriggerSecret)
	}
}

func TestLoadYAMLConfigMissingFile(t *testing.T) {
	_, err := LoadYAMLConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadYAMLConfigMalformed(t *testing.T) {
	path := writeConfig(t, "source: [not: a: mapping")
	if _, err := LoadYAMLConfig(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*YAMLConfig)
		wantErr string
	}{
		{
			"defaults pass",
			func(c *YAMLConfig) {},
			"",
		},
		{
			"unknown driver",
			func(c *YAMLConfig) { c.Source.Driver = "mongodb" },
			"unknown source driver",
		},
		{
			"database driver without dsn",
			func(c *YAMLConfig) { c.Source.Driver = "postgres" },
			"requires a dsn",
		},
		{
			"database driver with dsn",
			func(c *YAMLConfig) {
				c.Source.Driver = "sqlite"
				c.Source.DSN = ":memory:"
			},
			"",
		},
		{
			"empty types path",
			func(c *YAMLConfig) { c.Output.Types = "" },
			"output.types",
		},
		{
			"empty client path",
			func(c *YAMLConfig) { c.Output.Client = "" },
			"output.client",
		},
		{
			"port out of range",
			func(c *YAMLConfig) { c.Server.Port = 70000 },
			"out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultYAMLConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Round trip
// ---------------------------------------------------------------------------

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ferro.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Source.Driver != "static" || cfg.Server.Port != 4680 {
		t.Errorf("round-tripped config lost defaults: %+v", cfg)
	}
}
