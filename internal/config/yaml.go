// Package config loads and validates the ferro.yaml configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level ferro configuration file.
type YAMLConfig struct {
	Source  SourceConfig  `yaml:"source"`
	Watch   WatchConfig   `yaml:"watch"`
	Output  OutputConfig  `yaml:"output"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	MCP     MCPConfig     `yaml:"mcp"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig selects where model and route definitions come from. With a
// database driver, models are introspected from the live schema; driver
// "static" expects registrations made in code.
type SourceConfig struct {
	Driver string          `yaml:"driver"`
	DSN    string          `yaml:"dsn"`
	Schema string          `yaml:"schema"`
	Pool   *PoolYAMLConfig `yaml:"pool,omitempty"`
}

// PoolYAMLConfig controls the database connection pool.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// WatchConfig controls file watching in --watch mode.
type WatchConfig struct {
	Paths      []string `yaml:"paths"`
	Extensions []string `yaml:"extensions"`
	Ignored    []string `yaml:"ignored"`
	Debounce   string   `yaml:"debounce"`
}

// OutputConfig controls where generated artifacts are written.
type OutputConfig struct {
	Types       string `yaml:"types"`
	Client      string `yaml:"client"`
	TypesImport string `yaml:"types_import"`
}

// ServerConfig controls the HTTP metadata server.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	BaseURL         string   `yaml:"base_url"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
	RateLimit       int      `yaml:"rate_limit"`
	TriggerSecret   string   `yaml:"trigger_secret"`
}

// CacheConfig controls the on-disk artifact cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	DataDir string `yaml:"data_dir"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Source: SourceConfig{
			Driver: "static",
		},
		Watch: WatchConfig{
			Paths:      []string{"."},
			Extensions: []string{".go", ".sql", ".yaml"},
			Ignored:    []string{"node_modules", "vendor"},
			Debounce:   "150ms",
		},
		Output: OutputConfig{
			Types:       "web/src/api-types.ts",
			Client:      "web/src/api-client.ts",
			TypesImport: "./api-types",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            4680,
			ShutdownTimeout: "15s",
			CORSOrigins:     []string{"*"},
			RateLimit:       600,
		},
		Cache: CacheConfig{
			Enabled: true,
			DataDir: ".ferro",
		},
		MCP: MCPConfig{
			Enabled:   false,
			Transport: "stdio",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for values that would fail later in a
// less obvious place.
func (c *YAMLConfig) Validate() error {
	switch c.Source.Driver {
	case "static", "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unknown source driver %q (expected static, postgres, mysql, or sqlite)", c.Source.Driver)
	}
	if c.Source.Driver != "static" && c.Source.DSN == "" {
		return fmt.Errorf("source driver %q requires a dsn", c.Source.Driver)
	}
	if c.Output.Types == "" {
		return fmt.Errorf("output.types must not be empty")
	}
	if c.Output.Client == "" {
		return fmt.Errorf("output.client must not be empty")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
