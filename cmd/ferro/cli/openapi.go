package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferrostack/ferro/internal/descriptor"
	"github.com/ferrostack/ferro/internal/introspect"
	"github.com/ferrostack/ferro/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate an OpenAPI 3.1 specification from the catalog",
		Long: `Introspect the configured source and emit an OpenAPI 3.1 document for
the normalized catalog. Unlike the generated TypeScript client, the document
describes every accepted method of a multi-method endpoint.`,
		Example: `  ferro openapi                  # spec to stdout
  ferro openapi -o openapi.json  # write to file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}

func runOpenAPI(outputFile string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	models, routes, closeSource, err := buildRegistries(cfg)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}
	defer closeSource()

	ctx := context.Background()
	catalog := descriptor.NewCatalog()
	report := &introspect.Report{}

	if err := introspect.Models(ctx, models, catalog, report); err != nil {
		return fmt.Errorf("introspect models: %w", err)
	}
	if err := introspect.Endpoints(ctx, routes, catalog, report); err != nil {
		return fmt.Errorf("introspect endpoints: %w", err)
	}
	report.Log(logger)

	doc := openapi.Generate(catalog, cfg.Server.BaseURL)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0644); err != nil {
			return fmt.Errorf("write spec: %w", err)
		}
		logger.Info("OpenAPI spec written", "path", outputFile)
		return nil
	}

	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
