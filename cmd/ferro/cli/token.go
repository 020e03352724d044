package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferrostack/ferro/internal/server/middleware"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a sync trigger token",
		Long: `Mint a short-lived JWT authorizing POST /_ferro/sync against a server
running with a trigger secret. The secret comes from the config file or the
FERRO_TRIGGER_SECRET environment variable.`,
		Example: `  ferro token                 # 1 hour token
  ferro token --ttl 15m       # 15 minute token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, ttl)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}

func runToken(cmd *cobra.Command, ttl time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.TriggerSecret == "" {
		return fmt.Errorf("no trigger secret configured; set server.trigger_secret or FERRO_TRIGGER_SECRET")
	}

	token, err := middleware.SignTriggerToken(cfg.Server.TriggerSecret, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
