package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	devMode bool
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ferro",
		Short: "Keep frontend types in sync with your backend API",
		Long: `Ferro: keep frontend TypeScript types in sync with your backend API.

Ferro introspects your backend's models and route handlers, normalizes them
into a catalog, and generates TypeScript interfaces and a typed API client.
It can run once, watch source files and regenerate on change, and serve the
catalog over HTTP for runtime metadata consumers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ferro.yaml)")
	cmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Enable debug logging")

	cobra.OnInitialize(initConfig)

	// Add subcommands
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ferro")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.ferro")
	}

	viper.SetEnvPrefix("FERRO")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
