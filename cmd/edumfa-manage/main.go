package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/config"
)

// Global configuration instance
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "edumfa-manage",
	Short: "Manage eduMFA resolvers, realms, users and configuration",
	Long: `Manage eduMFA resolvers, realms, users and configuration.

If no config file is specified, the following locations are searched:
  - ./config.yaml
  - ./config/config.yaml
  - /etc/edumfa/config.yaml`,
	SilenceUsage:      true,
	PersistentPreRunE: preRunConfigE,
}

// loadConfig loads the configuration based on the --config flag or default locations
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	return config.Load(configFile)
}

func preRunConfigE(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err == nil && verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if database, err := cmd.Flags().GetString("database"); err == nil && len(database) > 0 {
		cfg.Database.DSN = database
	}

	return nil
}

// runWithServices initializes the services for the duration of one command.
func runWithServices(run func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := common.WithInterrupt(cmd.Context())
		defer cancel()

		services, err := cfg.Initialize(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer func() {
			if err := services.Close(); err != nil {
				logrus.WithError(err).Warnln("Failed to close services")
			}
		}()

		services.Manager.In = cmd.InOrStdin()
		services.Manager.Out = cmd.OutOrStdout()
		services.Manager.Err = cmd.ErrOrStderr()

		return run(ctx, cmd, args, services)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (optional)")
	rootCmd.PersistentFlags().StringP("database", "d", "", "Path to the configuration database (overrides database.dsn)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
