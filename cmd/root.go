// Package cmd defines the boamp-console CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/boamp-console/internal/config"
)

type configKeyType string

const configKey configKeyType = "config"

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "boamp-console",
		Short: "Department picker and job console for the BOAMP extraction backend.",
		Long: `boamp-console serves the web console used to pick French departments on a
map, start a BOAMP extraction job and follow it to its results. The run
command drives the same workflow from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Config is loaded once here and handed to subcommands through the
		// command context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, &cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newDepartmentsCmd())
	cmd.AddCommand(newKeywordsCmd())
	return cmd
}

func resolveConfig(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
