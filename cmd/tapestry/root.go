package main

import (
	"fmt"
	"os"

	"github.com/aretw0/tapestry/internal/cli"
	"github.com/aretw0/tapestry/internal/config"
	"github.com/spf13/cobra"
)

var (
	settings = config.New()
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:           "tapestry",
	Short:         "Tapestry is a headless interactive command engine",
	Long:          `Tapestry runs multi-step editing commands over a network model with undo/redo, pointer modes and background jobs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(settings, path)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRuntime builds the shared components for the loaded configuration.
func newRuntime() (*cli.Runtime, error) {
	return cli.NewRuntime(cfg)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./tapestry.yaml when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (empty disables logging)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("journal", "", "Journal backend: memory, file or redis")
	_ = settings.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = settings.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = settings.BindPFlag("journal.backend", rootCmd.PersistentFlags().Lookup("journal"))
}
