package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/antenna-tracker/internal/config"
	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/kb"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configFile string
	defaults   config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{defaults: config.Default()}

	root := &cobra.Command{
		Use:           "tracker",
		Short:         "Point an alt-az antenna at a celestial target and keep it there",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (yaml, toml or json).")
	opts.defaults.AddFlags(root.PersistentFlags())

	root.AddCommand(
		newTrackCmd(opts),
		newTimeCmd(opts),
		newCatalogCmd(opts),
		newLocateCmd(opts),
		newSessionsCmd(opts),
	)
	return root
}

// load resolves the configuration for cmd, including inherited flags.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), o.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
}

func loadCatalog(cfg config.Config) (*kb.Catalog, error) {
	if cfg.Target.CatalogFile == "" {
		return kb.DefaultCatalog()
	}
	catalog := kb.NewCatalog()
	if err := catalog.LoadFile(cfg.Target.CatalogFile); err != nil {
		return nil, err
	}
	return catalog, nil
}
