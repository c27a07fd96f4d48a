package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/eclipse/internal/catalog"
	"github.com/star/eclipse/internal/config"
	"github.com/star/eclipse/internal/eclipse"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath  string
	catalogPath string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "eclipsectl",
		Short:        "Solar eclipse circumstances, paths and shadows",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "engine configuration YAML (defaults when empty)")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "eclipse catalog YAML (builtin catalog when empty)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newListCmd(opts),
		newLocalCmd(opts),
		newPathsCmd(opts),
		newShadowCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func (o *options) logger() *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (o *options) dataset(logger *slog.Logger) (*catalog.Dataset, error) {
	if o.catalogPath == "" {
		return catalog.Builtin(logger)
	}
	f, err := os.Open(o.catalogPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	eclipses, err := catalog.Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", o.catalogPath, err)
	}
	if len(eclipses) == 0 {
		return nil, catalog.ErrEmptyCatalog
	}
	return catalog.NewDataset(o.catalogPath, time.Now().UTC(), eclipses), nil
}

// engine builds the engine of the eclipse named by id.
func (o *options) engine(id string) (*eclipse.Engine, error) {
	logger := o.logger()
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	ds, err := o.dataset(logger)
	if err != nil {
		return nil, err
	}
	e, ok := ds.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownEclipse, id)
	}
	return eclipse.New(e, cfg, logger), nil
}
