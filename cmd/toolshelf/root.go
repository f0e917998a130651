package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolshelf/config"
)

type cliOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "toolshelf",
		Short:         "Browse a directory of tool links with favorites and an offline cache",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "enable logging at this level (debug|info|warn|error)")

	root.AddCommand(
		newListCmd(opts),
		newFavCmd(opts),
		newOpenCmd(opts),
		newBrowseCmd(opts),
		newCacheCmd(opts),
		newServeCmd(opts),
	)
	return root
}

func (o *cliOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Observe.Logging.Enabled = true
		cfg.Observe.Logging.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// withApp loads the configuration, builds the app, runs fn and releases
// everything the app opened.
func withApp(cmd *cobra.Command, opts *cliOptions, fn func(a *app) error) (err error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(cmd.Context()); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
