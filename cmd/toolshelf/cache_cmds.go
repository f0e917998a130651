package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolshelf/offline"
	"github.com/jonwraymond/toolshelf/resilience"
)

func newCacheCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the offline asset cache",
	}
	cmd.AddCommand(
		newCacheInstallCmd(opts),
		newCacheActivateCmd(opts),
		newCacheUpdateCmd(opts),
		newCacheStatusCmd(opts),
	)
	return cmd
}

func newCacheInstallCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download every manifest asset into the static cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				w, err := a.newWorker()
				if err != nil {
					return err
				}
				if err := w.Install(cmd.Context()); err != nil {
					return err
				}
				cfg := w.Config()
				fmt.Fprintf(cmd.OutOrStdout(), "installed %d assets into %s\n", len(cfg.Manifest), cfg.StaticCache())
				return nil
			})
		},
	}
}

func newCacheActivateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Activate the installed version and delete caches of older versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				w, err := a.newWorker()
				if err != nil {
					return err
				}
				if err := a.reg.Activate(cmd.Context(), w); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "activated %s\n", w.Config().Version)
				return nil
			})
		},
	}
}

func newCacheUpdateCmd(opts *cliOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Install and activate the configured version unless it is already active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				restored, err := a.prepareOffline(cmd.Context(), force)
				if err != nil {
					return err
				}
				version := a.cfg.Offline.Version
				if restored {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already active\n", version)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated to %s\n", version)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reinstall even when the version is already active")
	return cmd
}

func newCacheStatusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active version and every stored cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.restoreWorker(cmd.Context()); err != nil {
					return err
				}
				st, err := a.reg.Status(cmd.Context())
				if err != nil {
					return err
				}
				return printStatus(cmd.OutOrStdout(), st)
			})
		},
	}
}

func printStatus(out io.Writer, st offline.Status) error {
	if st.Version == "" {
		fmt.Fprintln(out, "active: none")
	} else {
		fmt.Fprintf(out, "active: %s (%s)\n", st.Version, st.State)
	}

	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	for _, c := range st.Caches {
		mark := " "
		if c.Current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d entries\n", mark, c.Name, c.Entries)
	}
	return tw.Flush()
}

// prepareOffline makes the configured version active. It restores the last
// activated version when possible and installs otherwise. The whole
// operation is bounded by the offline fetch timeout per manifest batch.
func (a *app) prepareOffline(ctx context.Context, force bool) (restored bool, err error) {
	if !force {
		restored, err = a.restoreWorker(ctx)
		if err != nil || restored {
			return restored, err
		}
	}

	w, err := a.newWorker()
	if err != nil {
		return false, err
	}
	cfg := w.Config()
	batches := (len(cfg.Manifest) + cfg.InstallConcurrency - 1) / cfg.InstallConcurrency
	exec := resilience.NewExecutor(resilience.WithTimeout(time.Duration(batches+1) * cfg.FetchTimeout))
	return false, exec.Execute(ctx, func(ctx context.Context) error {
		return a.reg.Update(ctx, w)
	})
}
