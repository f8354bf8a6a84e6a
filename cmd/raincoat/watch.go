// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raincoat-go/raincoat/internal/watch"
)

func newWatchCommand(app *App, flags *runFlags) *cobra.Command {
	var debounce time.Duration

	watchCmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Check again whenever a Python file changes",
		Long: `Run a check, then run it again each time a Python file below path
changes. Every run starts from fresh lookups. Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), app, flags, args, debounce)
		},
	}
	watchCmd.Flags().StringSliceVarP(&flags.kinds, "kind", "k", nil, "only check matches of these kinds, repeatable")
	watchCmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before checking again")
	return watchCmd
}

func runWatch(ctx context.Context, app *App, flags *runFlags, args []string, debounce time.Duration) error {
	r, err := app.newRun(ctx, flags)
	if err != nil {
		return err
	}
	root := r.cfg.Path
	if len(args) == 1 {
		root = args[0]
	}

	rerun := func(ctx context.Context) error {
		r, err := app.newRun(ctx, flags)
		if err != nil {
			return err
		}
		st := newStyles(app.stdout, r.cfg.Color)
		reported, err := app.check(ctx, r, flags, []string{root})
		if err != nil {
			return err
		}
		if reported == 0 {
			fmt.Fprintln(app.stdout, st.Success.Render("✓ nothing to report"))
		}
		return nil
	}

	w, err := watch.New(watch.Config{
		Root:     root,
		Exclude:  r.cfg.Exclude,
		Debounce: debounce,
		Logger:   r.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			r.logger.Info("checking again", "changed", len(changed))
			return rerun(ctx)
		},
	})
	if err != nil {
		return err
	}

	if err := rerun(ctx); err != nil {
		return err
	}
	r.logger.Info("watching for changes", "root", root)
	return w.Run(ctx)
}
