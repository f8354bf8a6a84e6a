// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raincoat-go/raincoat/internal/issue"
	"github.com/raincoat-go/raincoat/internal/match"
)

// runCheck reports every finding and error for the given paths. The run
// never stops on an error; the exit status is 1 when anything was reported.
func runCheck(cmd *cobra.Command, app *App, flags *runFlags, paths []string) error {
	r, err := app.newRun(cmd.Context(), flags)
	if err != nil {
		return err
	}
	reported, err := app.check(cmd.Context(), r, flags, paths)
	if err != nil {
		return err
	}
	if reported > 0 {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
	}
	return exitFor(reported)
}

// check prints the findings and errors of one run and returns how many
// there were. Paths default to the configured path.
func (a *App) check(ctx context.Context, r *run, flags *runFlags, paths []string) (int, error) {
	runner, err := r.runner(flags.kinds)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		paths = []string{r.cfg.Path}
	}

	out := newStyles(a.stdout, r.cfg.Color)
	errOut := newStyles(a.stderr, r.cfg.Color)
	guides := make(map[issue.ID]bool)

	reported := 0
	for _, root := range paths {
		for f, err := range runner.Check(ctx, root) {
			reported++
			if err != nil {
				a.reportError(errOut, err, flags.verbose, guides)
				continue
			}
			fmt.Fprint(a.stdout, renderFinding(out, f))
		}
	}
	return reported, nil
}

// reportError prints err and, in verbose mode, the troubleshooting guide
// for its class the first time that class is seen.
func (a *App) reportError(st styles, err error, verbose bool, shown map[issue.ID]bool) {
	var mis *match.MisconfigurationError
	if errors.As(err, &mis) {
		err = issue.Wrap(err, "check Raincoat comments", mis.Path,
			"Fix the path or element of the comment, or remove the stale comment")
	}
	fmt.Fprintln(a.stderr, st.Error.Render("Error: ")+formatErrorForDisplay(err, verbose))

	if !verbose {
		return
	}
	if i := issue.For(err); i != nil && !shown[i.ID()] {
		shown[i.ID()] = true
		fmt.Fprint(a.stderr, issueGuide(err))
	}
}
