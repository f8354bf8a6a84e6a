// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raincoat-go/raincoat/pkg/types"
)

func newListCommand(app *App, flags *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list [path...]",
		Short: "List the Raincoat comments found, without checking them",
		Long: `List every recognized Raincoat comment below the given paths.

Nothing is downloaded: use it to review what a check would cover.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.newRun(cmd.Context(), flags)
			if err != nil {
				return err
			}
			runner, err := r.runner(nil)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{r.cfg.Path}
			}

			st := newStyles(app.stdout, r.cfg.Color)
			failed := false
			for _, root := range args {
				for m, err := range runner.Matches(root) {
					if err != nil {
						failed = true
						fmt.Fprintln(app.stderr, st.Error.Render("Error: ")+formatErrorForDisplay(err, flags.verbose))
						continue
					}
					fmt.Fprintf(app.stdout, "%s %s %s\n",
						st.Subtitle.Render(m.Location().String()), st.Key.Render(m.Kind()), m)
				}
			}
			if failed {
				cmd.SilenceUsage = true
				cmd.SilenceErrors = true
				return &ExitError{Code: types.ExitReported}
			}
			return nil
		},
	}
}
