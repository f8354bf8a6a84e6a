// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raincoat-go/raincoat/internal/config"
	"github.com/raincoat-go/raincoat/internal/issue"
)

// newConfigCommand creates the `raincoat config` command tree.
func newConfigCommand(app *App, flags *runFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect raincoat configuration",
		Long: `Inspect raincoat configuration.

Configuration is read from the first of:
  - the file given with --config
  - ./raincoat.toml
  - the [tool.raincoat] table of ./pyproject.toml

Any key can be overridden from the environment with the RAINCOAT_ prefix,
dots replaced by underscores (e.g. RAINCOAT_PYPI_INDEX_URL). GITHUB_TOKEN
is used when no token is configured. A .env file in the current
directory is loaded first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
			if err != nil {
				return err
			}
			if path == "" {
				path = "(using defaults)"
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App, flags *runFlags) error {
	cfg, path, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		if flags.verbose {
			rendered, _ := issue.Get(issue.ConfigLoadFailedID).Render("dark")
			fmt.Fprint(app.stderr, rendered)
		}
		return err
	}

	data, err := config.Marshal(cfg.Redacted())
	if err != nil {
		return err
	}

	st := newStyles(app.stdout, cfg.Color)
	if path == "" {
		path = st.Subtitle.Render("(using defaults)")
	}
	fmt.Fprintf(app.stdout, "# %s: %s\n", st.Key.Render("Config file"), path)
	_, err = app.stdout.Write(data)
	return err
}
