// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for raincoat.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/raincoat-go/raincoat/internal/config"
	"github.com/raincoat-go/raincoat/internal/issue"
	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/parse"
	"github.com/raincoat-go/raincoat/internal/source"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

func init() {
	issue.Register(issue.MisconfiguredCommentID, match.ErrMisconfigured)
	issue.Register(issue.RateLimitedID, source.ErrRateLimited)
	issue.Register(issue.UnsupportedArchiveID, source.ErrUnsupportedArchive)
	issue.Register(issue.ConfigLoadFailedID, config.ErrInvalidConfig)
	issue.Register(issue.SyntaxErrorID, parse.ErrSyntax)
}

// NewRootCommand builds the command tree. The root command runs the check.
func NewRootCommand(app *App) *cobra.Command {
	flags := &runFlags{}

	rootCmd := &cobra.Command{
		Use:   "raincoat [path...]",
		Short: "Find outdated copies of third-party code",
		Long: `Raincoat has you covered when your code is not DRY.

Code copied from a dependency is marked with a comment naming where it
came from and at which version:

  # Raincoat: pypi package: requests==2.31.0 path: requests/sessions.py element: Session.send
  # Raincoat: pygithub repo: psf/requests@a1b2c3d path: src/requests/api.py element: get
  # Raincoat: git url: https://example.com/lib.git@v1.0.0 path: lib/util.py
  # Raincoat: django ticket: #26976

raincoat reads every Python file below the given paths (default: the
configured path, "."), compares each marked element between the pinned
and the current version and reports what changed. The exit status is 1
when anything was reported.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, app, flags, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default is ./raincoat.toml, then [tool.raincoat] in ./pyproject.toml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringSliceVarP(&flags.exclude, "exclude", "e", nil, "glob of files and folders to exclude (e.g. 'test_*'), repeatable")
	pf.StringVar(&flags.color, "color", "", "colorize output: auto, always or never (default from config)")
	rootCmd.Flags().StringSliceVarP(&flags.kinds, "kind", "k", nil, "only check matches of these kinds, repeatable")

	rootCmd.AddCommand(newListCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))
	rootCmd.AddCommand(newWatchCommand(app, flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command tree and exits with its status.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		os.Exit(exitStatus(err))
	}
}

// handleError prints err unless it only carries an exit status: findings
// and run errors have already been reported.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
