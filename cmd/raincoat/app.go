// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/raincoat-go/raincoat/internal/config"
	"github.com/raincoat-go/raincoat/internal/kinds"
	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/parse"
	"github.com/raincoat-go/raincoat/internal/raincoat"
	"github.com/raincoat-go/raincoat/internal/runcache"
	"github.com/raincoat-go/raincoat/internal/source"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App reference.
	App struct {
		Config     config.Provider
		stdout     io.Writer
		stderr     io.Writer
		httpClient *http.Client
		gitOptions []source.GitOption
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
		// HTTPClient is used for every index and GitHub request. By default
		// a client with the configured timeout is built per run.
		HTTPClient *http.Client
		// GitOptions are appended to the options of the git reader.
		GitOptions []source.GitOption
	}

	// runFlags are the command-line overrides of one invocation.
	runFlags struct {
		configPath string
		verbose    bool
		color      string
		exclude    []string
		kinds      []string
	}

	// run holds what one invocation needs once configuration is loaded.
	run struct {
		cfg      *config.Config
		logger   *log.Logger
		registry *match.Registry
		env      match.Env
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config:     deps.Config,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		httpClient: deps.HTTPClient,
		gitOptions: deps.GitOptions,
	}
}

// newRun loads configuration, applies flag overrides and builds the
// source clients and kind registry.
func (a *App) newRun(ctx context.Context, flags *runFlags) (*run, error) {
	cfg, cfgPath, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, err
	}
	if len(flags.exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, flags.exclude...)
	}
	if flags.color != "" {
		cfg.Color = config.ColorMode(flags.color)
		if ok, errs := cfg.Color.IsValid(); !ok {
			return nil, fmt.Errorf("--color: %w", errs[0])
		}
	}

	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName})
	if flags.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if cfgPath != "" {
		logger.Debug("configuration loaded", "file", cfgPath)
	}

	locator, err := parse.NewLocator(parse.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	registry := match.NewRegistry(logger, kinds.Builtin(a.kindDeps(cfg, logger))...)
	return &run{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		env: match.Env{
			Logger:      logger,
			Cache:       runcache.New(),
			Locator:     locator,
			Concurrency: cfg.Concurrency,
			Diff:        string(cfg.Diff),
		},
	}, nil
}

func (a *App) kindDeps(cfg *config.Config, logger *log.Logger) kinds.Deps {
	hc := a.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	ua := config.AppName + "/" + Version

	deps := kinds.Deps{
		PyPI: source.NewPyPIClient(
			source.WithPyPIHTTPClient(hc),
			source.WithPyPIBaseURL(cfg.PyPI.IndexURL),
			source.WithPyPIUserAgent(ua),
			source.WithWheelGlob(cfg.PyPI.MatchWheel),
			source.WithPreferSdist(cfg.PyPI.PreferSdist),
			source.WithPyPILogger(logger),
		),
		GitHub: source.NewGitHubClient(
			source.WithHTTPClient(hc),
			source.WithBaseURL(cfg.GitHub.APIURL),
			source.WithRawURL(cfg.GitHub.RawURL),
			source.WithToken(cfg.GitHub.Token),
			source.WithUserAgent(ua),
			source.WithLogger(logger),
		),
		Git: source.NewGitReader(append([]source.GitOption{source.WithGitLogger(logger)}, a.gitOptions...)...),
		IssueTracker: kinds.IssueTracker{
			Repo:    cfg.IssueTracker.Repo,
			Package: cfg.IssueTracker.Package,
		},
	}
	if len(cfg.PyPI.SitePackages) > 0 {
		deps.Installed = source.NewSitePackages(cfg.PyPI.SitePackages...)
	}
	return deps
}

// runner creates the Runner for this invocation.
func (r *run) runner(kindNames []string) (*raincoat.Runner, error) {
	return raincoat.New(r.registry, r.env, raincoat.Options{
		Exclude: r.cfg.Exclude,
		Marker:  r.cfg.Marker,
		Kinds:   kindNames,
	})
}
