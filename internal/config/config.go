// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/raincoat-go/raincoat/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "raincoat"
	// ConfigFileName is the name of the dedicated config file.
	ConfigFileName = "raincoat.toml"
	// PyProjectFileName is the name of the Python project file whose
	// [tool.raincoat] table is read when no dedicated file exists.
	PyProjectFileName = "pyproject.toml"
	// EnvPrefix prefixes environment variable overrides.
	EnvPrefix = "RAINCOAT"
	// GitHubTokenEnv is read when no token is configured.
	GitHubTokenEnv = "GITHUB_TOKEN"

	// maxConfigFileSize bounds the config files read.
	maxConfigFileSize = 1 << 20
)

// ErrNoToolTable is returned when an explicitly named pyproject.toml has
// no [tool.raincoat] table.
var ErrNoToolTable = errors.New("no [tool.raincoat] table")

// Load reads configuration with the default provider.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return NewProvider().Load(ctx, opts)
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	dir := opts.ProjectDir
	if dir == "" {
		dir = "."
	}

	if err := loadDotenv(filepath.Join(dir, ".env")); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("load environment file").
			WithResource(filepath.Join(dir, ".env")).
			WithSuggestion("Check that every line is KEY=value").
			Wrap(err).
			BuildError()
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	switch {
	case opts.ConfigFilePath != "":
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'raincoat config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadTOMLIntoViper(v, opts.ConfigFilePath, true); err != nil {
			return nil, "", fileError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	default:
		for _, name := range []string{ConfigFileName, PyProjectFileName} {
			path := filepath.Join(dir, name)
			if !fileExists(path) {
				continue
			}
			err := loadTOMLIntoViper(v, path, false)
			if errors.Is(err, ErrNoToolTable) {
				continue
			}
			if err != nil {
				return nil, "", fileError(path, err)
			}
			resolvedPath = path
			break
		}
		// If no config file found, use defaults (no error)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check the value types, e.g. concurrency = 4 and timeout = \"30s\"").
			Wrap(fmt.Errorf("failed to parse config: %w", err)).
			BuildError()
	}
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv(GitHubTokenEnv)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Use 'raincoat config show' to see the effective values").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("path", defaults.Path)
	v.SetDefault("exclude", defaults.Exclude)
	v.SetDefault("color", string(defaults.Color))
	v.SetDefault("marker", defaults.Marker)
	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("diff", string(defaults.Diff))
	v.SetDefault("pypi.index_url", defaults.PyPI.IndexURL)
	v.SetDefault("pypi.site_packages", defaults.PyPI.SitePackages)
	v.SetDefault("pypi.prefer_sdist", defaults.PyPI.PreferSdist)
	v.SetDefault("pypi.match_wheel", defaults.PyPI.MatchWheel)
	v.SetDefault("github.api_url", defaults.GitHub.APIURL)
	v.SetDefault("github.raw_url", defaults.GitHub.RawURL)
	v.SetDefault("github.token", defaults.GitHub.Token)
	v.SetDefault("issue_tracker.repo", defaults.IssueTracker.Repo)
	v.SetDefault("issue_tracker.package", defaults.IssueTracker.Package)
	v.SetDefault("http.timeout", defaults.HTTP.Timeout)
}

// loadTOMLIntoViper decodes a TOML file and merges it into Viper,
// preserving defaults and environment overrides. A pyproject.toml
// contributes its [tool.raincoat] table only; when the table is missing
// ErrNoToolTable is returned, unless required is false and the file is
// simply skipped by the caller.
func loadTOMLIntoViper(v *viper.Viper, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("config file is larger than %d bytes", maxConfigFileSize)
	}

	var doc map[string]any
	dec := toml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("%s:%d:%d: %s", path, row, col, derr.Error())
		}
		return err
	}

	if filepath.Base(path) == PyProjectFileName {
		table, ok := toolTable(doc)
		if !ok {
			if required {
				return fmt.Errorf("%s: %w", path, ErrNoToolTable)
			}
			return ErrNoToolTable
		}
		doc = table
	}

	if err := v.MergeConfigMap(doc); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// toolTable returns the [tool.raincoat] table of a pyproject document.
func toolTable(doc map[string]any) (map[string]any, bool) {
	tool, ok := doc["tool"].(map[string]any)
	if !ok {
		return nil, false
	}
	table, ok := tool[AppName].(map[string]any)
	return table, ok
}

// loadDotenv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func fileError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid TOML syntax").
		WithSuggestion("See 'raincoat config --help' for configuration options").
		Wrap(err).
		BuildError()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// Marshal renders cfg as a TOML document that Load reads back.
// Durations are written in their string form.
func Marshal(cfg *Config) ([]byte, error) {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	if httpTable, ok := doc["http"].(map[string]any); ok {
		httpTable["timeout"] = cfg.HTTP.Timeout.String()
	}

	var buf bytes.Buffer
	buf.WriteString("# Raincoat configuration\n\n")
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	return buf.Bytes(), nil
}
