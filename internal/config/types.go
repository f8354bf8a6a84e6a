// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// ColorAuto colors output when writing to a terminal.
	ColorAuto ColorMode = "auto"
	// ColorAlways always colors output.
	ColorAlways ColorMode = "always"
	// ColorNever never colors output.
	ColorNever ColorMode = "never"

	// DiffDefault compares code line by line.
	DiffDefault DiffStrategy = "default"
	// DiffPython compares the syntax trees of Python code, ignoring
	// formatting and comments.
	DiffPython DiffStrategy = "python"

	redactedToken = "********"
)

var (
	// ErrInvalidColorMode is returned when a ColorMode value is not recognized.
	ErrInvalidColorMode = errors.New("invalid color mode")
	// ErrInvalidDiffStrategy is returned when a DiffStrategy value is not recognized.
	ErrInvalidDiffStrategy = errors.New("invalid diff strategy")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorMode selects when output is colored.
	ColorMode string

	// InvalidColorModeError is returned when a ColorMode value is not recognized.
	// It wraps ErrInvalidColorMode for errors.Is() compatibility.
	InvalidColorModeError struct {
		Value ColorMode
	}

	// DiffStrategy selects how pinned and current code are compared.
	DiffStrategy string

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Path is the file or directory scanned for marker comments.
		Path string `toml:"path" mapstructure:"path"`
		// Exclude lists glob patterns of paths that are never read.
		Exclude []string `toml:"exclude" mapstructure:"exclude"`
		// Color selects when output is colored.
		Color ColorMode `toml:"color" mapstructure:"color"`
		// Marker is the word introducing marker comments.
		Marker string `toml:"marker" mapstructure:"marker"`
		// Concurrency bounds parallel lookups and downloads.
		Concurrency int `toml:"concurrency" mapstructure:"concurrency"`
		// Diff selects how code is compared.
		Diff DiffStrategy `toml:"diff" mapstructure:"diff"`

		PyPI         PyPIConfig         `toml:"pypi" mapstructure:"pypi"`
		GitHub       GitHubConfig       `toml:"github" mapstructure:"github"`
		IssueTracker IssueTrackerConfig `toml:"issue_tracker" mapstructure:"issue_tracker"`
		HTTP         HTTPConfig         `toml:"http" mapstructure:"http"`
	}

	// PyPIConfig configures the package index and installed packages.
	PyPIConfig struct {
		IndexURL string `toml:"index_url" mapstructure:"index_url"`
		// SitePackages are searched, in order, for installed distributions.
		SitePackages []string `toml:"site_packages" mapstructure:"site_packages"`
		PreferSdist  bool     `toml:"prefer_sdist" mapstructure:"prefer_sdist"`
		// MatchWheel is a glob a wheel filename must match to be used.
		MatchWheel string `toml:"match_wheel" mapstructure:"match_wheel"`
	}

	// GitHubConfig configures the GitHub API client.
	GitHubConfig struct {
		APIURL string `toml:"api_url" mapstructure:"api_url"`
		RawURL string `toml:"raw_url" mapstructure:"raw_url"`
		// Token is sent as a bearer token, or as basic auth when of the form user:token.
		Token string `toml:"token" mapstructure:"token"`
	}

	// IssueTrackerConfig names the repository searched for ticket fixes.
	IssueTrackerConfig struct {
		Repo    string `toml:"repo" mapstructure:"repo"`
		Package string `toml:"package" mapstructure:"package"`
	}

	// HTTPConfig configures outgoing requests.
	HTTPConfig struct {
		Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:        ".",
		Exclude:     []string{},
		Color:       ColorAuto,
		Marker:      "Raincoat",
		Concurrency: 4,
		Diff:        DiffDefault,
		PyPI: PyPIConfig{
			IndexURL:     "https://pypi.org",
			SitePackages: []string{},
			MatchWheel:   "*",
		},
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
			RawURL: "https://raw.githubusercontent.com",
		},
		IssueTracker: IssueTrackerConfig{
			Repo:    "django/django",
			Package: "django",
		},
		HTTP: HTTPConfig{Timeout: 30 * time.Second},
	}
}

// String returns the string representation of the ColorMode.
func (m ColorMode) String() string { return string(m) }

// IsValid returns whether the ColorMode is one of the defined modes,
// and a list of validation errors if it is not.
func (m ColorMode) IsValid() (bool, []error) {
	switch m {
	case ColorAuto, ColorAlways, ColorNever:
		return true, nil
	default:
		return false, []error{&InvalidColorModeError{Value: m}}
	}
}

// Error implements the error interface.
func (e *InvalidColorModeError) Error() string {
	return fmt.Sprintf("invalid color mode %q (valid: auto, always, never)", e.Value)
}

// Unwrap returns ErrInvalidColorMode for errors.Is() compatibility.
func (e *InvalidColorModeError) Unwrap() error { return ErrInvalidColorMode }

// IsValid reports whether s is a known strategy.
func (s DiffStrategy) IsValid() (bool, []error) {
	switch s {
	case DiffDefault, DiffPython:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w %q (valid: default, python)", ErrInvalidDiffStrategy, string(s))}
	}
}

// IsValid returns whether the Config has valid fields.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Color.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Diff.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if strings.TrimSpace(c.Marker) == "" {
		errs = append(errs, errors.New("marker must not be empty"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout))
	}
	for _, pat := range c.Exclude {
		if !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("exclude: invalid pattern %q", pat))
		}
	}
	if !doublestar.ValidatePattern(c.PyPI.MatchWheel) {
		errs = append(errs, fmt.Errorf("pypi.match_wheel: invalid pattern %q", c.PyPI.MatchWheel))
	}
	if strings.Count(c.IssueTracker.Repo, "/") != 1 {
		errs = append(errs, fmt.Errorf("issue_tracker.repo must be owner/name, got %q", c.IssueTracker.Repo))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Redacted returns a copy of c with the GitHub token masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.GitHub.Token != "" {
		out.GitHub.Token = redactedToken
	}
	return &out
}
