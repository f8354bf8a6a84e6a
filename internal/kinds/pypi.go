// SPDX-License-Identifier: MPL-2.0

package kinds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raincoat-go/raincoat/internal/check"
	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/source"
)

type (
	// PyPIMatch points at code in a distribution published on a package index.
	//
	//	# Raincoat: pypi package: umbrella==1.0 path: umbrella/__init__.py element: Umbrella.open
	PyPIMatch struct {
		codeLocation
		Package string
		Version string
	}

	pypiBinding struct {
		index     *source.PyPIClient
		installed *source.SitePackages
	}
)

func pypiKind(deps Deps) match.Kind {
	b := &pypiBinding{index: deps.PyPI, installed: deps.Installed}
	return match.Kind{
		Name:  KindPyPI,
		Parse: parsePyPI,
		NewChecker: func(env match.Env) match.Checker {
			return check.New(b, env)
		},
	}
}

func parsePyPI(loc match.Location, args match.Args) (match.Match, error) {
	pkg, err := args.Require("package")
	if err != nil {
		return nil, err
	}
	name, version, ok := strings.Cut(strings.TrimSpace(pkg), "==")
	if !ok || name == "" || version == "" || strings.ContainsAny(name+version, "=<>!~") {
		return nil, fmt.Errorf("%w: package %q is not of the form name==version", match.ErrNotMatching, pkg)
	}
	cl, err := newCodeLocation(loc, args)
	if err != nil {
		return nil, err
	}
	return &PyPIMatch{codeLocation: cl, Package: name, Version: version}, nil
}

// Kind implements match.Match.
func (m *PyPIMatch) Kind() string { return KindPyPI }

// Origin implements check.CodeMatch.
func (m *PyPIMatch) Origin() string { return m.Package }

// Pinned implements check.CodeMatch.
func (m *PyPIMatch) Pinned() string { return m.Version }

func (m *PyPIMatch) String() string {
	vs := ""
	if m.current != "" {
		vs = " vs " + m.current
	}
	return fmt.Sprintf("%s == %s%s @ %s (from %s)", m.Package, m.Version, vs, m.target(), m.loc)
}

func (b *pypiBinding) Name() string { return KindPyPI }

func (b *pypiBinding) PinnedKey(m check.CodeMatch) source.FetchKey {
	return source.FetchKey{Origin: m.Origin(), Version: m.Pinned()}
}

// CurrentKey prefers the locally installed version and falls back to the
// latest version on the index.
func (b *pypiBinding) CurrentKey(ctx context.Context, m check.CodeMatch) (source.FetchKey, error) {
	return b.current(ctx, m.Origin())
}

func (b *pypiBinding) current(ctx context.Context, pkg string) (source.FetchKey, error) {
	if b.installed != nil {
		version, err := b.installed.Version(pkg)
		if err == nil {
			return source.FetchKey{Origin: pkg, Version: version, Installed: true}, nil
		}
		if !errors.Is(err, source.ErrNotInstalled) {
			return source.FetchKey{}, err
		}
	}

	version, err := b.index.LatestVersion(ctx, pkg)
	if err != nil {
		return source.FetchKey{}, err
	}
	return source.FetchKey{Origin: pkg, Version: version}, nil
}

func (b *pypiBinding) Fetch(ctx context.Context, key source.FetchKey, paths []string) (map[string]source.Text, error) {
	if key.Installed {
		return b.installed.Read(key.Origin, paths)
	}
	return b.index.Fetch(ctx, key.Origin, key.Version, paths)
}
