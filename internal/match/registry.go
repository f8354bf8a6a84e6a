// SPDX-License-Identifier: MPL-2.0

package match

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
)

// Registry maps kind names to their descriptors. It is built once and
// never modified afterwards.
type Registry struct {
	kinds map[string]Kind
	names []string
}

// NewRegistry builds a Registry from kinds in order. When two kinds share
// a name the later one wins and a warning is logged.
func NewRegistry(logger *log.Logger, kinds ...Kind) *Registry {
	r := &Registry{kinds: make(map[string]Kind, len(kinds))}
	for _, k := range kinds {
		if _, dup := r.kinds[k.Name]; dup {
			if logger != nil {
				logger.Warn("several match kinds registered under one name, the last one is used", "kind", k.Name)
			}
		} else {
			r.names = append(r.names, k.Name)
		}
		r.kinds[k.Name] = k
	}
	slices.Sort(r.names)
	return r
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Names returns the registered kind names in sorted order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Parse builds a match of the named kind.
func (r *Registry) Parse(name string, loc Location, args Args) (Match, error) {
	k, ok := r.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k.Parse(loc, args)
}
