// SPDX-License-Identifier: MPL-2.0

// Package runcache memoizes expensive lookups for the lifetime of one
// check run: current versions, fetched source files and other remote
// values. Concurrent requests for the same key share a single call and
// failures are cached like successes, so no key is ever computed twice.
package runcache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/raincoat-go/raincoat/internal/source"
)

type (
	// Memo caches the outcome of one function call per key.
	// The zero value is ready to use.
	Memo[K comparable, V any] struct {
		mu    sync.Mutex
		done  map[K]outcome[V]
		group singleflight.Group
		calls atomic.Int64
	}

	outcome[V any] struct {
		value V
		err   error
	}

	// FileKey names one file at one fetch key.
	FileKey struct {
		Key  source.FetchKey
		Path string
	}

	// Cache groups the memos shared by every checker of a run.
	Cache struct {
		// Versions maps an origin to the key of its current version.
		Versions Memo[string, source.FetchKey]
		// Files holds every file read so far, or the failure of the fetch
		// that was meant to read it.
		Files Memo[FileKey, source.Text]
		// Fetches maps a BatchKey to the outcome of one source fetch.
		Fetches Memo[string, map[string]source.Text]
		// Values holds any other remote lookup, keyed by a caller-chosen string.
		Values Memo[string, string]
	}
)

// New creates an empty Cache.
func New() *Cache {
	return &Cache{}
}

// Get returns the cached outcome for key, calling fn on the first request.
// Concurrent callers for the same key wait for that single call.
func (m *Memo[K, V]) Get(ctx context.Context, key K, fn func(context.Context) (V, error)) (V, error) {
	if out, ok := m.lookup(key); ok {
		return out.value, out.err
	}

	v, _, _ := m.group.Do(fmt.Sprint(key), func() (any, error) {
		// A concurrent flight for the same key may have completed
		// between lookup and Do.
		if out, ok := m.lookup(key); ok {
			return out, nil
		}

		m.calls.Add(1)
		value, err := fn(ctx)
		out := outcome[V]{value: value, err: err}

		m.mu.Lock()
		if m.done == nil {
			m.done = make(map[K]outcome[V])
		}
		m.done[key] = out
		m.mu.Unlock()
		return out, nil
	})

	out := v.(outcome[V])
	return out.value, out.err
}

// Cached returns the outcome stored for key without computing it. ok is
// false when key was never computed.
func (m *Memo[K, V]) Cached(key K) (value V, ok bool, err error) {
	out, ok := m.lookup(key)
	return out.value, ok, out.err
}

// BatchKey names a fetch of paths at key, independent of path order.
func BatchKey(key source.FetchKey, paths []string) string {
	sorted := slices.Sorted(slices.Values(paths))
	return key.String() + "\x00" + strings.Join(sorted, "\x00")
}

// Calls reports how many times a compute function actually ran.
func (m *Memo[K, V]) Calls() int {
	return int(m.calls.Load())
}

func (m *Memo[K, V]) lookup(key K) (outcome[V], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.done[key]
	return out, ok
}
