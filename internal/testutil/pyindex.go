// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

type (
	// PackageIndex is an in-process package index serving the JSON API
	// for the wheels added to it. It is safe for concurrent use.
	PackageIndex struct {
		t      testing.TB
		server *httptest.Server

		mu       sync.Mutex
		releases map[string]map[string]indexFile // package -> version -> wheel
		blobs    map[string][]byte               // filename -> bytes

		downloads atomic.Int32
	}

	indexFile struct {
		Filename    string            `json:"filename"`
		URL         string            `json:"url"`
		PackageType string            `json:"packagetype"`
		Digests     map[string]string `json:"digests"`
	}
)

// NewPackageIndex starts a PackageIndex that is shut down when the test ends.
func NewPackageIndex(t testing.TB) *PackageIndex {
	t.Helper()

	idx := &PackageIndex{
		t:        t,
		releases: make(map[string]map[string]indexFile),
		blobs:    make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /pypi/{pkg}/json", idx.serveProject)
	mux.HandleFunc("GET /pypi/{pkg}/{version}/json", idx.serveRelease)
	mux.HandleFunc("GET /files/{name}", idx.serveFile)
	idx.server = httptest.NewServer(mux)
	t.Cleanup(idx.server.Close)
	return idx
}

// URL returns the base URL of the index.
func (idx *PackageIndex) URL() string {
	return idx.server.URL
}

// Downloads returns how many distribution files have been served.
func (idx *PackageIndex) Downloads() int {
	return int(idx.downloads.Load())
}

// AddWheel publishes pkg==version as a wheel holding files.
func (idx *PackageIndex) AddWheel(pkg, version string, files map[string]string) {
	idx.t.Helper()

	blob := BuildWheel(idx.t, files)
	sum := sha256.Sum256(blob)
	name := fmt.Sprintf("%s-%s-py3-none-any.whl", pkg, version)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.releases[pkg] == nil {
		idx.releases[pkg] = make(map[string]indexFile)
	}
	idx.releases[pkg][version] = indexFile{
		Filename:    name,
		URL:         idx.server.URL + "/files/" + name,
		PackageType: "bdist_wheel",
		Digests:     map[string]string{"sha256": hex.EncodeToString(sum[:])},
	}
	idx.blobs[name] = blob
}

func (idx *PackageIndex) serveProject(w http.ResponseWriter, r *http.Request) {
	idx.mu.Lock()
	versions, ok := idx.releases[r.PathValue("pkg")]
	project := map[string]map[string][]indexFile{"releases": {}}
	for v, f := range versions {
		project["releases"][v] = []indexFile{f}
	}
	idx.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	idx.writeJSON(w, project)
}

func (idx *PackageIndex) serveRelease(w http.ResponseWriter, r *http.Request) {
	idx.mu.Lock()
	f, ok := idx.releases[r.PathValue("pkg")][r.PathValue("version")]
	idx.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	idx.writeJSON(w, map[string][]indexFile{"urls": {f}})
}

func (idx *PackageIndex) serveFile(w http.ResponseWriter, r *http.Request) {
	idx.mu.Lock()
	blob, ok := idx.blobs[r.PathValue("name")]
	idx.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	idx.downloads.Add(1)
	_, _ = w.Write(blob)
}

func (idx *PackageIndex) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		idx.t.Errorf("encoding index response: %v", err)
	}
}

// BuildWheel returns the bytes of a zip archive holding files.
func BuildWheel(t testing.TB, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
