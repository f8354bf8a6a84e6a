// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeIndex serves a minimal package index JSON API for one package.
type fakeIndex struct {
	pkg      string
	releases map[string][]pypiFile
	blobs    map[string][]byte // filename -> bytes
	hits     atomic.Int32
}

func (f *fakeIndex) handler(t *testing.T, srvURL *string) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/"+f.pkg+"/json", func(w http.ResponseWriter, _ *http.Request) {
		f.hits.Add(1)
		if err := json.NewEncoder(w).Encode(pypiProject{Releases: f.releases}); err != nil {
			t.Errorf("encoding project: %v", err)
		}
	})
	mux.HandleFunc("/pypi/"+f.pkg+"/{version}/json", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		files, ok := f.releases[r.PathValue("version")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		for i := range files {
			files[i].URL = *srvURL + "/files/" + files[i].Filename
		}
		if err := json.NewEncoder(w).Encode(pypiRelease{URLs: files}); err != nil {
			t.Errorf("encoding release: %v", err)
		}
	})
	mux.HandleFunc("/files/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		blob, ok := f.blobs[r.PathValue("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(blob)
	})
	return mux
}

func (f *fakeIndex) serve(t *testing.T) *httptest.Server {
	t.Helper()

	var srvURL string
	srv := httptest.NewServer(f.handler(t, &srvURL))
	srvURL = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func digest(b []byte) map[string]string {
	sum := sha256.Sum256(b)
	return map[string]string{"sha256": hex.EncodeToString(sum[:])}
}

func TestSelectLatest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		versions []string
		want     string
		wantErr  error
	}{
		{"numeric not lexicographic", []string{"1.9.0", "1.10.0", "1.2.0"}, "1.10.0", nil},
		{"two component versions", []string{"0.9", "0.10", "0.1"}, "0.10", nil},
		{"prereleases skipped", []string{"1.0.0", "2.0.0-rc.1"}, "1.0.0", nil},
		{"invalid strings skipped", []string{"1.0.0", "latest", "2.0b1x"}, "1.0.0", nil},
		{"v prefix accepted", []string{"v1.0.0", "0.5.0"}, "v1.0.0", nil},
		{"nothing stable", []string{"nightly"}, "", ErrNoVersion},
		{"empty", nil, "", ErrNoVersion},
		{"duplicate highest", []string{"1.0", "1.0.0", "0.1"}, "", ErrAmbiguousVersion},
		{"duplicate below highest is fine", []string{"1.0", "1.0.0", "2.0"}, "2.0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SelectLatest(tt.versions)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SelectLatest(%v) error = %v, want %v", tt.versions, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SelectLatest(%v) = %q, want %q", tt.versions, got, tt.want)
			}
		})
	}
}

func TestPyPIClient_LatestVersion(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{pkg: "umbrella", releases: map[string][]pypiFile{
		"1.0.0": nil, "1.10.0": nil, "1.2.0": nil, "2.0.0a1": nil,
	}}
	srv := idx.serve(t)

	client := NewPyPIClient(WithPyPIBaseURL(srv.URL + "/"))
	got, err := client.LatestVersion(context.Background(), "umbrella")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1.10.0" {
		t.Errorf("LatestVersion = %q, want %q", got, "1.10.0")
	}
}

func TestPyPIClient_LatestVersion_UnknownPackage(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{pkg: "umbrella"}
	srv := idx.serve(t)

	client := NewPyPIClient(WithPyPIBaseURL(srv.URL))
	_, err := client.LatestVersion(context.Background(), "parasol")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
}

func TestPyPIClient_Fetch(t *testing.T) {
	t.Parallel()

	wheel := buildWheel(t, map[string]string{"umbrella/main.py": "from wheel\n"})
	sdist := buildSdist(t, "umbrella-1.0", map[string]string{"umbrella/main.py": "from sdist\n"})

	newIndex := func() *fakeIndex {
		return &fakeIndex{
			pkg: "umbrella",
			releases: map[string][]pypiFile{"1.0": {
				{Filename: "umbrella-1.0.tar.gz", PackageType: PackageTypeSdist, Digests: digest(sdist)},
				{Filename: "umbrella-1.0-py3-none-any.whl", PackageType: PackageTypeWheel, Digests: digest(wheel)},
			}},
			blobs: map[string][]byte{
				"umbrella-1.0.tar.gz":           sdist,
				"umbrella-1.0-py3-none-any.whl": wheel,
			},
		}
	}

	tests := []struct {
		name string
		opts []PyPIOption
		want string
	}{
		{"wheel preferred", nil, "from wheel\n"},
		{"sdist preferred", []PyPIOption{WithPreferSdist(true)}, "from sdist\n"},
		{"no wheel matches glob", []PyPIOption{WithWheelGlob("*cp312*.whl")}, "from sdist\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newIndex().serve(t)
			client := NewPyPIClient(append([]PyPIOption{WithPyPIBaseURL(srv.URL)}, tt.opts...)...)

			got, err := client.Fetch(context.Background(), "umbrella", "1.0", []string{"umbrella/main.py", "umbrella/nope.py"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got["umbrella/main.py"].Equal(Found(tt.want)) {
				t.Errorf("main.py = %+v, want %q", got["umbrella/main.py"], tt.want)
			}
			if got["umbrella/nope.py"].Found {
				t.Error("nope.py should be FileNotFound")
			}
		})
	}
}

func TestPyPIClient_Fetch_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	wheel := buildWheel(t, map[string]string{"umbrella/main.py": "x\n"})
	idx := &fakeIndex{
		pkg: "umbrella",
		releases: map[string][]pypiFile{"1.0": {{
			Filename:    "umbrella-1.0-py3-none-any.whl",
			PackageType: PackageTypeWheel,
			Digests:     map[string]string{"sha256": strings.Repeat("0", 64)},
		}}},
		blobs: map[string][]byte{"umbrella-1.0-py3-none-any.whl": wheel},
	}
	srv := idx.serve(t)

	_, err := NewPyPIClient(WithPyPIBaseURL(srv.URL)).Fetch(context.Background(), "umbrella", "1.0", []string{"umbrella/main.py"})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestPyPIClient_Fetch_NoDistribution(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{
		pkg: "umbrella",
		releases: map[string][]pypiFile{"1.0": {
			{Filename: "umbrella-1.0.exe", PackageType: "bdist_wininst"},
			{Filename: "umbrella-1.0-py3-none-any.whl", PackageType: PackageTypeWheel, Yanked: true},
		}},
	}
	srv := idx.serve(t)

	_, err := NewPyPIClient(WithPyPIBaseURL(srv.URL)).Fetch(context.Background(), "umbrella", "1.0", []string{"a.py"})
	if !errors.Is(err, ErrNoDistribution) {
		t.Fatalf("expected ErrNoDistribution, got %v", err)
	}
}

func TestPyPIClient_UserAgent(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"releases": {"1.0.0": []}}`)
	}))
	defer srv.Close()

	client := NewPyPIClient(WithPyPIBaseURL(srv.URL), WithPyPIUserAgent("raincoat/test"))
	if _, err := client.LatestVersion(context.Background(), "umbrella"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUA != "raincoat/test" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "raincoat/test")
	}
}
