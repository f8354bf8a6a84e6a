// SPDX-License-Identifier: MPL-2.0

package source

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// maxMemberBytes bounds the size of a single extracted member (32 MB) to
// protect against decompression bombs.
const maxMemberBytes = 32 << 20

// ArchiveFormat identifies how a distribution archive is read.
type ArchiveFormat string

const (
	// FormatWheel is a zip based wheel, read with random access.
	FormatWheel ArchiveFormat = "wheel"
	// FormatSdist is a gzipped tarball, read as a stream.
	FormatSdist ArchiveFormat = "sdist"
)

// DetectArchiveFormat maps an archive filename to its format using the
// file extension.
func DetectArchiveFormat(name string) (ArchiveFormat, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".whl"), strings.HasSuffix(lower, ".zip"):
		return FormatWheel, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatSdist, nil
	default:
		return "", &UnsupportedArchiveError{Name: name}
	}
}

// OpenArchive reads the requested member paths from the archive at
// archivePath. Paths absent from the archive map to FileNotFound.
func OpenArchive(archivePath string, paths []string) (map[string]Text, error) {
	format, err := DetectArchiveFormat(filepath.Base(archivePath))
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatWheel:
		return readWheel(archivePath, paths)
	case FormatSdist:
		return readSdist(archivePath, paths)
	}
	return nil, &UnsupportedArchiveError{Name: filepath.Base(archivePath)}
}

// readWheel opens a zip archive and reads members by exact name.
func readWheel(archivePath string, paths []string) (map[string]Text, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening wheel %s: %w", filepath.Base(archivePath), err)
	}
	defer func() { _ = zr.Close() }() // read-only archive

	members := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		members[f.Name] = f
	}

	out := notFoundFor(paths)
	for _, p := range uniquePaths(paths) {
		f, ok := members[p]
		if !ok || f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipMember(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s from wheel: %w", p, err)
		}
		out[p] = Found(content)
	}
	return out, nil
}

func readZipMember(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	return readMember(rc, f.Name)
}

// readMember reads r whole, failing rather than truncating when it holds
// more than maxMemberBytes.
func readMember(r io.Reader, name string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxMemberBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxMemberBytes {
		return "", &MemberTooLargeError{Name: name, Limit: maxMemberBytes}
	}
	return string(data), nil
}

// readSdist streams a gzipped tarball. Source distributions nest every
// member under a single top-level directory (name-version/), which is
// taken from the first entry and stripped before matching.
func readSdist(archivePath string, paths []string) (map[string]Text, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening sdist: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()

	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}

	out := notFoundFor(paths)
	remaining := len(wanted)
	topLevel := ""

	tr := tar.NewReader(gz)
	for remaining > 0 {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return nil, fmt.Errorf("reading tar entry: %w", nextErr)
		}

		name := strings.TrimPrefix(path.Clean(hdr.Name), "./")
		if topLevel == "" {
			topLevel, _, _ = strings.Cut(name, "/")
		}

		rel, ok := strings.CutPrefix(name, topLevel+"/")
		if !ok || !wanted[rel] || hdr.Typeflag != tar.TypeReg {
			continue
		}

		content, readErr := readMember(tr, rel)
		if readErr != nil {
			return nil, fmt.Errorf("extracting %s: %w", rel, readErr)
		}
		out[rel] = Found(content)
		delete(wanted, rel)
		remaining--
	}
	return out, nil
}
