package retriever

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"liberator/internal/snapshot"
)

// ErrUnsupportedArchive is returned when the upload is neither zip nor tar.gz.
var ErrUnsupportedArchive = errors.New("retriever: unsupported archive format")

const maxArchiveFileSize = 16 << 20

// ExtractArchive decodes an uploaded project archive (zip or tar.gz) into a
// snapshot. No network calls are made; a corrupt archive is a single terminal
// error. Entries escaping the archive root are rejected.
func ExtractArchive(data []byte) (*snapshot.Snapshot, error) {
	var (
		snap *snapshot.Snapshot
		err  error
	)
	switch {
	case len(data) >= 4 && bytes.HasPrefix(data, []byte("PK\x03\x04")):
		snap, err = extractZip(data)
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		snap, err = extractTarGz(data)
	default:
		return nil, ErrUnsupportedArchive
	}
	if err != nil {
		return nil, err
	}
	return stripCommonRoot(snap), nil
}

// stripCommonRoot removes a single wrapper directory shared by every entry,
// the layout produced by "download as zip" exports.
func stripCommonRoot(snap *snapshot.Snapshot) *snapshot.Snapshot {
	paths := snap.Paths()
	if len(paths) == 0 {
		return snap
	}
	root := ""
	for i, p := range paths {
		seg, rest, ok := strings.Cut(p, "/")
		if !ok || rest == "" {
			return snap
		}
		if i == 0 {
			root = seg
		} else if seg != root {
			return snap
		}
	}
	out := snapshot.New()
	for _, p := range paths {
		e, _ := snap.Get(p)
		e.Path = strings.TrimPrefix(p, root+"/")
		out.Add(e)
	}
	return out
}

func extractZip(data []byte) (*snapshot.Snapshot, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("retriever: open zip: %w", err)
	}
	snap := snapshot.New()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel, err := archiveRelPath(f.Name)
		if err != nil {
			return nil, err
		}
		if rel == "" || !WantPath(rel) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("retriever: open zip entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxArchiveFileSize))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("retriever: read zip entry %s: %w", f.Name, err)
		}
		snap.Add(snapshot.FileEntry{Path: rel, Content: content})
	}
	return snap, nil
}

func extractTarGz(data []byte) (*snapshot.Snapshot, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("retriever: open gzip: %w", err)
	}
	defer gz.Close()

	snap := snapshot.New()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("retriever: read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		rel, err := archiveRelPath(hdr.Name)
		if err != nil {
			return nil, err
		}
		if rel == "" || !WantPath(rel) {
			continue
		}
		content, err := io.ReadAll(io.LimitReader(tr, maxArchiveFileSize))
		if err != nil {
			return nil, fmt.Errorf("retriever: read tar entry %s: %w", hdr.Name, err)
		}
		snap.Add(snapshot.FileEntry{Path: rel, Content: content})
	}
	return snap, nil
}

// archiveRelPath normalizes an archive entry name and rejects traversal.
func archiveRelPath(name string) (string, error) {
	p := snapshot.NormalizePath(name)
	if p == "" {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("retriever: archive entry escapes root: %q", name)
		}
	}
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("retriever: archive entry has absolute path: %q", name)
	}
	return p, nil
}
