package retriever

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"testing"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func tarGzBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractArchiveZip(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"src/App.jsx":  "export default 1;",
		"package.json": "{}",
		"logo.png":     "binary",
	})
	snap, err := ExtractArchive(data)
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if !snap.Has("src/App.jsx") || !snap.Has("package.json") {
		t.Fatalf("paths = %v", snap.Paths())
	}
	if snap.Has("logo.png") {
		t.Fatal("filter should drop binary assets")
	}
}

func TestExtractArchiveTarGz(t *testing.T) {
	data := tarGzBytes(t, map[string]string{
		"index.html": "<html></html>",
		"src/app.js": "console.log(1);",
	})
	snap, err := ExtractArchive(data)
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("len = %d, paths %v", snap.Len(), snap.Paths())
	}
	e, _ := snap.Get("index.html")
	if string(e.Content) != "<html></html>" {
		t.Fatalf("content = %q", e.Content)
	}
}

func TestExtractArchiveStripsWrapperRoot(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"my-project-main/package.json": "{}",
		"my-project-main/src/App.jsx":  "x",
	})
	snap, err := ExtractArchive(data)
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if !snap.Has("package.json") || !snap.Has("src/App.jsx") {
		t.Fatalf("wrapper root not stripped: %v", snap.Paths())
	}
}

func TestExtractArchiveKeepsMixedRoots(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"a/x.js": "1",
		"b/y.js": "2",
	})
	snap, err := ExtractArchive(data)
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if !snap.Has("a/x.js") || !snap.Has("b/y.js") {
		t.Fatalf("mixed roots must stay intact: %v", snap.Paths())
	}
}

func TestExtractArchiveRejectsTraversal(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"../escape.js": "evil",
	})
	if _, err := ExtractArchive(data); err == nil {
		t.Fatal("expected traversal rejection")
	}
}

func TestExtractArchiveUnsupportedFormat(t *testing.T) {
	_, err := ExtractArchive([]byte("plain text, not an archive"))
	if !errors.Is(err, ErrUnsupportedArchive) {
		t.Fatalf("err = %v, want ErrUnsupportedArchive", err)
	}
}

func TestExtractArchiveCorruptZip(t *testing.T) {
	data := append([]byte("PK\x03\x04"), []byte("garbage body")...)
	if _, err := ExtractArchive(data); err == nil {
		t.Fatal("expected error for corrupt zip")
	}
}
