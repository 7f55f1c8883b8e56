package retriever

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeGitHub serves the subset of the REST API the client uses.
type fakeGitHub struct {
	mu sync.Mutex

	branch string
	files  map[string]string // path -> content

	contentsStatus map[string]int // per-path forced status for the contents endpoint
	failuresLeft   map[string]int // per-path transient failures before success

	contentsCalls int
	blobCalls     int
	maxInFlight   int
	inFlight      int
}

func (f *fakeGitHub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.inFlight++
		if f.inFlight > f.maxInFlight {
			f.maxInFlight = f.inFlight
		}
		f.mu.Unlock()
		defer func() {
			f.mu.Lock()
			f.inFlight--
			f.mu.Unlock()
		}()
		// Hold the request briefly so batch overlap is observable.
		time.Sleep(5 * time.Millisecond)

		switch {
		case strings.Contains(r.URL.Path, "/git/trees/"):
			f.serveTree(w, r)
		case strings.Contains(r.URL.Path, "/contents/"):
			f.serveContents(w, r)
		case strings.Contains(r.URL.Path, "/git/blobs/"):
			f.serveBlob(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeGitHub) serveTree(w http.ResponseWriter, r *http.Request) {
	branch := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	if branch != f.branch {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var entries []map[string]any
	for p := range f.files {
		entries = append(entries, map[string]any{
			"path": p, "type": "blob", "sha": "sha-" + p, "size": len(f.files[p]),
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"sha": "root", "tree": entries})
}

func (f *fakeGitHub) serveContents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.contentsCalls++
	f.mu.Unlock()
	p := strings.SplitN(r.URL.Path, "/contents/", 2)[1]

	f.mu.Lock()
	if n := f.failuresLeft[p]; n > 0 {
		f.failuresLeft[p] = n - 1
		f.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	forced := f.contentsStatus[p]
	f.mu.Unlock()
	if forced != 0 {
		w.WriteHeader(forced)
		return
	}

	content, ok := f.files[p]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		"encoding": "base64",
	})
}

func (f *fakeGitHub) serveBlob(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.blobCalls++
	f.mu.Unlock()
	// Fabricated shas embed the file path, which may contain slashes,
	// so take everything after the endpoint prefix rather than the
	// final path segment.
	sha := strings.SplitN(r.URL.Path, "/git/blobs/", 2)[1]
	p := strings.TrimPrefix(sha, "sha-")
	content, ok := f.files[p]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		"encoding": "base64",
	})
}

func newTestClient(srv *httptest.Server, batchSize int) *Client {
	return New(Config{
		BaseURL:   srv.URL,
		BatchSize: batchSize,
		Attempts:  3,
		BaseDelay: time.Millisecond,
	})
}

func TestFetchTreeFiltersAndFetches(t *testing.T) {
	fake := &fakeGitHub{
		branch: "main",
		files: map[string]string{
			"src/App.jsx":               "export default 1;",
			"package.json":              "{}",
			"node_modules/react/x.js":   "skip",
			"assets/logo.png":           "binary",
			"README.md":                 "hello",
		},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	snap, stats, err := newTestClient(srv, 5).FetchTree(context.Background(),
		RepoRef{Owner: "o", Name: "r"}, nil)
	if err != nil {
		t.Fatalf("FetchTree: %v", err)
	}
	if stats.Listed != 3 || stats.Fetched != 3 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	for _, p := range []string{"src/App.jsx", "package.json", "README.md"} {
		if !snap.Has(p) {
			t.Fatalf("missing %s; have %v", p, snap.Paths())
		}
	}
	if snap.Has("node_modules/react/x.js") || snap.Has("assets/logo.png") {
		t.Fatalf("filter leak: %v", snap.Paths())
	}
	e, _ := snap.Get("README.md")
	if string(e.Content) != "hello" {
		t.Fatalf("content = %q", e.Content)
	}
}

func TestFetchTreeBatches(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("src/f%02d.js", i)] = "x"
	}
	fake := &fakeGitHub{branch: "main", files: files}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	var reports [][2]int
	_, stats, err := newTestClient(srv, 5).FetchTree(context.Background(),
		RepoRef{Owner: "o", Name: "r"}, func(done, total int) {
			reports = append(reports, [2]int{done, total})
		})
	if err != nil {
		t.Fatalf("FetchTree: %v", err)
	}
	if stats.Fetched != 12 {
		t.Fatalf("fetched = %d, want 12", stats.Fetched)
	}
	// 12 files at batch size 5: progress after each of ceil(12/5) batches.
	want := [][2]int{{5, 12}, {10, 12}, {12, 12}}
	if len(reports) != len(want) {
		t.Fatalf("reports = %v, want %v", reports, want)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Fatalf("reports = %v, want %v", reports, want)
		}
	}
	if fake.maxInFlight > 5 {
		t.Fatalf("in-flight fetches = %d, want <= batch size", fake.maxInFlight)
	}
}

func TestFetchTreeSkipsUnfetchableSiblings(t *testing.T) {
	fake := &fakeGitHub{
		branch: "main",
		files: map[string]string{
			"src/good.js": "ok",
			"src/bad.js":  "never",
		},
		// 500 does not trigger the blob fallback, so the file stays
		// unobtainable through the whole retry budget.
		contentsStatus: map[string]int{"src/bad.js": http.StatusInternalServerError},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	snap, stats, err := newTestClient(srv, 5).FetchTree(context.Background(),
		RepoRef{Owner: "o", Name: "r"}, nil)
	if err != nil {
		t.Fatalf("one bad file must not fail the tree: %v", err)
	}
	if !snap.Has("src/good.js") {
		t.Fatal("sibling file lost")
	}
	if snap.Has("src/bad.js") {
		t.Fatal("unfetchable file should be dropped")
	}
	if stats.Skipped != 1 || stats.Fetched != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestFetchFileRetriesTransientFailures(t *testing.T) {
	fake := &fakeGitHub{
		branch:       "main",
		files:        map[string]string{"src/app.js": "fine"},
		failuresLeft: map[string]int{"src/app.js": 2},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	snap, stats, err := newTestClient(srv, 5).FetchTree(context.Background(),
		RepoRef{Owner: "o", Name: "r"}, nil)
	if err != nil {
		t.Fatalf("FetchTree: %v", err)
	}
	if stats.Skipped != 0 || !snap.Has("src/app.js") {
		t.Fatalf("retries exhausted too early: %+v", stats)
	}
	if fake.contentsCalls != 3 {
		t.Fatalf("contents calls = %d, want 3", fake.contentsCalls)
	}
}

func TestFetchFileFallsBackToBlobOn403(t *testing.T) {
	fake := &fakeGitHub{
		branch:         "main",
		files:          map[string]string{"src/big.js": "large content"},
		contentsStatus: map[string]int{"src/big.js": http.StatusForbidden},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	snap, stats, err := newTestClient(srv, 5).FetchTree(context.Background(),
		RepoRef{Owner: "o", Name: "r"}, nil)
	if err != nil {
		t.Fatalf("FetchTree: %v", err)
	}
	if stats.Skipped != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	e, _ := snap.Get("src/big.js")
	if string(e.Content) != "large content" {
		t.Fatalf("content = %q", e.Content)
	}
	if fake.blobCalls == 0 {
		t.Fatal("blob endpoint never used")
	}
}

func TestLookupTreeFallsBackToMaster(t *testing.T) {
	fake := &fakeGitHub{
		branch: "master",
		files:  map[string]string{"index.html": "<html></html>"},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	snap, stats, err := newTestClient(srv, 5).FetchTree(context.Background(),
		RepoRef{Owner: "o", Name: "r"}, nil)
	if err != nil {
		t.Fatalf("FetchTree: %v", err)
	}
	if stats.Branch != "master" {
		t.Fatalf("branch = %q, want master", stats.Branch)
	}
	if !snap.Has("index.html") {
		t.Fatalf("paths = %v", snap.Paths())
	}
}

func TestFetchTreeUnknownRepo(t *testing.T) {
	fake := &fakeGitHub{branch: "main", files: map[string]string{}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, _, err := newTestClient(srv, 5).FetchTree(context.Background(),
		RepoRef{Owner: "o", Name: "r", Branch: "release"}, nil)
	if err == nil {
		t.Fatal("expected error for unresolvable branch")
	}
}

func TestShouldFallBackToBlob(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"forbidden", &statusError{status: http.StatusForbidden, url: "u"}, true},
		{"too large", &statusError{status: http.StatusRequestEntityTooLarge, url: "u"}, true},
		{"wrapped forbidden", fmt.Errorf("fetch src/app.js: %w", &statusError{status: http.StatusForbidden, url: "u"}), true},
		{"server error", &statusError{status: http.StatusInternalServerError, url: "u"}, false},
		{"not a status error", fmt.Errorf("connection reset"), false},
	}
	for _, tc := range cases {
		if got := shouldFallBackToBlob(tc.err); got != tc.want {
			t.Errorf("%s: shouldFallBackToBlob = %v, want %v", tc.name, got, tc.want)
		}
	}
}
