package retriever

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"liberator/internal/snapshot"
)

const (
	defaultBaseURL    = "https://api.github.com"
	defaultBatchSize  = 5
	defaultAttempts   = 3
	defaultBaseDelay  = 500 * time.Millisecond
	defaultHTTPWindow = 2 * time.Minute
)

// Config tunes the GitHub client. Zero values fall back to defaults.
type Config struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	BatchSize  int
	Attempts   int
	BaseDelay  time.Duration
	Logger     *slog.Logger
}

// Client retrieves a repository file tree over the GitHub REST API.
type Client struct {
	http      *http.Client
	token     string
	baseURL   string
	batchSize int
	attempts  int
	baseDelay time.Duration
	logger    *slog.Logger
}

// Stats summarizes one tree retrieval.
type Stats struct {
	Listed  int // blobs matching the allow-list
	Fetched int
	Skipped int // unobtainable after retries
	Branch  string
}

// BatchProgress is invoked after each fetch batch with cumulative counts.
type BatchProgress func(completed, total int)

func New(cfg Config) *Client {
	c := &Client{
		http:      cfg.HTTPClient,
		token:     strings.TrimSpace(cfg.Token),
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		batchSize: cfg.BatchSize,
		attempts:  cfg.Attempts,
		baseDelay: cfg.BaseDelay,
		logger:    cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultHTTPWindow}
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
	if c.attempts <= 0 {
		c.attempts = defaultAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

type treeResponse struct {
	SHA       string      `json:"sha"`
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// FetchTree lists the full recursive tree in one call, filters it to the
// retrieval allow-list, then fetches contents in fixed-size batches:
// concurrent within a batch, batches sequential. A file that stays
// unobtainable after the retry budget is dropped and counted as skipped;
// an unobtainable tree is fatal.
func (c *Client) FetchTree(ctx context.Context, ref RepoRef, progress BatchProgress) (*snapshot.Snapshot, Stats, error) {
	tree, branch, err := c.lookupTree(ctx, ref)
	if err != nil {
		return nil, Stats{}, err
	}

	var wanted []treeEntry
	for _, e := range tree.Tree {
		if e.Type == "blob" && WantPath(e.Path) {
			wanted = append(wanted, e)
		}
	}
	stats := Stats{Listed: len(wanted), Branch: branch}
	snap := snapshot.New()

	var (
		mu        sync.Mutex
		completed int
	)
	for start := 0; start < len(wanted); start += c.batchSize {
		end := start + c.batchSize
		if end > len(wanted) {
			end = len(wanted)
		}
		batch := wanted[start:end]

		var wg sync.WaitGroup
		for _, e := range batch {
			wg.Add(1)
			go func(e treeEntry) {
				defer wg.Done()
				content, err := c.fetchFile(ctx, ref, branch, e)
				mu.Lock()
				defer mu.Unlock()
				completed++
				if err != nil {
					stats.Skipped++
					c.logger.Warn("file skipped after retries",
						"repo", ref.String(), "path", e.Path, "error", err)
					return
				}
				stats.Fetched++
				snap.Add(snapshot.FileEntry{Path: e.Path, Content: content})
			}(e)
		}
		wg.Wait()

		if progress != nil {
			progress(completed, len(wanted))
		}
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
	}
	return snap, stats, nil
}

// lookupTree resolves the branch (main, then master, when unspecified) and
// returns the recursive tree listing.
func (c *Client) lookupTree(ctx context.Context, ref RepoRef) (*treeResponse, string, error) {
	branches := []string{ref.Branch}
	if ref.Branch == "" {
		branches = []string{"main", "master"}
	}
	var lastErr error
	for _, branch := range branches {
		u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
			c.baseURL, url.PathEscape(ref.Owner), url.PathEscape(ref.Name), url.PathEscape(branch))
		body, status, err := c.get(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusNotFound || status == http.StatusUnprocessableEntity {
			lastErr = fmt.Errorf("retriever: tree %s@%s: status %d", ref.String(), branch, status)
			continue
		}
		if status != http.StatusOK {
			return nil, "", fmt.Errorf("retriever: tree %s@%s: status %d", ref.String(), branch, status)
		}
		var tr treeResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return nil, "", fmt.Errorf("retriever: decode tree: %w", err)
		}
		if tr.Truncated {
			c.logger.Warn("tree listing truncated by API", "repo", ref.String(), "branch", branch)
		}
		return &tr, branch, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("retriever: no branch resolved for %s", ref.String())
	}
	return nil, "", lastErr
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// fetchFile retrieves one blob with up to c.attempts tries and linear backoff
// (attempt x baseDelay). The decoded-content endpoint is preferred; 403 and
// size-exceeded responses fall back to the raw blob endpoint within the same
// attempt.
func (c *Client) fetchFile(ctx context.Context, ref RepoRef, branch string, e treeEntry) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.baseDelay):
			}
		}

		content, err := c.fetchViaContents(ctx, ref, branch, e.Path)
		if err == nil {
			return content, nil
		}
		if shouldFallBackToBlob(err) {
			content, err = c.fetchViaBlob(ctx, ref, e.SHA)
			if err == nil {
				return content, nil
			}
		}
		lastErr = err
	}
	return nil, lastErr
}

// statusError carries the HTTP status for fallback decisions.
type statusError struct {
	status int
	url    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d from %s", e.status, e.url)
}

func shouldFallBackToBlob(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	// 403 covers both permission-shaped throttling and the API's
	// "too large" contents response.
	return se.status == http.StatusForbidden || se.status == http.StatusRequestEntityTooLarge
}

func (c *Client) fetchViaContents(ctx context.Context, ref RepoRef, branch, filePath string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.baseURL, url.PathEscape(ref.Owner), url.PathEscape(ref.Name),
		escapePathSegments(filePath), url.QueryEscape(branch))
	return c.fetchEncoded(ctx, u)
}

func (c *Client) fetchViaBlob(ctx context.Context, ref RepoRef, sha string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/git/blobs/%s",
		c.baseURL, url.PathEscape(ref.Owner), url.PathEscape(ref.Name), url.PathEscape(sha))
	return c.fetchEncoded(ctx, u)
}

func (c *Client) fetchEncoded(ctx context.Context, u string) ([]byte, error) {
	body, status, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &statusError{status: status, url: u}
	}
	var cr contentResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("retriever: decode content: %w", err)
	}
	switch cr.Encoding {
	case "base64":
		raw := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, cr.Content)
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("retriever: decode base64: %w", err)
		}
		return decoded, nil
	case "", "utf-8":
		return []byte(cr.Content), nil
	default:
		return nil, fmt.Errorf("retriever: unsupported encoding %q", cr.Encoding)
	}
}

func (c *Client) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "liberator/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func escapePathSegments(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
