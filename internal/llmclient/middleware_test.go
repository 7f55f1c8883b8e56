package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	base := &FakeClient{
		RewriteFn: func(_, content string) (string, error) {
			attempts++
			if attempts < 3 {
				return "", errors.New("transient")
			}
			return content, nil
		},
	}
	c := Chain(base, Retry(3, time.Millisecond))
	out, err := c.Rewrite(context.Background(), "sys", "payload")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out != "payload" || attempts != 3 {
		t.Fatalf("out = %q, attempts = %d", out, attempts)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	base := &FakeClient{
		RewriteFn: func(_, _ string) (string, error) {
			return "", errors.New("always failing")
		},
	}
	c := Chain(base, Retry(3, time.Millisecond))
	if _, err := c.Rewrite(context.Background(), "sys", "x"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if base.Calls() != 3 {
		t.Fatalf("calls = %d, want 3", base.Calls())
	}
}

func TestRetryShortCircuitsOnPermanentError(t *testing.T) {
	base := &FakeClient{
		RewriteFn: func(_, _ string) (string, error) {
			return "", Permanent(errors.New("bad credentials"))
		},
	}
	c := Chain(base, Retry(5, time.Millisecond))
	_, err := c.Rewrite(context.Background(), "sys", "x")
	var pErr *PermanentError
	if !errors.As(err, &pErr) {
		t.Fatalf("err = %v, want PermanentError", err)
	}
	if base.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", base.Calls())
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	base := &FakeClient{
		RewriteFn: func(_, _ string) (string, error) {
			cancel()
			return "", errors.New("transient")
		},
	}
	c := Chain(base, Retry(5, time.Millisecond))
	if _, err := c.Rewrite(ctx, "sys", "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if base.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", base.Calls())
	}
}

func TestPaceEnforcesMinimumInterval(t *testing.T) {
	base := &FakeClient{}
	interval := 25 * time.Millisecond
	c := Chain(base, Pace(interval))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Rewrite(context.Background(), "sys", "x"); err != nil {
			t.Fatalf("Rewrite %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Fatalf("3 calls finished in %v, want >= %v", elapsed, 2*interval)
	}
}

func TestChainOrder(t *testing.T) {
	// Retry outside Pace: a retried attempt is paced like any other call.
	base := &FakeClient{
		RewriteFn: func(_, content string) (string, error) {
			return content, nil
		},
	}
	c := Chain(base, Retry(2, time.Millisecond), Pace(time.Millisecond))
	out, err := c.Rewrite(context.Background(), "sys", "ok")
	if err != nil || out != "ok" {
		t.Fatalf("out = %q, err = %v", out, err)
	}
	if c.Name() != base.Name() {
		t.Fatalf("middleware must not rename the client: %q", c.Name())
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```js\nconst a = 1;\n```":   "const a = 1;",
		"```\nplain\nlines\n```":     "plain\nlines",
		"no fence at all":            "no fence at all",
		"```unterminated\ncode":      "```unterminated\ncode",
		"  ```\npadded\n```  ":       "padded",
	}
	for in, want := range cases {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
