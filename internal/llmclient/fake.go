package llmclient

import (
	"context"
	"sync"
)

// FakeClient is a scripted client for offline use and tests. RewriteFn, when
// set, handles every call; otherwise the input is echoed back unchanged.
type FakeClient struct {
	RewriteFn func(systemInstruction, content string) (string, error)

	mu    sync.Mutex
	calls int
}

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Rewrite(ctx context.Context, systemInstruction, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.RewriteFn != nil {
		return f.RewriteFn(systemInstruction, content)
	}
	return content, nil
}

// Calls reports how many times Rewrite was invoked.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
