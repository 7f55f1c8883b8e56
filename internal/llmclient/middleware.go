package llmclient

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Middleware wraps a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Chain applies middlewares so the first one listed is the outermost layer.
func Chain(base Client, mws ...Middleware) Client {
	c := base
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// Retry retries Rewrite up to maxAttempts with exponential backoff starting
// at baseDelay. Permanent errors and context cancellation stop immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Rewrite(ctx context.Context, systemInstruction, content string) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Rewrite(ctx, systemInstruction, content)
		if err == nil {
			return out, nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return "", err
		}
		last = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return "", last
}

// Pace enforces a minimum interval between successive calls. The cleaner's AI
// phase is serialized, so one pacer bounds the request rate to the upstream
// service.
func Pace(minInterval time.Duration) Middleware {
	return func(next Client) Client {
		return &paced{next: next, interval: minInterval}
	}
}

type paced struct {
	next     Client
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (p *paced) Name() string { return p.next.Name() }
func (p *paced) Close() error { return p.next.Close() }

func (p *paced) Rewrite(ctx context.Context, systemInstruction, content string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.Rewrite(ctx, systemInstruction, content)
}

func (p *paced) wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interval <= 0 {
		return nil
	}
	if !p.last.IsZero() {
		if rest := p.interval - time.Since(p.last); rest > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rest):
			}
		}
	}
	p.last = time.Now()
	return nil
}
