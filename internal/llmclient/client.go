package llmclient

import (
	"context"
	"errors"
	"fmt"
)

// Client is the text-transform service boundary. Implementations take a
// system instruction plus file content and return the rewritten text.
// Cross-cutting concerns (retry, pacing, logging) are applied via Middleware.
type Client interface {
	Name() string
	Rewrite(ctx context.Context, systemInstruction, content string) (string, error)
	Close() error
}

// ErrEmptyResponse is returned when the service answers with no usable text.
var ErrEmptyResponse = errors.New("llmclient: empty response")

// PermanentError marks failures that will not succeed on retry
// (bad credentials, invalid request). Retry middleware short-circuits on it.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
