package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryClient wraps a Client with exponential backoff on transient failures.
// Rate limits and 5xx-class errors are retried; everything else is permanent.
type RetryClient struct {
	inner      Client
	maxElapsed time.Duration
}

// NewRetryClient wraps inner. maxElapsed bounds the total retry window;
// zero means 2 minutes.
func NewRetryClient(inner Client, maxElapsed time.Duration) *RetryClient {
	if maxElapsed <= 0 {
		maxElapsed = 2 * time.Minute
	}
	return &RetryClient{inner: inner, maxElapsed: maxElapsed}
}

// GenerateContent issues the call, retrying transient failures.
func (r *RetryClient) GenerateContent(ctx context.Context, modelID, prompt string) (*Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.maxElapsed

	var resp *Response
	op := func() error {
		var err error
		resp, err = r.inner.GenerateContent(ctx, modelID, prompt)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// isRateLimit checks if the error is a rate limit error.
func isRateLimit(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "429") ||
		strings.Contains(s, "overloaded") ||
		strings.Contains(s, "resource exhausted")
}

// isServerError checks if the error is a transient server error (5xx).
func isServerError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "500") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "504") ||
		strings.Contains(s, "internal server error") ||
		strings.Contains(s, "bad gateway") ||
		strings.Contains(s, "service unavailable") ||
		strings.Contains(s, "temporarily unavailable")
}

func isRetryable(err error) bool {
	return isRateLimit(err) || isServerError(err)
}
