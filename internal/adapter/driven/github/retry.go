package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	maxRetryAttempts = 5
	retryBaseDelay   = 1 * time.Second
	retryMaxDelay    = 10 * time.Second
)

// errRetryable wraps a transient HTTP failure so retry.RetryIf can recognize
// it without string-matching.
type errRetryable struct{ err error }

func (e errRetryable) Error() string { return e.err.Error() }
func (e errRetryable) Unwrap() error { return e.err }

// doWithRetry issues req, retrying transport errors and 5xx/429/403 up to
// maxRetryAttempts times with exponential backoff (base 1s, cap 10s), per
// spec.md §4.2. On a 429/403 carrying X-RateLimit-Reset, it sleeps until
// reset+1s and retries exactly once more inline before returning to the
// generic backoff loop.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	rateLimitSleptOnce := false

	err := retry.Do(
		func() error {
			attemptReq := req.Clone(ctx)
			r, err := c.httpClient.Do(attemptReq)
			if err != nil {
				return errRetryable{fmt.Errorf("request failed: %w", err)}
			}

			if r.StatusCode >= 200 && r.StatusCode < 400 {
				resp = r
				return nil
			}

			if (r.StatusCode == http.StatusTooManyRequests || r.StatusCode == http.StatusForbidden) && !rateLimitSleptOnce {
				if reset, ok := rateLimitReset(r); ok {
					rateLimitSleptOnce = true
					sleepUntil := time.Until(reset.Add(1 * time.Second))
					drainAndClose(r.Body)
					if sleepUntil > 0 {
						slog.Warn("github: rate limited, sleeping until reset", "sleep", sleepUntil)
						select {
						case <-time.After(sleepUntil):
						case <-ctx.Done():
							return ctx.Err()
						}
					}
					r, err = c.httpClient.Do(req.Clone(ctx))
					if err != nil {
						return errRetryable{fmt.Errorf("request failed after rate-limit reset: %w", err)}
					}
					if r.StatusCode >= 200 && r.StatusCode < 400 {
						resp = r
						return nil
					}
				}
			}

			if r.StatusCode >= http.StatusInternalServerError || r.StatusCode == http.StatusTooManyRequests || r.StatusCode == http.StatusForbidden {
				drainAndClose(r.Body)
				return errRetryable{fmt.Errorf("http %d", r.StatusCode)}
			}

			// Any other non-2xx/3xx is a hard failure; caller inspects status.
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetryAttempts)),
		retry.Delay(retryBaseDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var re errRetryable
			return errors.As(err, &re)
		}),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func rateLimitReset(r *http.Response) (time.Time, bool) {
	v := r.Header.Get("X-RateLimit-Reset")
	if v == "" {
		return time.Time{}, false
	}
	epoch, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(epoch, 0), true
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
