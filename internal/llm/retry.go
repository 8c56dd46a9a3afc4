package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// callFunc performs a single attempt. It must honor ctx, which carries the
// per-attempt deadline.
type callFunc func(ctx context.Context) (*RawResponse, error)

// callWithRetry runs call up to cfg.RetryBound times with exponential backoff
// between attempts. Only retryable errors are retried; cancellation of ctx
// stops immediately. Each attempt gets its own AttemptTimeout.
func callWithRetry(ctx context.Context, cfg *Config, call callFunc) (*RawResponse, error) {
	base := cfg.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	ceiling := cfg.BackoffMax
	if ceiling <= 0 {
		ceiling = DefaultBackoffMax
	}
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	backoff := retry.NewExponential(base)
	backoff = retry.WithCappedDuration(ceiling, backoff)
	backoff = retry.WithMaxRetries(uint64(cfg.attempts()-1), backoff)

	var (
		resp     *RawResponse
		lastErr  error
		attempts int
	)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		r, err := call(attemptCtx)
		if err == nil {
			resp = r
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() == nil && IsRetryable(lastErr) {
			exhausted := &Error{
				Message: fmt.Sprintf("giving up after %d attempts", attempts),
				Cause:   errors.Join(ErrRetriesExhausted, lastErr),
			}
			var llmErr *Error
			if errors.As(lastErr, &llmErr) {
				exhausted.StatusCode = llmErr.StatusCode
			}
			return nil, exhausted
		}
		return nil, err
	}

	resp.Attempts = attempts
	return resp, nil
}

// IsRetryable reports whether err is a rate limit or a transient failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var llmErr *Error
	if errors.As(err, &llmErr) && (llmErr.Retryable || llmErr.StatusCode != 0) {
		return llmErr.Retryable
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return true
		case codes.OK, codes.Unknown:
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"resource_exhausted", "429", "too many requests", "rate limit", "quota",
		"503", "unavailable", "connection reset", "unexpected eof", "timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
