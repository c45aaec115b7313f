package sync

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/google/go-github/v80/github"

	"gitpulse/core"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryBase  = 1 * time.Second
)

// classification is the outcome of inspecting one failed external call.
type classification int

const (
	classifyTransient classification = iota
	classifyRateLimited
	classifyAuthRevoked
	classifyFatal
)

// classifyError is the single place failures are sorted into retry policy
// buckets. The retry driver consumes this; no call site duplicates backoff logic.
func classifyError(err error) classification {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return classifyRateLimited
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return classifyRateLimited
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch {
		case errResp.Response.StatusCode == http.StatusUnauthorized:
			return classifyAuthRevoked
		case errResp.Response.StatusCode >= http.StatusInternalServerError:
			return classifyTransient
		default:
			return classifyFatal
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return classifyTransient
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return classifyTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return classifyTransient
	}

	return classifyFatal
}

func rateLimitResetAt(err error) time.Time {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.Rate.Reset.Time
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
		return time.Now().Add(*abuseErr.RetryAfter)
	}
	return time.Now()
}

// RetryExecutor wraps paginated or atomic external calls with
// classification-aware retry and exponential backoff. Only transient failures
// consume retry attempts: rate limits propagate immediately for out-of-band
// rescheduling, auth failures and anything else are terminal.
type RetryExecutor struct {
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
}

func NewRetryExecutor(maxRetries int, baseDelay time.Duration) *RetryExecutor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBase
	}
	return &RetryExecutor{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      time.Sleep,
	}
}

// Execute runs fn, retrying transient failures with waits of
// baseDelay * 2^attempt between calls, up to maxRetries retries.
func (e *RetryExecutor) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		switch classifyError(err) {
		case classifyRateLimited:
			resetAt := rateLimitResetAt(err)
			log.Printf("⏳ Operation %s rate limited, reset at %s", operation, resetAt.Format(time.RFC3339))
			return &core.RateLimitedError{Operation: operation, ResetAt: resetAt}

		case classifyAuthRevoked:
			log.Printf("❌ Operation %s failed with revoked credentials: %v", operation, err)
			return &core.AuthRevokedError{Operation: operation, Cause: err}

		case classifyFatal:
			return &core.APIError{Operation: operation, Cause: err}

		case classifyTransient:
			lastErr = err
			if attempt == e.maxRetries {
				break
			}
			wait := e.baseDelay << uint(attempt)
			log.Printf("🔄 Retrying operation %s (attempt %d/%d) after %v: %v",
				operation, attempt+1, e.maxRetries, wait, err)
			e.sleep(wait)
		}
	}

	return &core.TimeoutExhaustedError{
		Operation: operation,
		Attempts:  e.maxRetries + 1,
		Cause:     lastErr,
	}
}
