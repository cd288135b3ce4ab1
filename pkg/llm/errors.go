package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrRateLimited marks a call rejected by the provider's rate limiter. The
// same request may succeed after waiting.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError carries the provider's retry hint, if any.
type RateLimitError struct {
	// RetryAfter is zero when the provider gave no hint.
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry in %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() []error { return []error{ErrRateLimited, e.Err} }

// IsRateLimited reports whether err is a rate-limit rejection and returns the
// retry hint.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, errors.Is(err, ErrRateLimited)
}

var retryInRe = regexp.MustCompile(`(?i)retry in (\d+(?:\.\d+)?)`)

// RetryAfterHint extracts "retry in N" seconds from provider error text.
func RetryAfterHint(msg string) time.Duration {
	m := retryInRe.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// classify wraps err as a RateLimitError when its text looks like a 429.
// Providers whose SDKs expose typed status codes check those first.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return &RateLimitError{RetryAfter: RetryAfterHint(msg), Err: err}
	}
	return err
}
