package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryConfig defines backoff for provider rate limit errors.
// Only rate limit errors are retried; anything else fails the call immediately.
type RetryConfig struct {
	// MaxAttempts counts the first call (default: 3)
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt (default: 5s)
	InitialBackoff time.Duration

	// MaxBackoff caps any single wait (default: 60s)
	MaxBackoff time.Duration

	// BackoffMultiplier is applied per attempt (default: 2)
	BackoffMultiplier float64
}

const (
	DefaultMaxAttempts       = 3
	DefaultInitialBackoff    = 5 * time.Second
	DefaultMaxBackoff        = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// NewRetryConfig returns the default backoff with maxAttempts (<= 0 uses the default)
func NewRetryConfig(maxAttempts int) *RetryConfig {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// IsRateLimitError matches 429 responses and quota exhaustion from either provider
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate_limit_error") ||
		strings.Contains(strings.ToLower(errStr), "quota")
}

var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+|retry-after[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses a server-suggested delay such as "Please retry in 45.3s".
// Returns 0 when the error carries none.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff returns the wait after a failed attempt (0-based).
// A server-suggested delay replaces InitialBackoff as the base.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + time.Second
	}

	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}

// do runs fn until it succeeds, fails with a non rate limit error, or attempts run out
func (c *RetryConfig) do(ctx context.Context, logger arbor.ILogger, backend string, fn func() error) error {
	var err error
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsRateLimitError(err) || attempt == c.MaxAttempts-1 {
			return err
		}

		backoff := c.CalculateBackoff(attempt, ExtractRetryDelay(err))
		logger.Warn().
			Str("backend", backend).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Rate limited, retrying provider call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
