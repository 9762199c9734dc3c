package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("Error 429, Message: too many requests")))
	assert.True(t, IsRateLimitError(errors.New("status RESOURCE_EXHAUSTED")))
	assert.True(t, IsRateLimitError(errors.New(`{"type":"rate_limit_error"}`)))
	assert.True(t, IsRateLimitError(errors.New("Quota exceeded")))
	assert.False(t, IsRateLimitError(errors.New("invalid api key")))
	assert.False(t, IsRateLimitError(nil))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, 12*time.Second, ExtractRetryDelay(errors.New("retryDelay: 12s")))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("429")))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(nil))
}

func TestCalculateBackoff(t *testing.T) {
	c := NewRetryConfig(3)
	assert.Equal(t, 5*time.Second, c.CalculateBackoff(0, 0))
	assert.Equal(t, 10*time.Second, c.CalculateBackoff(1, 0))
	assert.Equal(t, 11*time.Second, c.CalculateBackoff(0, 10*time.Second))
	assert.Equal(t, DefaultMaxBackoff, c.CalculateBackoff(10, 0))
}

func TestNewRetryConfig_Default(t *testing.T) {
	assert.Equal(t, DefaultMaxAttempts, NewRetryConfig(0).MaxAttempts)
}
