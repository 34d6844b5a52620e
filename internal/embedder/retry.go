package embedder

import (
	"time"

	"github.com/dshills/pdfqa-mcp/internal/retry"
)

// RetryConfig configures exponential backoff for provider calls
type RetryConfig = retry.Config

// DefaultRetryConfig returns sensible defaults for API retry
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}
