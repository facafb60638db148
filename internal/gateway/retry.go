package gateway

import (
	"math"
	"strings"
	"time"
)

// RetryPolicy drives exponential backoff for oracle calls. The dispatch
// loop treats oracle failure as terminal for a turn, so a few retries
// here are the only thing standing between a transient network blip and
// an apology to the user.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns 3 attempts with 1s initial delay, doubling
// up to a 30s cap.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// ShouldRetry reports whether err is worth another attempt.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt > p.MaxAttempts {
		return false
	}
	return isRetryable(err)
}

// Error-message fragments that mark a failure as transient or permanent.
// Unknown errors default to retryable since a wasted retry is cheaper
// than a failed turn.
var (
	transientFragments = []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"status 429",
		"status 5",
	}
	permanentFragments = []string{
		"invalid",
		"unauthorized",
		"forbidden",
	}
)

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range transientFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	for _, frag := range permanentFragments {
		if strings.Contains(msg, frag) {
			return false
		}
	}
	return true
}

// NextDelay returns the backoff delay for the given attempt (1-indexed):
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times, sleeping between retries.
// Returns nil on success, or the last error if attempts run out or the
// error is permanent.
func (p *RetryPolicy) Execute(fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		if attempt < p.MaxAttempts {
			time.Sleep(p.NextDelay(attempt))
		}
	}
	return lastErr
}
