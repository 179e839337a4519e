package job

import (
	"context"
	"math/rand"
	"time"

	"github.com/justapithecus/strata/errs"
)

// RetryPolicy is the exponential-backoff schedule applied to transient
// job failures before they're given up on.
type RetryPolicy struct {
	Base       time.Duration
	Factor     float64
	JitterFrac float64
	Cap        time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy is base 500ms, factor 2, jitter ±20%, capped at 30s,
// up to 5 attempts.
var DefaultRetryPolicy = RetryPolicy{
	Base:        500 * time.Millisecond,
	Factor:      2,
	JitterFrac:  0.2,
	Cap:         30 * time.Second,
	MaxAttempts: 5,
}

// delay returns the backoff duration before attempt n (1-indexed: the
// delay preceding the 2nd attempt is delay(1)).
func (p RetryPolicy) delay(n int) time.Duration {
	d := float64(p.Base)
	for i := 0; i < n-1; i++ {
		d *= p.Factor
	}
	if ceiling := float64(p.Cap); d > ceiling {
		d = ceiling
	}
	jitter := (rand.Float64()*2 - 1) * p.JitterFrac * d
	d += jitter
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs fn, retrying on retryable errors per p until it succeeds, a
// non-retryable error is returned, attempts are exhausted, or ctx is
// canceled. onRetry, if non-nil, is called before each backoff sleep.
//
// KindChecksumMismatch is handled outside p's normal backoff schedule:
// per spec policy it is retried exactly once, immediately (no backoff,
// since the point is to resume a truncated transfer, not wait out a
// transient fault), and only when hasResumeToken reports true at the
// moment of failure — a second mismatch, or a mismatch with nothing to
// resume from, fails immediately regardless of p.MaxAttempts.
func Do(ctx context.Context, p RetryPolicy, hasResumeToken func() bool, onRetry func(attempt int, delay time.Duration, err error), fn func() error) error {
	var lastErr error
	checksumRetried := false
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		kind := errs.KindOf(lastErr)
		d := p.delay(attempt)
		retryable := kind.Retryable()
		if kind == errs.KindChecksumMismatch {
			if checksumRetried || hasResumeToken == nil || !hasResumeToken() {
				return lastErr
			}
			checksumRetried = true
			retryable = true
			d = 0
		}
		if !retryable {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, d, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return lastErr
}
