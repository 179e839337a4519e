package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/justapithecus/strata/errs"
)

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy, nil, nil, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call, got %d", calls)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	sentinel := errs.New(errs.KindPermission, "op", "uri", nil)
	err := Do(context.Background(), DefaultRetryPolicy, nil, nil, func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error must not be retried, got %d calls", calls)
	}
}

func TestDo_RetryableEventuallySucceeds(t *testing.T) {
	policy := RetryPolicy{Base: time.Millisecond, Factor: 2, JitterFrac: 0, Cap: 10 * time.Millisecond, MaxAttempts: 5}
	calls := 0
	err := Do(context.Background(), policy, nil, nil, func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.KindNetwork, "op", "uri", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{Base: time.Millisecond, Factor: 2, JitterFrac: 0, Cap: 10 * time.Millisecond, MaxAttempts: 3}
	calls := 0
	err := Do(context.Background(), policy, nil, nil, func() error {
		calls++
		return errs.New(errs.KindTimeout, "op", "uri", nil)
	})
	if err == nil {
		t.Fatal("expected final error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected exactly MaxAttempts calls, got %d", calls)
	}
}

func TestDo_ChecksumMismatchRetriesOnceWhenResumable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy, func() bool { return true }, nil, func() error {
		calls++
		if calls < 2 {
			return errs.New(errs.KindChecksumMismatch, "get", "uri", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly one retry (2 calls), got %d", calls)
	}
}

func TestDo_ChecksumMismatchFailsImmediatelyWithoutResumeToken(t *testing.T) {
	calls := 0
	sentinel := errs.New(errs.KindChecksumMismatch, "get", "uri", nil)
	err := Do(context.Background(), DefaultRetryPolicy, func() bool { return false }, nil, func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("checksum mismatch with no resume token must not be retried, got %d calls", calls)
	}
}

func TestDo_ChecksumMismatchFailsOnSecondOccurrence(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy, func() bool { return true }, nil, func() error {
		calls++
		return errs.New(errs.KindChecksumMismatch, "get", "uri", nil)
	})
	if err == nil {
		t.Fatal("expected an error after the second checksum mismatch")
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 calls (one retry, then give up), got %d", calls)
	}
}

func TestDo_ContextCanceledDuringBackoffStopsRetrying(t *testing.T) {
	policy := RetryPolicy{Base: 50 * time.Millisecond, Factor: 2, JitterFrac: 0, Cap: time.Second, MaxAttempts: 5}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, policy, nil, nil, func() error {
		calls++
		return errs.New(errs.KindNetwork, "op", "uri", nil)
	})
	if err == nil {
		t.Fatal("expected an error after context cancellation")
	}
	if calls >= policy.MaxAttempts {
		t.Errorf("expected cancellation to stop retries before exhausting attempts, got %d calls", calls)
	}
}

func TestDelay_RespectsCapAndJitterBounds(t *testing.T) {
	policy := RetryPolicy{Base: time.Second, Factor: 2, JitterFrac: 0.2, Cap: 3 * time.Second, MaxAttempts: 10}
	for attempt := 1; attempt <= 6; attempt++ {
		d := policy.delay(attempt)
		max := policy.Cap + time.Duration(float64(policy.Cap)*policy.JitterFrac)
		if d > max {
			t.Errorf("attempt %d: delay %v exceeds cap+jitter bound %v", attempt, d, max)
		}
		if d < 0 {
			t.Errorf("attempt %d: delay must never be negative, got %v", attempt, d)
		}
	}
}
