package job

import (
	"testing"
	"time"

	"github.com/justapithecus/strata/types"
)

func TestThrottledSink_EmitsFirstCallImmediately(t *testing.T) {
	var emitted []types.Progress
	s := newThrottledSink(time.Hour, func(p types.Progress) { emitted = append(emitted, p) }, nil)
	s.OnProgress(10, 100)
	if len(emitted) != 1 {
		t.Fatalf("expected first call to emit immediately, got %d emissions", len(emitted))
	}
}

func TestThrottledSink_SuppressesWithinInterval(t *testing.T) {
	var emitted []types.Progress
	s := newThrottledSink(time.Hour, func(p types.Progress) { emitted = append(emitted, p) }, nil)
	s.OnProgress(10, 100)
	s.OnProgress(20, 100)
	s.OnProgress(30, 100)
	if len(emitted) != 1 {
		t.Fatalf("expected subsequent calls within the interval to be suppressed, got %d", len(emitted))
	}
}

func TestThrottledSink_EmitsAfterIntervalElapses(t *testing.T) {
	var emitted []types.Progress
	s := newThrottledSink(10*time.Millisecond, func(p types.Progress) { emitted = append(emitted, p) }, nil)
	s.OnProgress(10, 100)
	time.Sleep(20 * time.Millisecond)
	s.OnProgress(20, 100)
	if len(emitted) != 2 {
		t.Fatalf("expected emission after interval elapses, got %d", len(emitted))
	}
}

func TestThrottledSink_FinalAlwaysEmits(t *testing.T) {
	var emitted []types.Progress
	s := newThrottledSink(time.Hour, func(p types.Progress) { emitted = append(emitted, p) }, nil)
	s.OnProgress(10, 100)
	s.Final(100, 100)
	if len(emitted) != 2 {
		t.Fatalf("expected Final to emit regardless of throttle window, got %d", len(emitted))
	}
	last := emitted[len(emitted)-1]
	if last.BytesDone != 100 || last.BytesTotal != 100 {
		t.Errorf("unexpected final progress: %+v", last)
	}
}

func TestThrottledSink_OnResumeForwardsEveryToken(t *testing.T) {
	var tokens []string
	s := newThrottledSink(time.Hour, func(types.Progress) {}, func(token string) { tokens = append(tokens, token) })
	s.OnResume("bytes:1")
	s.OnResume("bytes:2")
	if len(tokens) != 2 {
		t.Fatalf("expected every resume token forwarded unthrottled, got %d", len(tokens))
	}
	if tokens[0] != "bytes:1" || tokens[1] != "bytes:2" {
		t.Errorf("unexpected tokens: %v", tokens)
	}
}
