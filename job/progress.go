package job

import (
	"sync"
	"time"

	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

// throttledSink adapts a store.ProgressSink so the engine publishes at
// most one progress event per job every interval, plus one unconditional
// final emit, mirroring the time-gated flush trigger used for durable
// event persistence elsewhere in the core.
type throttledSink struct {
	interval time.Duration

	mu       sync.Mutex
	last     time.Time
	lastDone int64
	emit     func(types.Progress)
	resume   func(string)
}

func newThrottledSink(interval time.Duration, emit func(types.Progress), resume func(string)) *throttledSink {
	return &throttledSink{interval: interval, emit: emit, resume: resume}
}

// OnResume implements store.ResumeSink, forwarding a backend's resumable
// checkpoint unthrottled — unlike progress, every checkpoint must be
// persisted or a crash between two of them loses resumability.
func (t *throttledSink) OnResume(token string) {
	if t.resume != nil {
		t.resume(token)
	}
}

// OnProgress implements store.ProgressSink.
func (t *throttledSink) OnProgress(bytesDone, bytesTotal int64) {
	t.mu.Lock()
	now := time.Now()
	due := now.Sub(t.last) >= t.interval
	t.mu.Unlock()
	if !due {
		return
	}

	t.mu.Lock()
	t.last = now
	t.lastDone = bytesDone
	t.mu.Unlock()

	t.emit(types.Progress{BytesDone: bytesDone, BytesTotal: bytesTotal})
}

// Final forces one last emit regardless of the throttle window, used when
// a transfer completes so the terminal byte count is always reported.
func (t *throttledSink) Final(bytesDone, bytesTotal int64) {
	t.mu.Lock()
	t.last = time.Now()
	t.lastDone = bytesDone
	t.mu.Unlock()
	t.emit(types.Progress{BytesDone: bytesDone, BytesTotal: bytesTotal})
}

var _ store.ProgressSink = (*throttledSink)(nil)
var _ store.ResumeSink = (*throttledSink)(nil)
