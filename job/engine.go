// Package job implements the transfer job engine: bounded-concurrency
// scheduling, ordered event delivery, journal persistence, and the
// pending/running/paused/completed/failed/canceled state machine.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/log"
	"github.com/justapithecus/strata/metrics"
	"github.com/justapithecus/strata/planner"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

// Config tunes the engine's concurrency and persistence.
type Config struct {
	// Workers is the fixed worker-pool size dequeuing the ready queue.
	Workers int
	// ProgressInterval throttles progress events; spec default 200ms.
	ProgressInterval time.Duration
	// JournalPath is where the job journal is persisted.
	JournalPath string
	Retry       RetryPolicy
	// Metrics is optional; a nil Collector is safe to call through.
	Metrics *metrics.Collector
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 200 * time.Millisecond
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = DefaultRetryPolicy
	}
	return c
}

// handle is the engine's live bookkeeping for one job: its current
// snapshot plus the cancellation plumbing for whichever run (or queued
// wait) is currently in flight. ctx/cancel are replaced each time the job
// (re)enters the ready queue so Cancel/Pause called while a job is still
// queued take effect against the run that eventually starts.
type handle struct {
	job             types.Job
	ctx             context.Context
	cancel          context.CancelFunc
	pauseRequested  bool
	cancelRequested bool
}

// Engine schedules jobs onto a fixed worker pool, persists their state
// transitions to a journal, and publishes ordered lifecycle events.
type Engine struct {
	cfg     Config
	planner *planner.Planner
	reg     *store.Registry
	journal *Journal
	bus     *Bus

	mu    sync.Mutex
	jobs  map[string]*handle
	ready chan string

	// destLocks serializes operations that target the same destination
	// URI (spec: two jobs writing the same place must not race); keyed by
	// URI string, values are *sync.Mutex, populated lazily and never
	// removed, since the number of distinct destinations ever touched in
	// a process lifetime is small relative to job volume.
	destLocks sync.Map

	sem  chan struct{}
	wg   sync.WaitGroup
	done chan struct{}

	logger  *log.Logger
	metrics *metrics.Collector
}

// NewEngine constructs an Engine and replays its journal, re-enqueuing
// pending/paused jobs and marking unresumable running jobs failed per
// spec startup semantics.
func NewEngine(cfg Config, p *planner.Planner, reg *store.Registry) (*Engine, error) {
	cfg = cfg.withDefaults()

	jr, err := OpenJournal(cfg.JournalPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		planner: p,
		reg:     reg,
		journal: jr,
		bus:     NewBus(),
		jobs:    make(map[string]*handle),
		ready:   make(chan string, 4096),
		sem:     make(chan struct{}, cfg.Workers),
		done:    make(chan struct{}),
		logger:  log.NewLogger(log.Context{Component: "job-engine"}),
		metrics: cfg.Metrics,
	}

	recovered, err := Recover(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	for _, j := range recovered {
		e.restoreOnStartup(j)
	}
	if len(recovered) > 0 {
		e.logger.Info("recovered jobs from journal", map[string]any{"count": len(recovered)})
	}

	go e.loop()
	return e, nil
}

func (e *Engine) newHandle(j types.Job) *handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &handle{job: j, ctx: ctx, cancel: cancel}
}

func (e *Engine) restoreOnStartup(j types.Job) {
	switch j.Status {
	case types.JobPending, types.JobPaused:
		j.Status = types.JobPending
		h := e.newHandle(j)
		e.mu.Lock()
		e.jobs[j.ID] = h
		e.mu.Unlock()
		e.persist(j)
		e.ready <- j.ID

	case types.JobRunning:
		if j.ResumeToken == "" {
			j.Status = types.JobFailed
			j.Error = "interrupted"
			finishedAt := time.Now()
			j.FinishedAt = &finishedAt
			e.mu.Lock()
			e.jobs[j.ID] = &handle{job: j, ctx: context.Background(), cancel: func() {}}
			e.mu.Unlock()
			e.persist(j)
		} else {
			j.Status = types.JobPending
			h := e.newHandle(j)
			e.mu.Lock()
			e.jobs[j.ID] = h
			e.mu.Unlock()
			e.persist(j)
			e.ready <- j.ID
		}
	}
}

// Subscribe returns a channel of lifecycle events across all jobs.
func (e *Engine) Subscribe() chan Event { return e.bus.Subscribe(256) }

// Unsubscribe releases a channel obtained from Subscribe.
func (e *Engine) Unsubscribe(ch chan Event) { e.bus.Unsubscribe(ch) }

// Enqueue admits a new job, persists its created state, and appends it to
// the ready queue.
func (e *Engine) Enqueue(kind types.JobKind, src types.URI, dst *types.URI, opts types.JobOptions) (string, error) {
	id := uuid.NewString()
	j := types.Job{
		ID: id, Kind: kind, Source: src, Destination: dst,
		Status: types.JobPending, CreatedAt: time.Now(), Options: opts,
	}

	h := e.newHandle(j)
	e.mu.Lock()
	e.jobs[id] = h
	e.mu.Unlock()

	e.persist(j)
	e.bus.Publish(Event{JobID: id, Kind: EventCreated})
	e.ready <- id
	return id, nil
}

// Cancel requests cooperative cancellation of a job, whether it is still
// queued or already running. The engine guarantees the job reaches a
// terminal state; Cancel itself returns immediately.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	h, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return errs.New(errs.KindNotFound, "cancelJob", id, nil)
	}
	h.cancelRequested = true
	cancel := h.cancel
	e.mu.Unlock()
	cancel()
	return nil
}

// Pause requests a job suspend at its next cancellation checkpoint.
// Resuming requeues it explicitly via Resume.
func (e *Engine) Pause(id string) error {
	e.mu.Lock()
	h, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return errs.New(errs.KindNotFound, "pauseJob", id, nil)
	}
	if h.job.Status != types.JobRunning && h.job.Status != types.JobPending {
		e.mu.Unlock()
		return errs.New(errs.KindInternal, "pauseJob", id, fmt.Errorf("job is not running or pending"))
	}
	h.pauseRequested = true
	cancel := h.cancel
	e.mu.Unlock()
	cancel()
	return nil
}

// Resume requeues a paused job at the tail of the ready queue with a
// fresh cancellation context.
func (e *Engine) Resume(id string) error {
	e.mu.Lock()
	h, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return errs.New(errs.KindNotFound, "resumeJob", id, nil)
	}
	if h.job.Status != types.JobPaused {
		e.mu.Unlock()
		return errs.New(errs.KindInternal, "resumeJob", id, fmt.Errorf("job is not paused"))
	}
	h.job.Status = types.JobPending
	h.pauseRequested = false
	h.cancelRequested = false
	h.ctx, h.cancel = context.WithCancel(context.Background())
	j := h.job
	e.mu.Unlock()

	e.persist(j)
	e.bus.Publish(Event{JobID: id, Kind: EventResumed})
	e.ready <- id
	return nil
}

// Job returns a snapshot of a job's current state.
func (e *Engine) Job(id string) (types.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.jobs[id]
	if !ok {
		return types.Job{}, errs.New(errs.KindNotFound, "getJob", id, nil)
	}
	return h.job, nil
}

// Close stops accepting new work and waits for in-flight jobs to reach a
// terminal or paused state, then closes the journal.
func (e *Engine) Close() error {
	close(e.done)
	e.wg.Wait()
	return e.journal.Close()
}

func (e *Engine) persist(j types.Job) {
	_ = e.journal.Append(j)
}

// destinationKey identifies the URI a job's per-URI lock is keyed on: the
// destination for anything that writes one, the source for operations
// (delete, mkdir) that have none.
func destinationKey(j types.Job) string {
	if j.Destination != nil {
		return j.Destination.String()
	}
	return j.Source.String()
}

// lockDestination blocks until no other job holds the lock for key, then
// returns a func to release it. Concurrent jobs on disjoint keys never
// contend with each other.
func (e *Engine) lockDestination(key string) func() {
	v, _ := e.destLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) loop() {
	for {
		select {
		case <-e.done:
			return
		case id := <-e.ready:
			select {
			case e.sem <- struct{}{}:
			case <-e.done:
				return
			}
			e.wg.Add(1)
			go func(jobID string) {
				defer e.wg.Done()
				defer func() { <-e.sem }()
				e.run(jobID)
			}(id)
		}
	}
}

func (e *Engine) run(id string) {
	e.mu.Lock()
	h, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	// A pause/cancel requested while the job was still queued already
	// canceled this handle's context; a fresh one would silently drop
	// that request, so only mint one if the prior run never happened.
	if h.ctx.Err() != nil && h.job.Status == types.JobPending && !h.pauseRequested && !h.cancelRequested {
		h.ctx, h.cancel = context.WithCancel(context.Background())
	}
	runCtx := h.ctx
	h.job.Status = types.JobRunning
	startedAt := time.Now()
	h.job.StartedAt = &startedAt
	j := h.job
	e.mu.Unlock()

	e.persist(j)
	e.bus.Publish(Event{JobID: id, Kind: EventStarted})
	e.logger.WithJob(id).Info("job started", map[string]any{"kind": string(j.Kind)})
	e.metrics.JobStarted()

	// Two jobs targeting the same destination must not interleave their
	// writes (e.g. two Puts racing on the same file:// temp-file name);
	// hold this for the whole attempt, including retries.
	unlock := e.lockDestination(destinationKey(j))
	defer unlock()

	sink := newThrottledSink(e.cfg.ProgressInterval, func(p types.Progress) {
		e.mu.Lock()
		if hh, ok := e.jobs[id]; ok {
			hh.job.Progress = p
		}
		e.mu.Unlock()
		e.bus.Publish(Event{JobID: id, Kind: EventProgress, Progress: p})
	}, func(token string) {
		e.mu.Lock()
		hh, ok := e.jobs[id]
		if !ok {
			e.mu.Unlock()
			return
		}
		hh.job.ResumeToken = token
		snapshot := hh.job
		e.mu.Unlock()
		e.persist(snapshot)
	})

	onRetry := func(attempt int, delay time.Duration, err error) {
		e.metrics.RetryAttempted(string(j.Kind))
	}
	hasResumeToken := func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		hh, ok := e.jobs[id]
		return ok && hh.job.ResumeToken != ""
	}

	var info types.ObjectInfo
	runErr := Do(runCtx, e.cfg.Retry, hasResumeToken, onRetry, func() error {
		e.mu.Lock()
		if hh, ok := e.jobs[id]; ok {
			j.ResumeToken = hh.job.ResumeToken
		}
		e.mu.Unlock()

		var execErr error
		info, execErr = e.execute(runCtx, j, sink)
		return execErr
	})
	if runErr == nil && info.Size > 0 {
		sink.Final(info.Size, info.Size)
	}

	e.mu.Lock()
	h, ok = e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	finishedAt := time.Now()
	switch {
	case runErr == nil:
		h.job.Status = types.JobCompleted
		h.job.FinishedAt = &finishedAt
	case h.pauseRequested:
		h.job.Status = types.JobPaused
	case h.cancelRequested || errs.KindOf(runErr) == errs.KindInterrupted:
		h.job.Status = types.JobCanceled
		h.job.FinishedAt = &finishedAt
	default:
		h.job.Status = types.JobFailed
		h.job.FinishedAt = &finishedAt
		h.job.Error = runErr.Error()
	}
	j = h.job
	e.mu.Unlock()

	e.persist(j)
	if j.Status == types.JobFailed {
		e.logger.WithJob(id).Warn("job failed", map[string]any{"error": j.Error})
	} else {
		e.logger.WithJob(id).Info("job status changed", map[string]any{"status": string(j.Status)})
	}
	switch j.Status {
	case types.JobCompleted:
		e.bus.Publish(Event{JobID: id, Kind: EventCompleted, Progress: j.Progress})
		e.metrics.JobFinished(string(j.Kind), string(j.Status))
		scheme := j.Source.Scheme
		if j.Destination != nil {
			scheme = j.Destination.Scheme
		}
		e.metrics.BytesTransferred(string(scheme), info.Size)
	case types.JobPaused:
		e.bus.Publish(Event{JobID: id, Kind: EventPaused})
		e.metrics.JobFinished(string(j.Kind), string(j.Status))
	case types.JobCanceled:
		e.bus.Publish(Event{JobID: id, Kind: EventCanceled})
		e.metrics.JobFinished(string(j.Kind), string(j.Status))
	case types.JobFailed:
		e.bus.Publish(Event{JobID: id, Kind: EventFailed, Error: j.Error})
		e.metrics.JobFinished(string(j.Kind), string(j.Status))
	}
}

func (e *Engine) execute(ctx context.Context, j types.Job, sink store.ProgressSink) (types.ObjectInfo, error) {
	switch j.Kind {
	case types.JobUpload:
		b, err := e.reg.Resolve(*j.Destination)
		if err != nil {
			return types.ObjectInfo{}, err
		}
		opts := types.PutOptions{ContentType: j.Options["contentType"], ResumeToken: j.ResumeToken}
		release := e.reg.Acquire(j.Destination.Scheme)
		defer release()
		return b.Put(ctx, j.Source.Path, *j.Destination, opts, sink)

	case types.JobDownload:
		b, err := e.reg.Resolve(j.Source)
		if err != nil {
			return types.ObjectInfo{}, err
		}
		release := e.reg.Acquire(j.Source.Scheme)
		defer release()
		getOpts := types.GetOptions{ResumeToken: j.ResumeToken}
		if err := b.Get(ctx, j.Source, j.Destination.Path, getOpts, sink); err != nil {
			return types.ObjectInfo{}, err
		}
		return b.Stat(ctx, j.Source)

	case types.JobCopy:
		return e.planner.Copy(ctx, j.Source, *j.Destination, sink)

	case types.JobMove:
		return e.planner.Move(ctx, j.Source, *j.Destination, sink)

	case types.JobDelete:
		opts := types.DeleteOptions{
			Recursive:        j.Options["recursive"] == "true",
			AllowCrossDevice: j.Options["allowCrossDevice"] == "true",
		}
		return types.ObjectInfo{}, e.planner.Delete(ctx, j.Source, opts)

	case types.JobMkdir:
		return types.ObjectInfo{}, e.planner.Mkdir(ctx, j.Source)

	default:
		return types.ObjectInfo{}, errs.New(errs.KindInternal, "execute", j.Source.String(), fmt.Errorf("unknown job kind %q", j.Kind))
	}
}
