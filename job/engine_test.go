package job

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/planner"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

// fakeBackend is a minimal in-memory store.Backend double, mirroring the
// planner package's test double, used here to exercise the engine without
// a real network backend.
type fakeBackend struct {
	scheme  types.Scheme
	objects map[string][]byte
	putErr  error
	getErr  error
	block   chan struct{}
}

func newFakeBackend(scheme types.Scheme) *fakeBackend {
	return &fakeBackend{scheme: scheme, objects: make(map[string][]byte)}
}

func (f *fakeBackend) Scheme() types.Scheme { return f.scheme }

func (f *fakeBackend) List(ctx context.Context, u types.URI, opts types.ListOptions) (types.ListResult, error) {
	return types.ListResult{}, nil
}

func (f *fakeBackend) Stat(ctx context.Context, u types.URI) (types.ObjectInfo, error) {
	data, ok := f.objects[u.Path]
	if !ok {
		return types.ObjectInfo{}, errs.New(errs.KindNotFound, "stat", u.String(), nil)
	}
	return types.ObjectInfo{URI: u, Size: int64(len(data))}, nil
}

func (f *fakeBackend) Get(ctx context.Context, u types.URI, localPath string, opts types.GetOptions, sink store.ProgressSink) error {
	if f.getErr != nil {
		return f.getErr
	}
	data, ok := f.objects[u.Path]
	if !ok {
		return errs.New(errs.KindNotFound, "get", u.String(), nil)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (f *fakeBackend) Put(ctx context.Context, localPath string, u types.URI, opts types.PutOptions, sink store.ProgressSink) (types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return types.ObjectInfo{}, errs.New(errs.KindInterrupted, "put", u.String(), err)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return types.ObjectInfo{}, errs.New(errs.KindInterrupted, "put", u.String(), ctx.Err())
		}
	}
	if f.putErr != nil {
		return types.ObjectInfo{}, f.putErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	f.objects[u.Path] = data
	return types.ObjectInfo{URI: u, Size: int64(len(data))}, nil
}

func (f *fakeBackend) Delete(ctx context.Context, u types.URI, opts types.DeleteOptions) error {
	delete(f.objects, u.Path)
	return nil
}

func (f *fakeBackend) Copy(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	data, ok := f.objects[src.Path]
	if !ok {
		return types.ObjectInfo{}, errs.New(errs.KindNotFound, "copy", src.String(), nil)
	}
	f.objects[dst.Path] = data
	return types.ObjectInfo{URI: dst, Size: int64(len(data))}, nil
}

func (f *fakeBackend) Move(ctx context.Context, src, dst types.URI) (types.ObjectInfo, error) {
	return store.MoveByCopyThenDelete(ctx, f, src, dst)
}

func (f *fakeBackend) Mkdir(ctx context.Context, u types.URI) error { return nil }

func (f *fakeBackend) Exists(ctx context.Context, u types.URI) (bool, error) {
	_, ok := f.objects[u.Path]
	return ok, nil
}

var _ store.Backend = (*fakeBackend)(nil)

func newTestEngine(t *testing.T, backends ...*fakeBackend) (*Engine, *store.Registry) {
	t.Helper()
	reg := store.NewRegistry(4)
	for _, b := range backends {
		reg.Register(b, "default")
	}
	p := planner.New(reg, t.TempDir())
	cfg := Config{JournalPath: filepath.Join(t.TempDir(), "journal.log"), ProgressInterval: 10 * time.Millisecond}
	e, err := NewEngine(cfg, p, reg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, reg
}

func waitForTerminal(t *testing.T, e *Engine, id string, timeout time.Duration) types.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, err := e.Job(id)
		if err != nil {
			t.Fatalf("Job: %v", err)
		}
		if j.Status.Terminal() || j.Status == types.JobPaused {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal/paused state in time", id)
	return types.Job{}
}

func TestEnqueue_UploadCompletes(t *testing.T) {
	dst := newFakeBackend(types.SchemeS3)
	e, _ := newTestEngine(t, dst)

	srcFile := filepath.Join(t.TempDir(), "payload.txt")
	if err := os.WriteFile(srcFile, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := types.URI{Scheme: types.SchemeS3, Authority: "bucket", Path: "obj"}
	id, err := e.Enqueue(types.JobUpload, types.URI{Scheme: types.SchemeFile, Path: srcFile}, &d, nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	j := waitForTerminal(t, e, id, time.Second)
	if j.Status != types.JobCompleted {
		t.Fatalf("expected completed, got %s (err=%s)", j.Status, j.Error)
	}
	if string(dst.objects["obj"]) != "hello world" {
		t.Errorf("unexpected uploaded content: %q", dst.objects["obj"])
	}
}

func TestCancel_WhileQueued_NeverStarts(t *testing.T) {
	dst := newFakeBackend(types.SchemeS3)

	// A single-worker engine with a blocking job first ensures the next
	// one stays queued long enough for Cancel to land before run() starts.
	srcFile := filepath.Join(t.TempDir(), "a.txt")
	os.WriteFile(srcFile, []byte("x"), 0o644)
	blocker := newFakeBackend(types.SchemeGCS)
	blocker.block = make(chan struct{})

	reg2 := store.NewRegistry(4)
	reg2.Register(blocker, "default")
	reg2.Register(dst, "default")
	p := planner.New(reg2, t.TempDir())
	e2, err := NewEngine(Config{JournalPath: filepath.Join(t.TempDir(), "j.log"), Workers: 1}, p, reg2)
	if err != nil {
		t.Fatal(err)
	}
	defer e2.Close()

	blockDst := types.URI{Scheme: types.SchemeGCS, Authority: "b", Path: "blocked"}
	blockerID, err := e2.Enqueue(types.JobUpload, types.URI{Scheme: types.SchemeFile, Path: srcFile}, &blockDst, nil)
	if err != nil {
		t.Fatal(err)
	}

	// give the single worker a chance to pick up the blocker job
	time.Sleep(30 * time.Millisecond)

	d := types.URI{Scheme: types.SchemeS3, Authority: "bucket", Path: "queued"}
	queuedID, err := e2.Enqueue(types.JobUpload, types.URI{Scheme: types.SchemeFile, Path: srcFile}, &d, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := e2.Cancel(queuedID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	close(blocker.block)
	waitForTerminal(t, e2, blockerID, time.Second)
	j := waitForTerminal(t, e2, queuedID, time.Second)
	if j.Status != types.JobCanceled {
		t.Fatalf("expected queued job to be canceled before it ran, got %s", j.Status)
	}
	if _, ok := dst.objects["queued"]; ok {
		t.Error("canceled job must not have executed")
	}
}

func TestPauseResume_Roundtrip(t *testing.T) {
	dst := newFakeBackend(types.SchemeS3)
	blocker := newFakeBackend(types.SchemeGCS)
	blocker.block = make(chan struct{})
	e, _ := newTestEngine(t, dst, blocker)

	srcFile := filepath.Join(t.TempDir(), "a.txt")
	os.WriteFile(srcFile, []byte("x"), 0o644)
	d := types.URI{Scheme: types.SchemeGCS, Authority: "b", Path: "obj"}
	id, err := e.Enqueue(types.JobUpload, types.URI{Scheme: types.SchemeFile, Path: srcFile}, &d, nil)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := e.Pause(id); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	j := waitForTerminal(t, e, id, time.Second)
	if j.Status != types.JobPaused {
		t.Fatalf("expected paused, got %s", j.Status)
	}

	blocker.block = nil
	if err := e.Resume(id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	j = waitForTerminal(t, e, id, time.Second)
	if j.Status != types.JobCompleted {
		t.Fatalf("expected completed after resume, got %s", j.Status)
	}
}

func TestRecover_RunningWithoutResumeTokenFailsAsInterrupted(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.log")
	jr, err := OpenJournal(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	stuck := types.Job{ID: "stuck-1", Kind: types.JobUpload, Status: types.JobRunning, CreatedAt: time.Now()}
	if err := jr.Append(stuck); err != nil {
		t.Fatal(err)
	}
	jr.Close()

	reg := store.NewRegistry(4)
	p := planner.New(reg, t.TempDir())
	e, err := NewEngine(Config{JournalPath: journalPath}, p, reg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	j, err := e.Job("stuck-1")
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if j.Status != types.JobFailed {
		t.Fatalf("expected recovered running-without-token job to be failed, got %s", j.Status)
	}
	if j.Error != "interrupted" {
		t.Errorf("expected interrupted error, got %q", j.Error)
	}
	if j.FinishedAt == nil {
		t.Error("expected FinishedAt to be set on the recovered interrupted job")
	}
}

func TestSubscribe_ReceivesLifecycleEvents(t *testing.T) {
	dst := newFakeBackend(types.SchemeS3)
	e, _ := newTestEngine(t, dst)
	ch := e.Subscribe()
	defer e.Unsubscribe(ch)

	srcFile := filepath.Join(t.TempDir(), "a.txt")
	os.WriteFile(srcFile, []byte("y"), 0o644)
	d := types.URI{Scheme: types.SchemeS3, Authority: "bucket", Path: "obj2"}
	id, err := e.Enqueue(types.JobUpload, types.URI{Scheme: types.SchemeFile, Path: srcFile}, &d, nil)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[EventKind]bool{}
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.JobID != id {
				continue
			}
			seen[ev.Kind] = true
			if ev.Kind == EventCompleted {
				goto done
			}
		case <-deadline:
			t.Fatal("timed out waiting for completion event")
		}
	}
done:
	for _, k := range []EventKind{EventCreated, EventStarted, EventCompleted} {
		if !seen[k] {
			t.Errorf("expected to observe %s event", k)
		}
	}
}
