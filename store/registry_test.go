package store

import (
	"context"
	"testing"

	"github.com/justapithecus/strata/types"
)

type stubBackend struct {
	scheme types.Scheme
}

func (s *stubBackend) Scheme() types.Scheme { return s.scheme }
func (s *stubBackend) List(context.Context, types.URI, types.ListOptions) (types.ListResult, error) {
	return types.ListResult{}, nil
}
func (s *stubBackend) Stat(context.Context, types.URI) (types.ObjectInfo, error) {
	return types.ObjectInfo{}, nil
}
func (s *stubBackend) Get(context.Context, types.URI, string, types.GetOptions, ProgressSink) error {
	return nil
}
func (s *stubBackend) Put(context.Context, string, types.URI, types.PutOptions, ProgressSink) (types.ObjectInfo, error) {
	return types.ObjectInfo{}, nil
}
func (s *stubBackend) Delete(context.Context, types.URI, types.DeleteOptions) error { return nil }
func (s *stubBackend) Copy(context.Context, types.URI, types.URI, ProgressSink) (types.ObjectInfo, error) {
	return types.ObjectInfo{}, nil
}
func (s *stubBackend) Move(context.Context, types.URI, types.URI) (types.ObjectInfo, error) {
	return types.ObjectInfo{}, nil
}
func (s *stubBackend) Mkdir(context.Context, types.URI) error        { return nil }
func (s *stubBackend) Exists(context.Context, types.URI) (bool, error) { return false, nil }

var _ Backend = (*stubBackend)(nil)

func TestRegistry_ResolveUnregisteredScheme(t *testing.T) {
	r := NewRegistry(16)
	_, err := r.Resolve(types.URI{Scheme: types.SchemeS3})
	if err == nil {
		t.Fatal("expected error for unregistered scheme")
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry(16)
	b := &stubBackend{scheme: types.SchemeS3}
	r.Register(b, "profile-1")

	got, err := r.Resolve(types.URI{Scheme: types.SchemeS3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != b {
		t.Error("expected resolved backend to be the registered instance")
	}

	entries := r.Entries()
	if len(entries) != 1 || entries[0].ProfileID != "profile-1" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(16)
	r.Register(&stubBackend{scheme: types.SchemeGCS}, "p")
	r.Unregister(types.SchemeGCS)
	if _, err := r.Resolve(types.URI{Scheme: types.SchemeGCS}); err == nil {
		t.Error("expected error after unregister")
	}
}

func TestRegistry_AcquireLimitsConcurrency(t *testing.T) {
	r := NewRegistry(1)
	r.Register(&stubBackend{scheme: types.SchemeS3}, "p")

	release := r.Acquire(types.SchemeS3)

	acquired := make(chan struct{})
	go func() {
		r2 := r.Acquire(types.SchemeS3)
		close(acquired)
		r2()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should have blocked while limit is exhausted")
	default:
	}

	release()
	<-acquired
}
