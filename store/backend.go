// Package store defines the object-store backend contract and the
// registry mapping schemes to backend instances.
package store

import (
	"context"

	"github.com/justapithecus/strata/types"
)

// ProgressSink receives monotonically non-decreasing (bytesDone,
// bytesTotal) tuples during a transfer. bytesTotal is 0 when unknown.
// Implementations must be safe to call from any goroutine the backend
// chooses to drive the transfer from.
type ProgressSink interface {
	OnProgress(bytesDone, bytesTotal int64)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(bytesDone, bytesTotal int64)

// OnProgress implements ProgressSink.
func (f ProgressFunc) OnProgress(bytesDone, bytesTotal int64) { f(bytesDone, bytesTotal) }

// ResumeSink is an optional extension of ProgressSink: a backend that
// supports resuming an interrupted Get/Put type-asserts its sink against
// this interface and, when it's implemented, reports a checkpoint token
// every time the transfer reaches a point it could be resumed from. A
// caller that persists that token (e.g. onto a types.Job) can pass it
// back in on the next attempt via GetOptions.ResumeToken/PutOptions.ResumeToken.
type ResumeSink interface {
	OnResume(token string)
}

// Backend is the uniform contract every storage provider implements. All
// operations are cancelable via ctx; callers cancel by canceling ctx, not
// by any backend-specific mechanism.
type Backend interface {
	// Scheme reports which scheme this backend serves.
	Scheme() types.Scheme

	// List lists objects under a directory/prefix URI.
	List(ctx context.Context, u types.URI, opts types.ListOptions) (types.ListResult, error)

	// Stat returns metadata for a single object or directory marker.
	Stat(ctx context.Context, u types.URI) (types.ObjectInfo, error)

	// Get streams u into localPath atomically: written to a sibling temp
	// file, renamed into place on success, removed on failure/cancel.
	Get(ctx context.Context, u types.URI, localPath string, opts types.GetOptions, sink ProgressSink) error

	// Put uploads localPath to u.
	Put(ctx context.Context, localPath string, u types.URI, opts types.PutOptions, sink ProgressSink) (types.ObjectInfo, error)

	// Delete removes u. If u is a directory and opts.Recursive is false
	// and it is non-empty, returns a KindNotEmpty error. A recursive
	// delete that would cross into a different filesystem/mount owned by
	// a different uid returns a KindPermission error unless
	// opts.AllowCrossDevice is set.
	Delete(ctx context.Context, u types.URI, opts types.DeleteOptions) error

	// Copy copies src to dst, both same-scheme. Returns a KindNotImplemented
	// error if the backend has no server-side copy (the planner falls back
	// to stream-through).
	Copy(ctx context.Context, src, dst types.URI, sink ProgressSink) (types.ObjectInfo, error)

	// Move moves src to dst. The default implementation is copy-then-delete;
	// backends may override for an atomic rename.
	Move(ctx context.Context, src, dst types.URI) (types.ObjectInfo, error)

	// Mkdir creates a directory URI. Flat stores create a zero-byte marker
	// object instead.
	Mkdir(ctx context.Context, u types.URI) error

	// Exists reports whether u exists. Never fails on absence; only fails
	// on permission/network errors.
	Exists(ctx context.Context, u types.URI) (bool, error)
}

// MoveByCopyThenDelete implements the default Move semantics any backend
// without an atomic rename can embed/call: copy followed by delete of the
// source.
func MoveByCopyThenDelete(ctx context.Context, b Backend, src, dst types.URI) (types.ObjectInfo, error) {
	info, err := b.Copy(ctx, src, dst, nil)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	if err := b.Delete(ctx, src, types.DeleteOptions{}); err != nil {
		return info, err
	}
	return info, nil
}
