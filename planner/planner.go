// Package planner decides how to execute a transfer between two URIs:
// single backend call, same-scheme server-side copy, or cross-scheme
// stream-through via a scratch directory.
package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

// Planner dispatches list/stat/delete/mkdir to a single backend and
// copy/move to either a backend's own server-side Copy or a stream-through
// fallback through ScratchDir.
type Planner struct {
	Registry  *store.Registry
	ScratchDir string
}

// New returns a Planner that resolves backends from reg and stages
// cross-scheme transfers under scratchDir.
func New(reg *store.Registry, scratchDir string) *Planner {
	return &Planner{Registry: reg, ScratchDir: scratchDir}
}

func (p *Planner) backend(u types.URI) (store.Backend, error) {
	return p.Registry.Resolve(u)
}

// List dispatches to the single backend serving u.
func (p *Planner) List(ctx context.Context, u types.URI, opts types.ListOptions) (types.ListResult, error) {
	b, err := p.backend(u)
	if err != nil {
		return types.ListResult{}, err
	}
	release := p.Registry.Acquire(u.Scheme)
	defer release()
	return b.List(ctx, u, opts)
}

// Stat dispatches to the single backend serving u.
func (p *Planner) Stat(ctx context.Context, u types.URI) (types.ObjectInfo, error) {
	b, err := p.backend(u)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	release := p.Registry.Acquire(u.Scheme)
	defer release()
	return b.Stat(ctx, u)
}

// Delete dispatches to the single backend serving u.
func (p *Planner) Delete(ctx context.Context, u types.URI, opts types.DeleteOptions) error {
	b, err := p.backend(u)
	if err != nil {
		return err
	}
	release := p.Registry.Acquire(u.Scheme)
	defer release()
	return b.Delete(ctx, u, opts)
}

// Mkdir dispatches to the single backend serving u.
func (p *Planner) Mkdir(ctx context.Context, u types.URI) error {
	b, err := p.backend(u)
	if err != nil {
		return err
	}
	release := p.Registry.Acquire(u.Scheme)
	defer release()
	return b.Mkdir(ctx, u)
}

// Copy executes a copy from src to dst: same-scheme transfers are
// dispatched to that backend's server-side Copy, falling back to
// stream-through when the backend reports notImplemented (aifs, or any
// backend that cannot bridge the two authorities server-side). Differing
// schemes always stream through.
func (p *Planner) Copy(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	if src.Scheme == dst.Scheme {
		b, err := p.backend(src)
		if err != nil {
			return types.ObjectInfo{}, err
		}
		release := p.Registry.Acquire(src.Scheme)
		info, err := b.Copy(ctx, src, dst, sink)
		release()
		if err == nil {
			return info, nil
		}
		if errs.KindOf(err) != errs.KindNotImplemented {
			return types.ObjectInfo{}, err
		}
		// fall through to stream-through
	}
	return p.streamThrough(ctx, src, dst, sink)
}

// Move executes src -> dst (server-side Copy when possible, otherwise
// stream-through) then removes src on success. If the post-transfer
// delete fails, the destination stays committed and the returned error
// explicitly states the source was left behind.
func (p *Planner) Move(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	info, err := p.Copy(ctx, src, dst, sink)
	if err != nil {
		return types.ObjectInfo{}, err
	}

	srcBackend, err := p.backend(src)
	if err != nil {
		return info, err
	}
	release := p.Registry.Acquire(src.Scheme)
	delErr := srcBackend.Delete(ctx, src, types.DeleteOptions{})
	release()
	if delErr != nil {
		return info, errs.New(errs.KindInternal, "move", dst.String(), fmt.Errorf("destination committed but source was not deleted: %w", delErr))
	}
	return info, nil
}

// streamThrough copies src to dst via a temporary local file in
// ScratchDir: src.Get(temp), then dst.Put(temp, ...), removing temp on
// success. Used for cross-scheme transfers and for same-scheme backends
// that cannot server-side bridge.
func (p *Planner) streamThrough(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	srcBackend, err := p.backend(src)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	dstBackend, err := p.backend(dst)
	if err != nil {
		return types.ObjectInfo{}, err
	}

	if err := os.MkdirAll(p.ScratchDir, 0o755); err != nil {
		return types.ObjectInfo{}, errs.New(errs.KindOutOfScratch, "copy", dst.String(), err)
	}
	if ok, err := hasScratchRoom(p.ScratchDir); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "copy", dst.String())
	} else if !ok {
		return types.ObjectInfo{}, errs.New(errs.KindOutOfScratch, "copy", dst.String(), nil)
	}

	temp := filepath.Join(p.ScratchDir, uuid.NewString())
	defer os.Remove(temp)

	releaseSrc := p.Registry.Acquire(src.Scheme)
	getErr := srcBackend.Get(ctx, src, temp, types.GetOptions{}, sink)
	releaseSrc()
	if getErr != nil {
		return types.ObjectInfo{}, getErr
	}

	releaseDst := p.Registry.Acquire(dst.Scheme)
	info, putErr := dstBackend.Put(ctx, temp, dst, types.PutOptions{}, sink)
	releaseDst()
	if putErr != nil {
		return types.ObjectInfo{}, putErr
	}
	return info, nil
}

// hasScratchRoom reports whether dir is usable as a staging area. Byte-level
// quota enforcement is configured per engine instance (see job.Engine).
func hasScratchRoom(dir string) (bool, error) {
	if _, err := os.Stat(dir); err != nil {
		return false, err
	}
	return true, nil
}
