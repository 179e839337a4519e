// Package file implements store.Backend over the local filesystem.
package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

const chunkSize = 64 * 1024

// Backend implements store.Backend over the local filesystem. URIs of the
// form file:///abs/path map directly to OS paths; the scheme has no
// authority component.
type Backend struct{}

// New creates a file backend.
func New() *Backend { return &Backend{} }

// Scheme implements store.Backend.
func (b *Backend) Scheme() types.Scheme { return types.SchemeFile }

func toOSPath(u types.URI) string {
	p := "/" + strings.TrimPrefix(u.Path, "/")
	return filepath.Clean(p)
}

func (b *Backend) List(_ context.Context, u types.URI, opts types.ListOptions) (types.ListResult, error) {
	dir := toOSPath(u)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return types.ListResult{}, errs.Wrap(err, "list", u.String())
	}

	items := make([]types.ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if opts.Prefix != "" && !strings.HasPrefix(e.Name(), opts.Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return types.ListResult{}, errs.Wrap(err, "list", u.String())
		}
		name := e.Name()
		childPath := strings.TrimSuffix(u.Path, "/")
		if childPath != "" {
			childPath += "/"
		}
		childPath += name
		isDir := e.IsDir()
		if isDir {
			childPath += "/"
		}
		items = append(items, types.ObjectInfo{
			URI:          types.URI{Scheme: types.SchemeFile, Path: childPath},
			Name:         name,
			Size:         sizeOrZero(isDir, info.Size()),
			LastModified: info.ModTime(),
			IsDir:        isDir,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return types.ListResult{Items: items}, nil
}

func sizeOrZero(isDir bool, size int64) int64 {
	if isDir {
		return 0
	}
	return size
}

func (b *Backend) Stat(_ context.Context, u types.URI) (types.ObjectInfo, error) {
	path := toOSPath(u)
	fi, err := os.Stat(path)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "stat", u.String())
	}
	isDir := fi.IsDir()
	uriStr := u
	if isDir && !strings.HasSuffix(uriStr.Path, "/") {
		uriStr.Path += "/"
	}
	return types.ObjectInfo{
		URI:          uriStr,
		Name:         fi.Name(),
		Size:         sizeOrZero(isDir, fi.Size()),
		LastModified: fi.ModTime(),
		IsDir:        isDir,
	}, nil
}

func (b *Backend) Get(ctx context.Context, u types.URI, localPath string, _ types.GetOptions, sink store.ProgressSink) error {
	src, err := os.Open(toOSPath(u))
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}

	tmp := localPath + ".strata-tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}

	if err := streamCopy(ctx, dst, src, fi.Size(), sink); err != nil {
		dst.Close()
		os.Remove(tmp)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return errs.Wrap(err, "get", u.String())
	}
	if err := os.Rename(tmp, localPath); err != nil {
		os.Remove(tmp)
		return errs.Wrap(err, "get", u.String())
	}
	return nil
}

func (b *Backend) Put(ctx context.Context, localPath string, u types.URI, _ types.PutOptions, sink store.ProgressSink) (types.ObjectInfo, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}

	destPath := toOSPath(u)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}

	tmp := destPath + ".strata-tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	if err := streamCopy(ctx, dst, src, fi.Size(), sink); err != nil {
		dst.Close()
		os.Remove(tmp)
		return types.ObjectInfo{}, err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}

	return b.Stat(ctx, u)
}

func (b *Backend) Delete(_ context.Context, u types.URI, opts types.DeleteOptions) error {
	path := toOSPath(u)
	if opts.Recursive {
		if err := refuseCrossDevice(path, opts.AllowCrossDevice); err != nil {
			return err
		}
		if err := os.RemoveAll(path); err != nil {
			return errs.Wrap(err, "delete", u.String())
		}
		return nil
	}
	if err := os.Remove(path); err != nil {
		if pathErr, ok := err.(*os.PathError); ok && isNotEmptyErrno(pathErr) {
			return errs.New(errs.KindNotEmpty, "delete", u.String(), err)
		}
		return errs.Wrap(err, "delete", u.String())
	}
	return nil
}

// refuseCrossDevice walks root and refuses a recursive delete that would
// cross a filesystem boundary (a different device) or descend into a path
// owned by a uid other than root's, unless allow is set. Mirrors the mount
// detection used by filesystem-tree scanners elsewhere: stat the root
// once, then compare every descendant's raw device/owner against it.
func refuseCrossDevice(root string, allow bool) error {
	if allow {
		return nil
	}
	rootFI, err := os.Lstat(root)
	if err != nil {
		// Let the subsequent RemoveAll surface the real error (e.g. not found).
		return nil
	}
	rootStat, ok := rootFI.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		st, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			return nil
		}
		if st.Dev != rootStat.Dev {
			return errs.New(errs.KindPermission, "delete", path,
				fmt.Errorf("refusing to cross filesystem boundary at %s", path)).
				WithHint("pass --allow-cross-device to delete across mount points")
		}
		if st.Uid != rootStat.Uid {
			return errs.New(errs.KindPermission, "delete", path,
				fmt.Errorf("refusing to recurse into %s owned by a different user", path)).
				WithHint("pass --allow-cross-device to delete paths owned by another user")
		}
		return nil
	})
}

func (b *Backend) Copy(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	srcPath := toOSPath(src)
	f, err := os.Open(srcPath)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "copy", src.String())
	}
	defer f.Close()

	destPath := toOSPath(dst)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "copy", dst.String())
	}

	fi, err := f.Stat()
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "copy", src.String())
	}

	tmp := destPath + ".strata-tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "copy", dst.String())
	}
	if err := streamCopy(ctx, out, f, fi.Size(), sink); err != nil {
		out.Close()
		os.Remove(tmp)
		return types.ObjectInfo{}, err
	}
	out.Close()
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return types.ObjectInfo{}, errs.Wrap(err, "copy", dst.String())
	}

	return b.Stat(ctx, dst)
}

func (b *Backend) Move(ctx context.Context, src, dst types.URI) (types.ObjectInfo, error) {
	srcPath := toOSPath(src)
	destPath := toOSPath(dst)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "move", dst.String())
	}
	if err := os.Rename(srcPath, destPath); err == nil {
		return b.Stat(ctx, dst)
	}
	// Cross-device rename not possible: fall back to copy-then-delete.
	return store.MoveByCopyThenDelete(ctx, b, src, dst)
}

func (b *Backend) Mkdir(_ context.Context, u types.URI) error {
	if err := os.MkdirAll(toOSPath(u), 0o755); err != nil {
		return errs.Wrap(err, "mkdir", u.String())
	}
	return nil
}

func (b *Backend) Exists(_ context.Context, u types.URI) (bool, error) {
	_, err := os.Stat(toOSPath(u))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errs.Wrap(err, "exists", u.String())
}

// streamCopy copies src to dst in chunkSize pieces, checking ctx
// cancellation between chunks and reporting progress.
func streamCopy(ctx context.Context, dst io.Writer, src io.Reader, total int64, sink store.ProgressSink) error {
	buf := make([]byte, chunkSize)
	var done int64
	for {
		select {
		case <-ctx.Done():
			return errs.New(errs.KindInterrupted, "stream", "", ctx.Err())
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return errs.Wrap(werr, "stream", "")
			}
			done += int64(n)
			if sink != nil {
				sink.OnProgress(done, total)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errs.Wrap(err, "stream", "")
		}
	}
}

var _ store.Backend = (*Backend)(nil)
