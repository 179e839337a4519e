// Package gcs implements store.Backend over Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

// resumableThreshold is the size above which Put uses the client's resumable
// upload rather than a single-shot request (spec: files >2 MiB).
const resumableThreshold = 2 << 20

// Config configures the GCS backend's client construction.
type Config struct {
	ProjectID   string
	KeyFile     string
	JSONBlob    []byte
	Endpoint    string
}

// Backend implements store.Backend over Google Cloud Storage.
type Backend struct {
	client *storage.Client
}

// New constructs a GCS backend. With cfg.KeyFile or cfg.JSONBlob set, the
// client authenticates with that service account; otherwise it falls back
// to Application Default Credentials.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var opts []option.ClientOption
	switch {
	case len(cfg.JSONBlob) > 0:
		opts = append(opts, option.WithCredentialsJSON(cfg.JSONBlob))
	case cfg.KeyFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.KeyFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(err, "connect", "gcs://")
	}
	return &Backend{client: client}, nil
}

func (b *Backend) Scheme() types.Scheme { return types.SchemeGCS }

func (b *Backend) bucket(u types.URI) *storage.BucketHandle {
	return b.client.Bucket(u.Authority)
}

func (b *Backend) List(ctx context.Context, u types.URI, opts types.ListOptions) (types.ListResult, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = "/"
	}
	prefix := u.Path
	if opts.Prefix != "" {
		prefix = opts.Prefix
	}

	query := &storage.Query{Prefix: prefix, Delimiter: delim}
	it := b.bucket(u).Objects(ctx, query)

	var items []types.ObjectInfo
	pager := iterator.NewPager(it, pageSize(opts.PageSize), opts.PageToken)
	var attrsPage []*storage.ObjectAttrs
	nextToken, err := pager.NextPage(&attrsPage)
	if err != nil {
		return types.ListResult{}, errs.Wrap(err, "list", u.String())
	}

	for _, attrs := range attrsPage {
		if attrs.Prefix != "" {
			name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/")
			items = append(items, types.ObjectInfo{
				URI:   types.URI{Scheme: types.SchemeGCS, Authority: u.Authority, Path: attrs.Prefix},
				Name:  name,
				IsDir: true,
			})
			continue
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if name == "" {
			continue
		}
		items = append(items, types.ObjectInfo{
			URI:          types.URI{Scheme: types.SchemeGCS, Authority: u.Authority, Path: attrs.Name},
			Name:         name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
			ETag:         attrs.Etag,
			Checksum:     checksumFromAttrs(attrs),
		})
	}

	return types.ListResult{Items: items, NextPageToken: nextToken}, nil
}

func pageSize(n int) int {
	if n <= 0 {
		return 1000
	}
	return n
}

func checksumFromAttrs(attrs *storage.ObjectAttrs) string {
	if len(attrs.MD5) > 0 {
		return "md5:" + hex.EncodeToString(attrs.MD5)
	}
	if attrs.CRC32C != 0 {
		return "crc32c:" + base64.StdEncoding.EncodeToString(crc32Bytes(attrs.CRC32C))
	}
	return ""
}

func crc32Bytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func (b *Backend) Stat(ctx context.Context, u types.URI) (types.ObjectInfo, error) {
	attrs, err := b.bucket(u).Object(u.Path).Attrs(ctx)
	if err != nil {
		if strings.HasSuffix(u.Path, "/") {
			listed, listErr := b.List(ctx, u, types.ListOptions{PageSize: 1})
			if listErr == nil && len(listed.Items) > 0 {
				return types.ObjectInfo{URI: u, Name: lastSegment(u.Path), IsDir: true}, nil
			}
		}
		return types.ObjectInfo{}, errs.Wrap(err, "stat", u.String())
	}
	return types.ObjectInfo{
		URI:          u,
		Name:         lastSegment(u.Path),
		Size:         attrs.Size,
		LastModified: attrs.Updated,
		ETag:         attrs.Etag,
		Checksum:     checksumFromAttrs(attrs),
	}, nil
}

// Get downloads u to localPath. When opts.ResumeToken names a byte offset
// produced by a previous, interrupted attempt (reported via
// store.ResumeSink.OnResume) and the partial temp file at that offset is
// still on disk, it resumes with a ranged read instead of restarting the
// whole object — this is what lets the one checksumMismatch-retry the
// engine's retry policy grants actually make progress instead of just
// repeating the same truncated transfer.
func (b *Backend) Get(ctx context.Context, u types.URI, localPath string, opts types.GetOptions, sink store.ProgressSink) error {
	tmp := localPath + ".strata-tmp"
	offset := resumeOffset(opts.ResumeToken, tmp)

	var r *storage.Reader
	var err error
	if offset > 0 {
		r, err = b.bucket(u).Object(u.Path).NewRangeReader(ctx, offset, -1)
	} else {
		offset = 0
		r, err = b.bucket(u).Object(u.Path).NewReader(ctx)
	}
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}
	defer r.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(tmp, flags, 0o644)
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}

	total := r.Attrs.Size
	resume, _ := sink.(store.ResumeSink)
	streamErr := streamWithProgress(ctx, f, r, total, progressFromOffset(sink, offset))
	if streamErr != nil {
		f.Close()
		if resume != nil {
			if fi, statErr := os.Stat(tmp); statErr == nil {
				resume.OnResume(fmt.Sprintf("bytes:%d", fi.Size()))
			}
		}
		return classifyGetErr(streamErr, u)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errs.Wrap(err, "get", u.String())
	}
	if err := os.Rename(tmp, localPath); err != nil {
		os.Remove(tmp)
		return errs.Wrap(err, "get", u.String())
	}
	return nil
}

// resumeOffset parses a "bytes:<n>" resume token and confirms the partial
// temp file it describes is still present and the right size, returning 0
// (start over) if either check fails.
func resumeOffset(token, tmp string) int64 {
	if token == "" {
		return 0
	}
	var n int64
	if _, err := fmt.Sscanf(token, "bytes:%d", &n); err != nil || n <= 0 {
		return 0
	}
	fi, err := os.Stat(tmp)
	if err != nil || fi.Size() != n {
		return 0
	}
	return n
}

// progressFromOffset shifts a downstream sink's bytesDone by a resumed
// transfer's starting offset so progress reported to subscribers stays
// monotonic across the resume boundary.
func progressFromOffset(sink store.ProgressSink, offset int64) store.ProgressSink {
	if sink == nil || offset == 0 {
		return sink
	}
	return store.ProgressFunc(func(bytesDone, bytesTotal int64) {
		sink.OnProgress(bytesDone+offset, bytesTotal)
	})
}

// classifyGetErr reclassifies a stream failure caused by the client
// library's own CRC32C validation as KindChecksumMismatch. The storage
// client surfaces this case as a plain wrapped error ("storage: bad CRC on
// read"), not one of the general error kinds the shared classifier table
// checks, so it needs a GCS-specific check rather than relying on that
// table.
func classifyGetErr(err error, u types.URI) error {
	cause := err
	var wrapped *errs.Error
	if errors.As(err, &wrapped) && wrapped.Err != nil {
		cause = wrapped.Err
	}
	if strings.Contains(strings.ToLower(cause.Error()), "bad crc") {
		return errs.New(errs.KindChecksumMismatch, "get", u.String(), cause)
	}
	return err
}

// composeLimit is GCS's maximum number of source objects a single compose
// call accepts.
const composeLimit = 32

// resumeChunkSize is the nominal size of each resumable-upload part; actual
// chunk size grows past this for large files to keep the part count within
// composeLimit so the final assembly never needs more than one compose call.
const resumeChunkSize int64 = 8 << 20

// putResumeState is the JSON payload of a Put resume token: which
// component-object prefix the interrupted upload was using, how big each
// chunk is, and how many chunks had already landed.
type putResumeState struct {
	Prefix    string `json:"prefix"`
	ChunkSize int64  `json:"chunkSize"`
	Done      int    `json:"done"`
}

// Put uploads localPath. Objects over resumableThreshold are split into
// chunks, each written as its own component object and composed into the
// final object once all chunks land; after every chunk, the resume token
// reported to sink (if it implements store.ResumeSink) records how many
// chunks are done, so a killed-and-restarted upload resumes rather than
// re-uploading bytes already written (spec scenario: a process kill
// partway through an upload). Objects under the threshold use a single
// request and carry no resume state.
func (b *Backend) Put(ctx context.Context, localPath string, u types.URI, opts types.PutOptions, sink store.ProgressSink) (types.ObjectInfo, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}

	if fi.Size() < resumableThreshold {
		return b.putSingle(ctx, f, fi.Size(), u, opts, sink)
	}
	return b.putResumable(ctx, f, fi.Size(), u, opts, sink)
}

func (b *Backend) putSingle(ctx context.Context, f *os.File, size int64, u types.URI, opts types.PutOptions, sink store.ProgressSink) (types.ObjectInfo, error) {
	w := b.bucket(u).Object(u.Path).NewWriter(ctx)
	if opts.ContentType != "" {
		w.ContentType = opts.ContentType
	}
	if opts.Metadata != nil {
		w.Metadata = opts.Metadata
	}
	if err := streamWithProgress(ctx, w, f, size, sink); err != nil {
		w.Close()
		return types.ObjectInfo{}, err
	}
	if err := w.Close(); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	return b.Stat(ctx, u)
}

func (b *Backend) putResumable(ctx context.Context, f *os.File, size int64, u types.URI, opts types.PutOptions, sink store.ProgressSink) (types.ObjectInfo, error) {
	state := decodePutResumeState(opts.ResumeToken, u, size)
	resume, _ := sink.(store.ResumeSink)

	numChunks := int((size + state.ChunkSize - 1) / state.ChunkSize)
	done := int64(state.Done) * state.ChunkSize
	for i := state.Done; i < numChunks; i++ {
		offset := int64(i) * state.ChunkSize
		n := state.ChunkSize
		if remaining := size - offset; remaining < n {
			n = remaining
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
		}

		part := b.bucket(u).Object(partName(state.Prefix, i))
		w := part.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
		chunkSink := progressFromOffset(sink, done)
		if err := streamWithProgress(ctx, w, io.LimitReader(f, n), n, chunkSink); err != nil {
			w.Close()
			return types.ObjectInfo{}, err
		}
		if err := w.Close(); err != nil {
			if !strings.Contains(strings.ToLower(err.Error()), "precondition") {
				return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
			}
			// A precondition failure here means a previous attempt already
			// wrote this chunk; treat it as already done and move on.
		}

		done += n
		state.Done = i + 1
		if resume != nil {
			resume.OnResume(encodePutResumeState(state))
		}
	}

	parts := make([]*storage.ObjectHandle, numChunks)
	for i := 0; i < numChunks; i++ {
		parts[i] = b.bucket(u).Object(partName(state.Prefix, i))
	}
	dst := b.bucket(u).Object(u.Path)
	composer := dst.ComposerFrom(parts...)
	if opts.ContentType != "" {
		composer.ContentType = opts.ContentType
	}
	if opts.Metadata != nil {
		composer.Metadata = opts.Metadata
	}
	if _, err := composer.Run(ctx); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	for _, part := range parts {
		_ = part.Delete(ctx)
	}

	return b.Stat(ctx, u)
}

// decodePutResumeState parses a resume token produced by a previous
// putResumable attempt against the same size, falling back to a fresh
// state (new component-object prefix, chunk size sized to stay within
// composeLimit parts) when the token is empty, malformed, or was produced
// for a differently-sized file.
func decodePutResumeState(token string, u types.URI, size int64) putResumeState {
	chunkSize := resumeChunkSize
	if minChunks := (size + composeLimit - 1) / composeLimit; chunkSize < minChunks {
		chunkSize = minChunks
	}
	if token != "" {
		var state putResumeState
		if err := json.Unmarshal([]byte(token), &state); err == nil && state.Prefix != "" && state.ChunkSize > 0 {
			return state
		}
	}
	return putResumeState{Prefix: u.Path + ".strata-parts/", ChunkSize: chunkSize}
}

func encodePutResumeState(s putResumeState) string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

func partName(prefix string, i int) string {
	return fmt.Sprintf("%s%06d", prefix, i)
}

func (b *Backend) Delete(ctx context.Context, u types.URI, opts types.DeleteOptions) error {
	if !opts.Recursive {
		if err := b.bucket(u).Object(u.Path).Delete(ctx); err != nil {
			return errs.Wrap(err, "delete", u.String())
		}
		return nil
	}
	return b.deletePrefix(ctx, u)
}

func (b *Backend) deletePrefix(ctx context.Context, u types.URI) error {
	it := b.bucket(u).Objects(ctx, &storage.Query{Prefix: u.Path})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return errs.Wrap(err, "delete", u.String())
		}
		if err := b.bucket(u).Object(attrs.Name).Delete(ctx); err != nil {
			return errs.Wrap(err, "delete", u.String())
		}
	}
}

// Copy uses GCS's rewrite API, which internally issues as many rewrite
// calls as a large cross-location or cross-storage-class copy needs and
// reports incremental progress through ProgressFunc.
func (b *Backend) Copy(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	srcObj := b.bucket(src).Object(src.Path)
	dstObj := b.bucket(dst).Object(dst.Path)

	copier := dstObj.CopierFrom(srcObj)
	if sink != nil {
		copier.ProgressFunc = func(copiedBytes, totalBytes uint64) {
			sink.OnProgress(int64(copiedBytes), int64(totalBytes))
		}
	}
	if _, err := copier.Run(ctx); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "copy", dst.String())
	}
	return b.Stat(ctx, dst)
}

func (b *Backend) Move(ctx context.Context, src, dst types.URI) (types.ObjectInfo, error) {
	return store.MoveByCopyThenDelete(ctx, b, src, dst)
}

func (b *Backend) Mkdir(ctx context.Context, u types.URI) error {
	path := u.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	w := b.bucket(u).Object(path).NewWriter(ctx)
	if err := w.Close(); err != nil {
		return errs.Wrap(err, "mkdir", u.String())
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, u types.URI) (bool, error) {
	_, err := b.bucket(u).Object(u.Path).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errs.Classify(err) == errs.KindNotFound {
		return false, nil
	}
	return false, errs.Wrap(err, "exists", u.String())
}

func lastSegment(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// streamWithProgress copies src to dst in chunks, checking ctx cancellation
// between chunks and reporting progress.
func streamWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, sink store.ProgressSink) error {
	buf := make([]byte, 64*1024)
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
