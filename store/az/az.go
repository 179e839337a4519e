// Package az implements store.Backend over Azure Blob Storage.
package az

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

// uploadChunkSize is the block size used when staging blocks for blobs
// that don't fit in a single UploadBufferToBlockBlob call.
const uploadChunkSize = 4 << 20 // 4 MiB

// copyPollInterval is the initial delay between copy-status polls; it
// doubles after every poll, capped at copyPollMaxInterval.
const copyPollInterval = 250 * time.Millisecond
const copyPollMaxInterval = 5 * time.Second

// defaultCopyPollTimeout bounds how long Copy waits for an async
// server-side copy to leave the "pending" state.
const defaultCopyPollTimeout = 10 * time.Minute

// Config configures the Azure backend's client construction.
type Config struct {
	AccountName     string
	AccountKey      string
	ConnectionString string
	SASToken        string
	CopyPollTimeout time.Duration
}

// Backend implements store.Backend over Azure Blob Storage. A single storage
// account (reached via its service URL and credential) hosts every
// container a URI's Authority names.
type Backend struct {
	serviceURL      azblob.ServiceURL
	copyPollTimeout time.Duration
}

// New constructs an Azure backend from cfg. When cfg.SASToken is set, the
// pipeline uses anonymous credentials and relies on the token embedded in
// the service URL; otherwise a shared-key credential is built from
// AccountName/AccountKey.
func New(cfg Config) (*Backend, error) {
	if cfg.AccountName == "" {
		return nil, errs.New(errs.KindInternal, "connect", "az://", fmt.Errorf("account name is required"))
	}

	var credential azblob.Credential
	var err error
	if cfg.SASToken != "" {
		credential = azblob.NewAnonymousCredential()
	} else {
		credential, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, errs.Wrap(err, "connect", "az://")
		}
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	rawURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	if cfg.SASToken != "" {
		rawURL += "?" + strings.TrimPrefix(cfg.SASToken, "?")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errs.Wrap(err, "connect", "az://")
	}

	timeout := cfg.CopyPollTimeout
	if timeout <= 0 {
		timeout = defaultCopyPollTimeout
	}

	return &Backend{
		serviceURL:      azblob.NewServiceURL(*parsed, pipeline),
		copyPollTimeout: timeout,
	}, nil
}

func (b *Backend) Scheme() types.Scheme { return types.SchemeAZ }

func (b *Backend) container(u types.URI) azblob.ContainerURL {
	return b.serviceURL.NewContainerURL(u.Authority)
}

func (b *Backend) blob(u types.URI) azblob.BlockBlobURL {
	return b.container(u).NewBlockBlobURL(u.Path)
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

	marker := azblob.Marker{}
	if opts.PageToken != "" {
		marker = azblob.Marker{Val: &opts.PageToken}
	}

	resp, err := b.container(u).ListBlobsHierarchySegment(ctx, marker, delim, azblob.ListBlobsSegmentOptions{
		Prefix:     prefix,
		MaxResults: int32(pageSize(opts.PageSize)),
	})
	if err != nil {
		return types.ListResult{}, errs.Wrap(err, "list", u.String())
	}

	var items []types.ObjectInfo
	for _, p := range resp.Segment.BlobPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(p.Name, prefix), "/")
		items = append(items, types.ObjectInfo{
			URI:   types.URI{Scheme: types.SchemeAZ, Authority: u.Authority, Path: p.Name},
			Name:  name,
			IsDir: true,
		})
	}
	for _, item := range resp.Segment.BlobItems {
		name := strings.TrimPrefix(item.Name, prefix)
		if name == "" {
			continue
		}
		items = append(items, types.ObjectInfo{
			URI:          types.URI{Scheme: types.SchemeAZ, Authority: u.Authority, Path: item.Name},
			Name:         name,
			Size:         derefInt64(item.Properties.ContentLength),
			LastModified: item.Properties.LastModified,
			ETag:         string(item.Properties.Etag),
		})
	}

	result := types.ListResult{Items: items}
	if resp.NextMarker.NotDone() {
		result.NextPageToken = *resp.NextMarker.Val
	}
	return result, nil
}

func pageSize(n int) int32 {
	if n <= 0 {
		return 5000
	}
	return int32(n)
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func (b *Backend) Stat(ctx context.Context, u types.URI) (types.ObjectInfo, error) {
	props, err := b.blob(u).GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
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
		Size:         props.ContentLength(),
		LastModified: props.LastModified(),
		ETag:         string(props.ETag()),
	}, nil
}

func (b *Backend) Get(ctx context.Context, u types.URI, localPath string, _ types.GetOptions, sink store.ProgressSink) error {
	resp, err := b.blob(u).Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}
	body := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()

	tmp := localPath + ".strata-tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}

	if err := streamWithProgress(ctx, f, body, resp.ContentLength(), sink); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
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

	headers := azblob.BlobHTTPHeaders{}
	if opts.ContentType != "" {
		headers.ContentType = opts.ContentType
	}
	metadata := azblob.Metadata{}
	for k, v := range opts.Metadata {
		metadata[k] = v
	}

	_, err = azblob.UploadStreamToBlockBlob(ctx, progressReaderFor(f, fi.Size(), sink), b.blob(u), azblob.UploadStreamToBlockBlobOptions{
		BufferSize:      uploadChunkSize,
		MaxBuffers:      4,
		BlobHTTPHeaders: headers,
		Metadata:        metadata,
	})
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	return b.Stat(ctx, u)
}

func (b *Backend) Delete(ctx context.Context, u types.URI, opts types.DeleteOptions) error {
	if !opts.Recursive {
		_, err := b.blob(u).Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
		if err != nil {
			return errs.Wrap(err, "delete", u.String())
		}
		return nil
	}
	return b.deletePrefix(ctx, u)
}

func (b *Backend) deletePrefix(ctx context.Context, u types.URI) error {
	marker := azblob.Marker{}
	for {
		resp, err := b.container(u).ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{Prefix: u.Path})
		if err != nil {
			return errs.Wrap(err, "delete", u.String())
		}
		for _, item := range resp.Segment.BlobItems {
			blobURL := b.container(u).NewBlockBlobURL(item.Name)
			if _, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{}); err != nil {
				return errs.Wrap(err, "delete", u.String())
			}
		}
		if !resp.NextMarker.NotDone() {
			return nil
		}
		marker = resp.NextMarker
	}
}

// Copy starts an async server-side copy and polls its status, doubling the
// poll interval up to copyPollMaxInterval. If the source's ETag changes
// mid-copy, the copy is aborted and reported as an etag-changed failure
// rather than silently landing a mutated source.
func (b *Backend) Copy(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	srcInfo, err := b.Stat(ctx, src)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	srcURL := b.blob(src).URL()

	startResp, err := b.blob(dst).StartCopyFromURL(ctx, srcURL, nil, azblob.ModifiedAccessConditions{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "copy", dst.String())
	}

	deadline := time.Now().Add(b.copyPollTimeout)
	interval := copyPollInterval
	status := startResp.CopyStatus()

	for status == azblob.CopyStatusPending {
		if time.Now().After(deadline) {
			return types.ObjectInfo{}, errs.New(errs.KindTimeout, "copy", dst.String(), fmt.Errorf("copy did not complete within %s", b.copyPollTimeout))
		}
		select {
		case <-ctx.Done():
			return types.ObjectInfo{}, errs.New(errs.KindInterrupted, "copy", dst.String(), ctx.Err())
		case <-time.After(interval):
		}
		interval *= 2
		if interval > copyPollMaxInterval {
			interval = copyPollMaxInterval
		}

		currentSrc, err := b.Stat(ctx, src)
		if err == nil && currentSrc.ETag != srcInfo.ETag {
			return types.ObjectInfo{}, errs.New(errs.KindEtagChanged, "copy", dst.String(), fmt.Errorf("source mutated during copy"))
		}

		props, err := b.blob(dst).GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
		if err != nil {
			return types.ObjectInfo{}, errs.Wrap(err, "copy", dst.String())
		}
		status = props.CopyStatus()
		if sink != nil {
			done, total := parseCopyProgress(props.CopyProgress())
			sink.OnProgress(done, total)
		}
	}

	if status != azblob.CopyStatusSuccess {
		return types.ObjectInfo{}, errs.New(errs.KindInternal, "copy", dst.String(), fmt.Errorf("copy ended with status %q", status))
	}
	return b.Stat(ctx, dst)
}

// parseCopyProgress parses Azure's "bytesCopied/bytesTotal" copy-progress
// string into two integers, returning zeros if it can't be parsed.
func parseCopyProgress(progress string) (done, total int64) {
	parts := strings.SplitN(progress, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	var d, t int64
	if _, err := fmt.Sscanf(parts[0], "%d", &d); err != nil {
		return 0, 0
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &t); err != nil {
		return 0, 0
	}
	return d, t
}

func (b *Backend) Move(ctx context.Context, src, dst types.URI) (types.ObjectInfo, error) {
	return store.MoveByCopyThenDelete(ctx, b, src, dst)
}

func (b *Backend) Mkdir(ctx context.Context, u types.URI) error {
	path := u.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	blobURL := b.container(u).NewBlockBlobURL(path)
	_, err := blobURL.Upload(ctx, bytes.NewReader(nil), azblob.BlobHTTPHeaders{}, azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return errs.Wrap(err, "mkdir", u.String())
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, u types.URI) (bool, error) {
	_, err := b.blob(u).GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
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

// progressReaderFor wraps r so every Read reports cumulative bytes to sink;
// when sink is nil the original reader is returned unwrapped.
func progressReaderFor(r io.Reader, total int64, sink store.ProgressSink) io.Reader {
	if sink == nil {
		return r
	}
	return &progressReader{r: r, total: total, sink: sink}
}

type progressReader struct {
	r     io.Reader
	total int64
	done  int64
	sink  store.ProgressSink
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.done += int64(n)
		p.sink.OnProgress(p.done, p.total)
	}
	return n, err
}

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
