// Package s3 implements store.Backend over AWS S3 (and S3-compatible
// endpoints).
package s3

import (
	"context"
	"sort"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

// multipartThreshold is the size above which Put uses a multipart upload
// (spec: files >8 MiB).
const multipartThreshold = 8 << 20

// singleCopyLimit is the largest source size a single-call server-side copy
// may handle (spec: 5 GiB); above this, copy uses part-copy ranges.
const singleCopyLimit = 5 << 30

// maxParts bounds the number of multipart upload parts (spec: <= 10,000).
const maxParts = 10_000

// Config configures the S3 backend's client construction.
type Config struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
	Cred         *types.S3Cred
}

// Backend implements store.Backend over S3.
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
}

// New constructs an S3 backend using cfg. When cfg.Cred is nil, the AWS SDK
// default credential chain is used (env vars, shared config, IAM role) —
// this is the backend's fourth-and-fifth resolution tier per the
// credential resolver's precedence.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Cred != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Cred.AccessKey, cfg.Cred.Secret, cfg.Cred.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(err, "connect", "s3://")
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartThreshold
	})
	return &Backend{client: client, uploader: uploader}, nil
}

func (b *Backend) Scheme() types.Scheme { return types.SchemeS3 }

func (b *Backend) List(ctx context.Context, u types.URI, opts types.ListOptions) (types.ListResult, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = "/"
	}
	prefix := u.Path
	if opts.Prefix != "" {
		prefix = opts.Prefix
	}

	in := &s3.ListObjectsV2Input{
		Bucket:    &u.Authority,
		Prefix:    &prefix,
		Delimiter: &delim,
	}
	if opts.PageToken != "" {
		in.ContinuationToken = &opts.PageToken
	}
	if opts.PageSize > 0 {
		maxKeys := int32(opts.PageSize)
		in.MaxKeys = &maxKeys
	}

	out, err := b.client.ListObjectsV2(ctx, in)
	if err != nil {
		return types.ListResult{}, errs.Wrap(err, "list", u.String())
	}

	var items []types.ObjectInfo
	for _, p := range out.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(*p.Prefix, prefix), "/")
		items = append(items, types.ObjectInfo{
			URI:   types.URI{Scheme: types.SchemeS3, Authority: u.Authority, Path: *p.Prefix},
			Name:  name,
			IsDir: true,
		})
	}
	for _, obj := range out.Contents {
		name := strings.TrimPrefix(*obj.Key, prefix)
		if name == "" {
			continue
		}
		items = append(items, types.ObjectInfo{
			URI:          types.URI{Scheme: types.SchemeS3, Authority: u.Authority, Path: *obj.Key},
			Name:         name,
			Size:         derefInt64(obj.Size),
			LastModified: derefTime(obj.LastModified),
			ETag:         derefString(obj.ETag),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	result := types.ListResult{Items: items}
	if out.NextContinuationToken != nil {
		result.NextPageToken = *out.NextContinuationToken
	}
	return result, nil
}

func (b *Backend) Stat(ctx context.Context, u types.URI) (types.ObjectInfo, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &u.Authority, Key: &u.Path})
	if err != nil {
		if strings.HasSuffix(u.Path, "/") {
			// Directory markers: succeed if any object exists under the prefix.
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
		Size:         derefInt64(out.ContentLength),
		LastModified: derefTime(out.LastModified),
		ETag:         derefString(out.ETag),
		Checksum:     checksumFromHead(out),
	}, nil
}

func checksumFromHead(out *s3.HeadObjectOutput) string {
	if out.ChecksumSHA256 != nil && *out.ChecksumSHA256 != "" {
		return "sha256:" + *out.ChecksumSHA256
	}
	if out.ChecksumCRC32C != nil && *out.ChecksumCRC32C != "" {
		return "crc32c:" + *out.ChecksumCRC32C
	}
	return ""
}

func (b *Backend) Get(ctx context.Context, u types.URI, localPath string, _ types.GetOptions, sink store.ProgressSink) error {
	return getObject(ctx, b.client, u, localPath, sink)
}

// Put uploads localPath, delegating the single-vs-multipart decision to the
// transfer manager: objects above multipartThreshold are split into parts
// capped at maxParts.
func (b *Backend) Put(ctx context.Context, localPath string, u types.URI, opts types.PutOptions, sink store.ProgressSink) (types.ObjectInfo, error) {
	size, err := fileSize(localPath)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	if err := putViaManager(ctx, b.uploader, localPath, u, size, opts, sink); err != nil {
		return types.ObjectInfo{}, err
	}
	return b.Stat(ctx, u)
}

func (b *Backend) Delete(ctx context.Context, u types.URI, opts types.DeleteOptions) error {
	if !opts.Recursive {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &u.Authority, Key: &u.Path})
		if err != nil {
			return errs.Wrap(err, "delete", u.String())
		}
		return nil
	}
	return deletePrefix(ctx, b.client, u)
}

func (b *Backend) Copy(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	info, err := b.Stat(ctx, src)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	if info.Size <= singleCopyLimit {
		if err := copySingle(ctx, b.client, src, dst); err != nil {
			return types.ObjectInfo{}, err
		}
	} else {
		if err := copyMultipart(ctx, b.client, src, dst, info.Size, sink); err != nil {
			return types.ObjectInfo{}, err
		}
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
	empty := []byte{}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &u.Authority,
		Key:    &path,
		Body:   bytesReader(empty),
	})
	if err != nil {
		return errs.Wrap(err, "mkdir", u.String())
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, u types.URI) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &u.Authority, Key: &u.Path})
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

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

var _ store.Backend = (*Backend)(nil)
