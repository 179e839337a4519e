// Package aifs implements store.Backend over the asset information
// filesystem: a content-addressed gRPC asset service identified by the aifs
// scheme. Unlike the other backends, aifs has no notion of directories or
// server-side copy; assets are flat, checksummed blobs that may be
// referenced by snapshots elsewhere in the system.
package aifs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"lukechampine.com/blake3"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/store/aifs/aifspb"
	"github.com/justapithecus/strata/types"
)

// Config configures the AIFS backend's connection.
type Config struct {
	Endpoint string
	Token    string
}

// Backend implements store.Backend over the asset service. It satisfies the
// interface's Copy and recursive-Delete contracts only partially: Copy is
// not implemented server-side (aifs has no notion of it), and Delete refuses
// assets that a snapshot still references.
type Backend struct {
	conn  *grpc.ClientConn
	token string
}

// New dials the asset service at cfg.Endpoint over an authenticated channel.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	conn, err := grpc.Dial(cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, errs.Wrap(err, "connect", "aifs://")
	}
	return &Backend{conn: conn, token: cfg.Token}, nil
}

func (b *Backend) Scheme() types.Scheme { return types.SchemeAIFS }

func (b *Backend) callCtx(ctx context.Context) context.Context {
	if b.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+b.token)
}

func (b *Backend) List(ctx context.Context, u types.URI, opts types.ListOptions) (types.ListResult, error) {
	req := &aifspb.ListAssetsRequest{Prefix: u.Path, PageSize: int32(opts.PageSize), PageToken: opts.PageToken}
	resp := &aifspb.ListAssetsResponse{}
	if err := b.conn.Invoke(b.callCtx(ctx), "/aifs.AssetService/ListAssets", req, resp); err != nil {
		return types.ListResult{}, errs.Wrap(err, "list", u.String())
	}

	items := make([]types.ObjectInfo, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, types.ObjectInfo{
			URI:      types.URI{Scheme: types.SchemeAIFS, Authority: u.Authority, Path: item.Key},
			Name:     lastSegment(item.Key),
			Size:     item.Size,
			Checksum: item.Checksum,
		})
	}
	return types.ListResult{Items: items, NextPageToken: resp.NextPageToken}, nil
}

func (b *Backend) Stat(ctx context.Context, u types.URI) (types.ObjectInfo, error) {
	req := &aifspb.StatAssetRequest{Key: u.Path}
	resp := &aifspb.StatAssetResponse{}
	if err := b.conn.Invoke(b.callCtx(ctx), "/aifs.AssetService/StatAsset", req, resp); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "stat", u.String())
	}
	return types.ObjectInfo{
		URI:      u,
		Name:     lastSegment(resp.Key),
		Size:     resp.Size,
		Checksum: resp.Checksum,
	}, nil
}

// Get downloads an asset and verifies its BLAKE3 checksum against the
// value the service reports before the atomic rename, surfacing a mismatch
// as errs.KindChecksumMismatch rather than landing a corrupt file.
func (b *Backend) Get(ctx context.Context, u types.URI, localPath string, _ types.GetOptions, sink store.ProgressSink) error {
	req := &aifspb.GetAssetRequest{Key: u.Path}
	resp := &aifspb.GetAssetResponse{}
	if err := b.conn.Invoke(b.callCtx(ctx), "/aifs.AssetService/GetAsset", req, resp); err != nil {
		return errs.Wrap(err, "get", u.String())
	}

	sum := blake3.Sum256(resp.Data)
	got := fmt.Sprintf("blake3:%x", sum)
	if resp.Checksum != "" && resp.Checksum != got {
		return errs.New(errs.KindChecksumMismatch, "get", u.String(),
			fmt.Errorf("server checksum %s does not match computed %s", resp.Checksum, got))
	}

	tmp := localPath + ".strata-tmp"
	if err := os.WriteFile(tmp, resp.Data, 0o644); err != nil {
		return errs.Wrap(err, "get", u.String())
	}
	if sink != nil {
		sink.OnProgress(int64(len(resp.Data)), int64(len(resp.Data)))
	}
	if err := os.Rename(tmp, localPath); err != nil {
		os.Remove(tmp)
		return errs.Wrap(err, "get", u.String())
	}
	return nil
}

// Put computes the local file's BLAKE3 checksum and uploads it alongside
// the asset key; the service is expected to reject a put whose declared
// checksum doesn't match the bytes it receives.
func (b *Backend) Put(ctx context.Context, localPath string, u types.URI, opts types.PutOptions, sink store.ProgressSink) (types.ObjectInfo, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	sum := blake3.Sum256(data)
	checksum := fmt.Sprintf("blake3:%x", sum)

	req := &aifspb.PutAssetRequest{Key: u.Path, Data: data, Checksum: checksum, Metadata: opts.Metadata}
	resp := &aifspb.PutAssetResponse{}
	if err := b.conn.Invoke(b.callCtx(ctx), "/aifs.AssetService/PutAsset", req, resp); err != nil {
		return types.ObjectInfo{}, errs.Wrap(err, "put", u.String())
	}
	if sink != nil {
		sink.OnProgress(int64(len(data)), int64(len(data)))
	}
	return types.ObjectInfo{URI: u, Name: lastSegment(u.Path), Size: resp.Size, Checksum: resp.Checksum}, nil
}

func (b *Backend) Delete(ctx context.Context, u types.URI, opts types.DeleteOptions) error {
	req := &aifspb.DeleteAssetRequest{Key: u.Path}
	resp := &aifspb.DeleteAssetResponse{}
	err := b.conn.Invoke(b.callCtx(ctx), "/aifs.AssetService/DeleteAsset", req, resp)
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "referenced by") || strings.Contains(strings.ToLower(err.Error()), "snapshot") {
		return errs.New(errs.KindHasDependents, "delete", u.String(), err)
	}
	return errs.Wrap(err, "delete", u.String())
}

// Copy is not implemented: the asset service has no server-side copy
// primitive. Callers cross-scheme-streaming through scratch should fall
// back to Get+Put rather than treating this as a hard failure.
func (b *Backend) Copy(ctx context.Context, src, dst types.URI, sink store.ProgressSink) (types.ObjectInfo, error) {
	return types.ObjectInfo{}, errs.New(errs.KindNotImplemented, "copy", dst.String(), fmt.Errorf("aifs has no server-side copy"))
}

func (b *Backend) Move(ctx context.Context, src, dst types.URI) (types.ObjectInfo, error) {
	return store.MoveByCopyThenDelete(ctx, b, src, dst)
}

// Mkdir is a no-op: aifs keys are flat and have no directory concept.
func (b *Backend) Mkdir(ctx context.Context, u types.URI) error {
	return nil
}

func (b *Backend) Exists(ctx context.Context, u types.URI) (bool, error) {
	_, err := b.Stat(ctx, u)
	if err == nil {
		return true, nil
	}
	if errs.Classify(err) == errs.KindNotFound {
		return false, nil
	}
	return false, err
}

func lastSegment(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

var _ store.Backend = (*Backend)(nil)
