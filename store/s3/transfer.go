package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/types"
)

// partCopyChunkSize is the size of each part in a multipart server-side
// copy, chosen so the number of parts stays within maxParts for the
// largest objects this backend is expected to handle.
const partCopyChunkSize = 512 << 20 // 512 MiB

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func derefTime(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return *p
}

func getObject(ctx context.Context, client *s3.Client, u types.URI, localPath string, sink store.ProgressSink) error {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &u.Authority, Key: &u.Path})
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}
	defer out.Body.Close()

	tmp := localPath + ".strata-tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.Wrap(err, "get", u.String())
	}

	total := derefInt64(out.ContentLength)
	var done int64
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			f.Close()
			os.Remove(tmp)
			return errs.New(errs.KindInterrupted, "get", u.String(), ctx.Err())
		default:
		}

		n, rerr := out.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(tmp)
				return errs.Wrap(werr, "get", u.String())
			}
			done += int64(n)
			if sink != nil {
				sink.OnProgress(done, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			os.Remove(tmp)
			return errs.Wrap(rerr, "get", u.String())
		}
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

// putViaManager uploads localPath through the transfer manager, which
// chooses single-part vs multipart based on the configured part size and
// reports progress as each chunk is read off disk.
func putViaManager(ctx context.Context, uploader *manager.Uploader, localPath string, u types.URI, size int64, opts types.PutOptions, sink store.ProgressSink) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errs.Wrap(err, "put", u.String())
	}
	defer f.Close()

	body := io.Reader(f)
	if sink != nil {
		body = &progressReader{r: f, total: size, sink: sink}
	}

	in := &s3.PutObjectInput{Bucket: &u.Authority, Key: &u.Path, Body: body}
	if opts.ContentType != "" {
		in.ContentType = &opts.ContentType
	}
	if opts.Metadata != nil {
		in.Metadata = opts.Metadata
	}

	if _, err := uploader.Upload(ctx, in); err != nil {
		return errs.Wrap(err, "put", u.String())
	}
	return nil
}

// progressReader reports cumulative bytes read to a sink as the transfer
// manager streams a file in upload parts.
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

// completeMultipart issues CompleteMultipartUpload for a server-side copy and,
// because a success HTTP response can still carry an embedded <Error> in the
// body, checks the response for that case and surfaces it as a failure.
func completeMultipart(ctx context.Context, client *s3.Client, u types.URI, uploadID *string, parts []s3types.CompletedPart) (*s3.CompleteMultipartUploadOutput, error) {
	out, err := client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket: &u.Authority, Key: &u.Path, UploadId: uploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return nil, errs.Wrap(err, "copy", u.String())
	}
	// Embedded-error case: AWS can return 200 OK with an <Error> body.
	if out.Bucket == nil && out.Key == nil && out.Location == nil {
		return nil, errs.New(errs.KindInternal, "copy", u.String(), fmt.Errorf("CompleteMultipartUpload returned an empty success body, treating as embedded error"))
	}
	return out, nil
}

func abortMultipart(ctx context.Context, client *s3.Client, u types.URI, uploadID *string) {
	_, _ = client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket: &u.Authority, Key: &u.Path, UploadId: uploadID,
	})
}

func copySingle(ctx context.Context, client *s3.Client, src, dst types.URI) error {
	source := src.Authority + "/" + src.Path
	_, err := client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket: &dst.Authority, Key: &dst.Path, CopySource: &source,
	})
	if err != nil {
		return errs.Wrap(err, "copy", dst.String())
	}
	return nil
}

// copyMultipart copies a source object larger than singleCopyLimit using
// part-copy ranges, aborting and cleaning up the upload on any failure.
func copyMultipart(ctx context.Context, client *s3.Client, src, dst types.URI, size int64, sink store.ProgressSink) error {
	create, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: &dst.Authority, Key: &dst.Path,
	})
	if err != nil {
		return errs.Wrap(err, "copy", dst.String())
	}
	uploadID := create.UploadId
	source := src.Authority + "/" + src.Path

	var parts []s3types.CompletedPart
	var partNum int32 = 1
	var done int64

	for offset := int64(0); offset < size; offset += partCopyChunkSize {
		select {
		case <-ctx.Done():
			abortMultipart(ctx, client, dst, uploadID)
			return errs.New(errs.KindInterrupted, "copy", dst.String(), ctx.Err())
		default:
		}

		end := offset + partCopyChunkSize - 1
		if end >= size {
			end = size - 1
		}
		byteRange := fmt.Sprintf("bytes=%d-%d", offset, end)
		num := partNum

		out, err := client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
			Bucket: &dst.Authority, Key: &dst.Path, UploadId: uploadID,
			PartNumber: &num, CopySource: &source, CopySourceRange: &byteRange,
		})
		if err != nil {
			abortMultipart(ctx, client, dst, uploadID)
			return errs.Wrap(err, "copy", dst.String())
		}
		parts = append(parts, s3types.CompletedPart{PartNumber: &num, ETag: out.CopyPartResult.ETag})
		done = end + 1
		if sink != nil {
			sink.OnProgress(done, size)
		}
		partNum++
	}

	if _, err := completeMultipart(ctx, client, dst, uploadID, parts); err != nil {
		abortMultipart(ctx, client, dst, uploadID)
		return err
	}
	return nil
}

func deletePrefix(ctx context.Context, client *s3.Client, u types.URI) error {
	prefix := u.Path
	var continuation *string
	for {
		listOut, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: &u.Authority, Prefix: &prefix, ContinuationToken: continuation,
		})
		if err != nil {
			return errs.Wrap(err, "delete", u.String())
		}
		if len(listOut.Contents) == 0 {
			break
		}

		objects := make([]s3types.ObjectIdentifier, len(listOut.Contents))
		for i, obj := range listOut.Contents {
			objects[i] = s3types.ObjectIdentifier{Key: obj.Key}
		}
		if _, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &u.Authority, Delete: &s3types.Delete{Objects: objects},
		}); err != nil {
			return errs.Wrap(err, "delete", u.String())
		}

		if !derefBool(listOut.IsTruncated) {
			break
		}
		continuation = listOut.NextContinuationToken
	}
	return nil
}

func derefBool(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}
