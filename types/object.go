package types

import "time"

// ObjectInfo is returned by Backend.List and Backend.Stat.
//
// Invariant: if IsDir then URI ends with "/" and Size == 0; if not IsDir
// then URI does not end with "/".
type ObjectInfo struct {
	URI          URI
	Name         string
	Size         int64
	LastModified time.Time
	IsDir        bool
	// ETag is an opaque, provider-defined string, empty when unsupported.
	ETag string
	// Checksum is algorithm-tagged, e.g. "blake3:...", "md5:...", "crc32c:...".
	Checksum string
	Metadata map[string]string
}

// ListOptions controls a single page of a List call.
type ListOptions struct {
	Prefix    string
	Delimiter string
	PageToken string
	PageSize  int
}

// ListResult is one page of a listing.
type ListResult struct {
	Items         []ObjectInfo
	NextPageToken string
}

// PutOptions carries optional metadata for a Put call. ResumeToken, when
// non-empty, is a backend-specific checkpoint (as previously reported via
// store.ResumeSink.OnResume) that lets the backend skip work already done
// by an earlier, interrupted attempt at the same upload.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	ResumeToken string
}

// GetOptions controls a Get call. ResumeToken carries the same kind of
// backend-specific checkpoint as PutOptions.ResumeToken, used to continue
// a download that was interrupted partway (e.g. a byte range already
// written to the destination's temp file).
type GetOptions struct {
	ResumeToken string
}

// DeleteOptions controls a Delete call. Recursive tree removal against
// the local file backend refuses to cross into a mount point owned by a
// different uid unless AllowCrossDevice is set explicitly; object-store
// backends have no mount-point concept and ignore AllowCrossDevice.
type DeleteOptions struct {
	Recursive        bool
	AllowCrossDevice bool
}
