// Package errs defines the closed error taxonomy shared by every backend,
// the credential resolver, the planner, and the job engine.
//
// Backends never return raw SDK errors or bare strings to callers; they
// classify the underlying failure into a Kind via Wrap, following the same
// ordered-pattern-table approach the storage layer has always used for
// third-party error classification.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of error kinds surfaced across the core. See
// SPEC_FULL.md and spec.md §7 for the policy governing each kind.
type Kind string

const (
	KindMalformedURI      Kind = "malformedUri"
	KindUnsupportedScheme Kind = "unsupportedScheme"
	KindNotFound          Kind = "notFound"
	KindPermission        Kind = "permission"
	KindAuthentication    Kind = "authentication"
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindChecksumMismatch  Kind = "checksumMismatch"
	KindSizeLimit         Kind = "sizeLimit"
	KindEtagChanged       Kind = "etagChanged"
	KindNotEmpty          Kind = "notEmpty"
	KindNotImplemented    Kind = "notImplemented"
	KindHasDependents     Kind = "hasDependents"
	KindInterrupted       Kind = "interrupted"
	KindOutOfScratch      Kind = "outOfScratch"
	KindInternal          Kind = "internal"
)

// Retryable reports whether the engine should retry an operation that
// failed with this kind, per spec.md §7's policy table.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is the wrapper every backend and core component returns. It never
// carries credential material; URI is safe to log and display.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "list", "put", "copy".
	Op string
	// URI is the object/scheme URI involved, never a credential.
	URI string
	// Hint is a short actionable suggestion shown to the user.
	Hint string
	// Err is the underlying cause, kept for errors.Is/As traversal.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		fmt.Fprintf(&b, " during %s", e.Op)
	}
	if e.URI != "" {
		fmt.Fprintf(&b, " (%s)", e.URI)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " — %s", e.Hint)
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target matches this error's Kind, so callers can write
// errors.Is(err, errs.KindNotFound) — actually Kind is not itself an error,
// so Is compares against another *Error with the same Kind, or against one
// of the Is<Kind> sentinel values below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs a classified Error.
func New(kind Kind, op, uri string, err error) *Error {
	return &Error{Kind: kind, Op: op, URI: uri, Err: err}
}

// WithHint attaches a hint and returns the receiver, for fluent construction.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the Kind carried by err if it is (or wraps) an *Error,
// otherwise KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// pattern pairs message substrings with the Kind they indicate. Order
// matters: more specific patterns must precede general ones, mirroring the
// classifier tables cloud SDKs have always needed because error types
// across S3/GCS/Azure/gRPC don't share a common taxonomy.
type pattern struct {
	substrs []string
	kind    Kind
}

var classifierTable = []pattern{
	{[]string{"AccessDenied", "Forbidden", "403"}, KindPermission},
	{[]string{"permission denied", "EACCES"}, KindPermission},
	{[]string{"no such file", "does not exist", "not found", "ENOENT", "404", "NoSuchKey", "NoSuchBucket", "ObjectNotExist", "BlobNotFound"}, KindNotFound},
	{[]string{"PreconditionFailed", "ETag", "precondition"}, KindEtagChanged},
	{[]string{"directory not empty", "ENOTEMPTY"}, KindNotEmpty},
	{[]string{"EntityTooLarge", "exceeds the maximum", "too large"}, KindSizeLimit},
	{[]string{"checksum mismatch", "corrupt"}, KindChecksumMismatch},
	{[]string{"timeout", "timed out", "deadline exceeded", "context deadline exceeded"}, KindTimeout},
	{[]string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests", "ResourceExhausted"}, KindNetwork},
	{[]string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized", "Unauthenticated"}, KindAuthentication},
	{[]string{"connection refused", "no route to host", "network unreachable",
		"DNS", "dial tcp", "i/o timeout", "EOF", "broken pipe", "Unavailable"}, KindNetwork},
}

// Classify maps an arbitrary underlying error to a Kind using an ordered
// substring table, checking typed interfaces (net.Error's Timeout) first.
// Returns KindInternal when nothing matches.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return KindTimeout
	}

	msg := err.Error()
	for _, entry := range classifierTable {
		if containsAny(msg, entry.substrs...) {
			return entry.kind
		}
	}
	return KindInternal
}

// Wrap classifies err and wraps it as an *Error for op against uri.
// Returns nil if err is nil.
func Wrap(err error, op, uri string) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return New(Classify(err), op, uri, err)
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
