// Package uri parses and normalizes the scheme://authority/path strings
// that route every operation to a backend.
package uri

import (
	"runtime"
	"strings"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/types"
)

var validSchemes = map[types.Scheme]bool{
	types.SchemeFile: true,
	types.SchemeS3:   true,
	types.SchemeGCS:  true,
	types.SchemeAZ:   true,
	types.SchemeAIFS: true,
}

// Parse parses raw into a normalized URI. Percent-encoded characters are
// preserved exactly, never decoded for routing.
func Parse(raw string) (types.URI, error) {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return types.URI{}, errs.New(errs.KindMalformedURI, "parse", raw, nil).WithHint("missing scheme://")
	}

	scheme := types.Scheme(raw[:idx])
	if !validSchemes[scheme] {
		return types.URI{}, errs.New(errs.KindUnsupportedScheme, "parse", raw, nil).
			WithHint("supported schemes: file, s3, gcs, az, aifs")
	}

	rest := raw[idx+3:]
	var authority, path string
	if slash := strings.Index(rest, "/"); slash >= 0 {
		authority = rest[:slash]
		path = rest[slash+1:]
	} else {
		authority = rest
		path = ""
	}

	path = normalizePath(path)

	return types.URI{Scheme: scheme, Authority: authority, Path: path}, nil
}

// normalizePath collapses "//" and resolves "." and ".." segments without
// touching percent-encoding or case.
func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	trailingSlash := strings.HasSuffix(path, "/")

	segments := strings.Split(path, "/")
	var out []string
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}

	result := strings.Join(out, "/")
	if trailingSlash && result != "" {
		result += "/"
	}
	return result
}

// Join appends segment to base, returning a new URI. If base is not a
// directory, segment is appended after inserting a separator.
func Join(base types.URI, segment string) types.URI {
	segment = strings.TrimPrefix(segment, "/")
	if base.Path == "" {
		return types.URI{Scheme: base.Scheme, Authority: base.Authority, Path: segment}
	}
	prefix := base.Path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return types.URI{Scheme: base.Scheme, Authority: base.Authority, Path: prefix + segment}
}

// Parent returns the parent directory of u. The parent of a scheme root is
// itself; the parent of a bucket/authority root is the scheme root.
func Parent(u types.URI) types.URI {
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		return types.URI{Scheme: u.Scheme, Authority: u.Authority, Path: ""}
	}
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return types.URI{Scheme: u.Scheme, Authority: u.Authority, Path: ""}
	}
	return types.URI{Scheme: u.Scheme, Authority: u.Authority, Path: path[:idx+1]}
}

// IsDir reports whether u addresses a directory (empty path or trailing
// slash).
func IsDir(u types.URI) bool {
	return u.IsDir()
}

// Equal reports scheme-sensitive equality of a and b. For file:// URIs,
// path comparison honors the host OS's case sensitivity; every other
// scheme is compared byte-exact.
func Equal(a, b types.URI) bool {
	if a.Scheme != b.Scheme {
		return false
	}
	if a.Scheme == types.SchemeFile {
		if a.Authority != b.Authority {
			return false
		}
		if caseInsensitiveFS() {
			return strings.EqualFold(a.Path, b.Path)
		}
	}
	return a.Equal(b)
}

// caseInsensitiveFS reports whether the host OS's filesystem is
// case-insensitive (case-preserving) by default.
func caseInsensitiveFS() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return true
	default:
		return false
	}
}
