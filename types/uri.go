package types

import "strings"

// Scheme identifies which backend a URI routes to.
type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeS3   Scheme = "s3"
	SchemeGCS  Scheme = "gcs"
	SchemeAZ   Scheme = "az"
	SchemeAIFS Scheme = "aifs"
)

// URI is the normalized form of scheme://authority/path. authority is the
// bucket/container/namespace; empty for file. path is slash-separated; a
// trailing "/" denotes a directory or prefix.
type URI struct {
	Scheme    Scheme
	Authority string
	Path      string
}

// IsDir reports whether u addresses a directory/prefix.
func (u URI) IsDir() bool {
	return u.Path == "" || strings.HasSuffix(u.Path, "/")
}

// String renders u back into scheme://authority/path form.
func (u URI) String() string {
	var b strings.Builder
	b.WriteString(string(u.Scheme))
	b.WriteString("://")
	b.WriteString(u.Authority)
	if u.Path != "" {
		if !strings.HasPrefix(u.Path, "/") && u.Authority != "" {
			b.WriteString("/")
		}
		b.WriteString(u.Path)
	}
	return b.String()
}

// Equal reports scheme-sensitive equality. file:// comparison is handled by
// the caller per-OS case-folding rule; URI.Equal here is the byte-exact
// comparison used for every other scheme.
func (u URI) Equal(other URI) bool {
	return u.Scheme == other.Scheme && u.Authority == other.Authority && u.Path == other.Path
}
