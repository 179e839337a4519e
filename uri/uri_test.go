package uri

import (
	"testing"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/types"
)

func TestParse_ValidSchemes(t *testing.T) {
	tests := []struct {
		raw           string
		wantScheme    types.Scheme
		wantAuthority string
		wantPath      string
	}{
		{"file:///tmp/in.txt", types.SchemeFile, "", "tmp/in.txt"},
		{"s3://bucket/key/sub", types.SchemeS3, "bucket", "key/sub"},
		{"gcs://bucket/object/", types.SchemeGCS, "bucket", "object/"},
		{"az://container/blob", types.SchemeAZ, "container", "blob"},
		{"aifs://ns/branch/asset", types.SchemeAIFS, "ns", "branch/asset"},
		{"s3://bucket", types.SchemeS3, "bucket", ""},
	}

	for _, tt := range tests {
		got, err := Parse(tt.raw)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", tt.raw, err)
		}
		if got.Scheme != tt.wantScheme || got.Authority != tt.wantAuthority || got.Path != tt.wantPath {
			t.Errorf("Parse(%q) = %+v, want {%s %s %s}", tt.raw, got, tt.wantScheme, tt.wantAuthority, tt.wantPath)
		}
	}
}

func TestParse_MalformedURI(t *testing.T) {
	_, err := Parse("not-a-uri")
	if errs.KindOf(err) != errs.KindMalformedURI {
		t.Errorf("expected malformedUri, got %v", err)
	}
}

func TestParse_UnsupportedScheme(t *testing.T) {
	_, err := Parse("ftp://host/path")
	if errs.KindOf(err) != errs.KindUnsupportedScheme {
		t.Errorf("expected unsupportedScheme, got %v", err)
	}
}

func TestParse_CollapsesDoubleSlashAndDotSegments(t *testing.T) {
	got, err := Parse("s3://bucket/a//b/./c/../d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Path != "a/b/d" {
		t.Errorf("expected normalized path a/b/d, got %q", got.Path)
	}
}

func TestParse_PreservesTrailingSlashAndCase(t *testing.T) {
	got, err := Parse("s3://Bucket/Key/Sub/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Authority != "Bucket" || got.Path != "Key/Sub/" {
		t.Errorf("expected case preserved with trailing slash, got %+v", got)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	raw := "s3://bucket/a/b/c"
	u1, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u2, err := Parse(u1.String())
	if err != nil {
		t.Fatalf("unexpected error on reparse: %v", err)
	}
	if !u1.Equal(u2) {
		t.Errorf("parse(stringify(parse(U))) != parse(U): %+v vs %+v", u1, u2)
	}
}

func TestJoin(t *testing.T) {
	base, _ := Parse("s3://bucket/dir/")
	got := Join(base, "file.txt")
	if got.Path != "dir/file.txt" {
		t.Errorf("Join: got %q, want dir/file.txt", got.Path)
	}
}

func TestParent(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"s3://b/x/y", "x/"},
		{"s3://b/x", ""},
		{"s3://b/", ""},
	}
	for _, tt := range tests {
		u, err := Parse(tt.raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.raw, err)
		}
		p := Parent(u)
		if p.Path != tt.want {
			t.Errorf("Parent(%q).Path = %q, want %q", tt.raw, p.Path, tt.want)
		}
	}
}

func TestParent_SchemeRootIsItself(t *testing.T) {
	u, _ := Parse("s3://b/")
	p := Parent(u)
	p2 := Parent(p)
	if p2.Path != p.Path || p2.Authority != p.Authority {
		t.Errorf("parent of scheme root should be itself, got %+v then %+v", p, p2)
	}
}

func TestIsDir(t *testing.T) {
	dir, _ := Parse("s3://b/x/")
	file, _ := Parse("s3://b/x")
	if !IsDir(dir) {
		t.Error("expected dir to report IsDir")
	}
	if IsDir(file) {
		t.Error("expected file to not report IsDir")
	}
}

func TestEqual_CaseSensitiveForCloudSchemes(t *testing.T) {
	a, _ := Parse("s3://Bucket/Key")
	b, _ := Parse("s3://bucket/key")
	if Equal(a, b) {
		t.Error("s3 URIs must compare case-sensitively")
	}
}
