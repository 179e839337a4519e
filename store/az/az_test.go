package az

import (
	"testing"

	"github.com/justapithecus/strata/store"
)

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"container-root/": "container-root",
		"a/b/c.txt":       "c.txt",
		"a/b/c/":          "c",
		"":                "",
	}
	for in, want := range cases {
		if got := lastSegment(in); got != want {
			t.Errorf("lastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCopyProgress_Valid(t *testing.T) {
	done, total := parseCopyProgress("512/1024")
	if done != 512 || total != 1024 {
		t.Errorf("parseCopyProgress = %d/%d, want 512/1024", done, total)
	}
}

func TestParseCopyProgress_Malformed(t *testing.T) {
	done, total := parseCopyProgress("not-a-progress-string")
	if done != 0 || total != 0 {
		t.Errorf("expected zeros for malformed progress, got %d/%d", done, total)
	}
}

func TestPageSize_DefaultsWhenUnset(t *testing.T) {
	if got := pageSize(0); got != 5000 {
		t.Errorf("pageSize(0) = %d, want 5000", got)
	}
	if got := pageSize(10); got != 10 {
		t.Errorf("pageSize(10) = %d, want 10", got)
	}
}

func TestNew_RequiresAccountName(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected an error when account name is empty")
	}
}

type recordingSink struct {
	calls []int64
}

func (r *recordingSink) OnProgress(bytesDone, bytesTotal int64) {
	r.calls = append(r.calls, bytesDone)
}

func TestProgressReaderFor_NilSinkPassesThrough(t *testing.T) {
	r := progressReaderFor(nil, 0, nil)
	if r != nil {
		t.Error("expected nil passthrough when both reader and sink are nil")
	}
}

var _ store.Backend = (*Backend)(nil)
var _ store.ProgressSink = (*recordingSink)(nil)
