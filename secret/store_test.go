package secret

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/types"
)

func TestSaveLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "correct horse battery staple")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	p := Profile{
		ID:          "prod-s3",
		Scheme:      types.SchemeS3,
		DisplayName: "Prod S3",
		Enabled:     true,
		Cred:        types.Credential{Scheme: types.SchemeS3, S3: &types.S3Cred{AccessKey: "AKIA...", Secret: "shh", Region: "us-east-1"}},
		Version:     1,
	}
	if err := s.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("prod-s3")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DisplayName != p.DisplayName || got.Cred.S3.AccessKey != "AKIA..." {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestLoad_WrongPassphraseIsUnreadable(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, "right-pass")
	if err := s.Save(Profile{ID: "x", Scheme: types.SchemeGCS}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	wrong, _ := NewStore(dir, "wrong-pass")
	_, err := wrong.Load("x")
	if err == nil {
		t.Fatal("expected an error decrypting with the wrong passphrase")
	}
	if e, ok := err.(*errs.Error); !ok || e.Hint != "unreadable" {
		t.Errorf("expected unreadable hint, got %v", err)
	}
}

func TestLoad_MissingFileIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, "pass")
	_, err := s.Load("nope")
	if errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected notFound, got %v", err)
	}
}

func TestList_ReportsUnreadableWithoutFailingWholeCall(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, "pass")
	if err := s.Save(Profile{ID: "good", Scheme: types.SchemeAZ}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0o600); err != nil {
		t.Fatalf("write corrupt record: %v", err)
	}

	statuses, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var sawGood, sawBad bool
	for _, st := range statuses {
		if st.ID == "good" && !st.Unreadable {
			sawGood = true
		}
		if st.ID == "bad" && st.Unreadable {
			sawBad = true
		}
	}
	if !sawGood || !sawBad {
		t.Errorf("expected one readable and one unreadable status, got %+v", statuses)
	}
}

func TestDelete_AbsentRecordIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, "pass")
	if err := s.Delete("never-existed"); err != nil {
		t.Errorf("Delete of absent record should not error, got %v", err)
	}
}

func TestPKCS7_RoundTrips(t *testing.T) {
	data := []byte("hello world")
	padded := pkcs7Pad(data, 16)
	if len(padded)%16 != 0 {
		t.Fatalf("padded length %d is not a multiple of 16", len(padded))
	}
	unpadded, err := pkcs7Unpad(padded)
	if err != nil {
		t.Fatalf("pkcs7Unpad: %v", err)
	}
	if string(unpadded) != string(data) {
		t.Errorf("unpad got %q, want %q", unpadded, data)
	}
}
