// Package state persists a small opaque document on behalf of whatever
// shell (TUI, GUI, scripted caller) sits on top of the job engine: last
// visited URI per pane, selection index, divider position, last active
// provider. The core never parses the document; it only moves bytes
// atomically to and from disk.
package state

import (
	"os"
	"path/filepath"

	"github.com/justapithecus/strata/errs"
)

// Store persists one opaque document at Path, rewriting it atomically
// (write to a sibling temp file, then rename) so a crash mid-write never
// leaves a torn file behind.
type Store struct {
	Path string
}

// NewStore returns a Store writing to path, creating its parent
// directory if necessary.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(err, "stateStoreInit", path)
		}
	}
	return &Store{Path: path}, nil
}

// Load returns the document's raw bytes. A document that has never been
// saved is reported as errs.KindNotFound rather than an empty document,
// so callers can distinguish "nothing saved yet" from "saved as empty".
func (s *Store) Load() ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.KindNotFound, "stateLoad", s.Path, err)
		}
		return nil, errs.Wrap(err, "stateLoad", s.Path)
	}
	return data, nil
}

// Save atomically replaces the document with doc. The body is treated
// as opaque: no schema is imposed or validated here.
func (s *Store) Save(doc []byte) error {
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, doc, 0o644); err != nil {
		return errs.Wrap(err, "stateSave", s.Path)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(err, "stateSave", s.Path)
	}
	return nil
}
