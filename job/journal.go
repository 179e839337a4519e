package job

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/types"
)

// maxJournalFrame bounds a single record so a corrupt length prefix can't
// make recovery try to allocate an unbounded buffer.
const maxJournalFrame = 4 << 20

// Journal is an append-only log of job snapshots: one length-prefixed
// msgpack frame per write. Recovery replays every frame and keeps only
// the last one seen per job ID, since later snapshots supersede earlier
// ones for the same job.
type Journal struct {
	mu   sync.Mutex
	file *os.File
}

// OpenJournal opens (creating if necessary) the journal file at path for
// appending, and leaves the read position at the start for an immediate
// Recover call.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errs.Wrap(err, "journalOpen", path)
	}
	return &Journal{file: f}, nil
}

// Append writes one snapshot frame for j. Called after every status
// change and at most once per second during progress updates.
func (jr *Journal) Append(j types.Job) error {
	payload, err := msgpack.Marshal(j)
	if err != nil {
		return errs.Wrap(err, "journalAppend", j.ID)
	}
	if len(payload) > maxJournalFrame {
		return errs.New(errs.KindInternal, "journalAppend", j.ID, fmt.Errorf("snapshot of %d bytes exceeds frame limit", len(payload)))
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	jr.mu.Lock()
	defer jr.mu.Unlock()
	if _, err := jr.file.Write(frame); err != nil {
		return errs.Wrap(err, "journalAppend", j.ID)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (jr *Journal) Close() error {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	return jr.file.Close()
}

// Recover replays every frame in the journal at path and returns the
// last snapshot seen per job ID. A truncated trailing frame (the process
// was killed mid-write) is tolerated and simply ends replay early rather
// than failing the whole recovery.
func Recover(path string) (map[string]types.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.Job{}, nil
		}
		return nil, errs.Wrap(err, "journalRecover", path)
	}
	defer f.Close()

	jobs := make(map[string]types.Job)
	var lengthBuf [4]byte
	for {
		if _, err := io.ReadFull(f, lengthBuf[:]); err != nil {
			break
		}
		size := binary.BigEndian.Uint32(lengthBuf[:])
		if size > maxJournalFrame {
			break
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}

		var j types.Job
		if err := msgpack.Unmarshal(payload, &j); err != nil {
			continue
		}
		jobs[j.ID] = j
	}
	return jobs, nil
}
