package types

import "time"

// JobKind is the closed set of operations a Job composes.
type JobKind string

const (
	JobUpload   JobKind = "upload"
	JobDownload JobKind = "download"
	JobCopy     JobKind = "copy"
	JobMove     JobKind = "move"
	JobDelete   JobKind = "delete"
	JobMkdir    JobKind = "mkdir"
)

// JobStatus is the closed set of job lifecycle states. Transitions are
// monotonic: pending -> running -> {paused <-> running}* -> terminal, where
// terminal is one of completed, failed, canceled.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Terminal reports whether s is one of the job's terminal states.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

// Progress is a monotonically non-decreasing snapshot of a job's transfer
// state, delivered to subscribers at least once per second for transfers
// over 1 MiB and once on completion.
type Progress struct {
	BytesDone  int64
	BytesTotal int64 // 0 means unknown
	Message    string
}

// JobOptions carries operation-specific tuning passed at enqueue time
// (content type/metadata for uploads, recursive flag for delete, etc).
// Kept as a string map so the engine and journal don't need a variant type
// per JobKind.
type JobOptions map[string]string

// Job is the durable unit of work scheduled by the engine.
type Job struct {
	ID          string
	Kind        JobKind
	Source      URI
	Destination *URI
	Status      JobStatus
	Progress    Progress
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Error       string
	Options     JobOptions
	// ResumeToken is opaque backend-specific resume state (GCS resumable
	// session URL, S3 multipart upload ID + completed parts).
	ResumeToken string
}

// RegistryEntry binds a scheme to the backend instance and profile
// currently serving it. The core maintains one active entry per scheme;
// multi-profile selection across panes is the shell's concern.
type RegistryEntry struct {
	Scheme    Scheme
	ProfileID string
}
