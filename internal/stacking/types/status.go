package types

// SessionStatus tracks an upload session through its lifecycle
type SessionStatus string

const (
	// SessionUploading accepts new raw frames
	SessionUploading SessionStatus = "uploading"
	// SessionComplete has been finalized; its jobs are queued
	SessionComplete SessionStatus = "complete"
	// SessionExpired was abandoned and swept
	SessionExpired SessionStatus = "expired"
)

// Valid reports whether s is a known session status
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionUploading, SessionComplete, SessionExpired:
		return true
	}
	return false
}

func (s SessionStatus) String() string { return string(s) }

// JobStatus tracks a stacking job through the work queue
type JobStatus string

const (
	// JobPending is queued and has never been claimed
	JobPending JobStatus = "pending"
	// JobProcessing is claimed by a worker
	JobProcessing JobStatus = "processing"
	// JobRetry failed and is eligible for another claim
	JobRetry JobStatus = "retry"
	// JobFailed exhausted its retry budget
	JobFailed JobStatus = "failed"
	// JobCompleted produced a stacked frame
	JobCompleted JobStatus = "completed"
)

// Valid reports whether s is a known job status
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobRetry, JobFailed, JobCompleted:
		return true
	}
	return false
}

func (s JobStatus) String() string { return string(s) }

// Terminal reports whether a job in this status can never be claimed again
func (s JobStatus) Terminal() bool {
	return s == JobFailed || s == JobCompleted
}

// MaxRetries is the number of failure reports a job may accumulate
// before it is parked as failed.
const MaxRetries = 3

// UnknownChunkKey groups frames whose headers yielded no chunk key.
// They still get stacked, just in a bucket of their own per session.
const UnknownChunkKey = "unknown"
