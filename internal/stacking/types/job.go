package types

import "time"

// ClaimedJob is handed to a worker when it wins a claim
type ClaimedJob struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	ChunkKey   string    `json:"chunk_key"`
	Object     *string   `json:"object,omitempty"`
	FrameCount int       `json:"frame_count"`
	RetryCount int       `json:"retry_count"`
	StartedAt  time.Time `json:"started_at"`
}

// JobFile describes one raw frame a worker should fetch for a job,
// ordered by observation time
type JobFile struct {
	ID           int64    `json:"id"`
	OriginalName string   `json:"original_name"`
	SizeBytes    int64    `json:"size_bytes"`
	DateObs      *string  `json:"date_obs,omitempty"`
	ExpTime      *float64 `json:"exp_time,omitempty"`
	RA           *float64 `json:"ra,omitempty"`
	Dec          *float64 `json:"dec,omitempty"`
}

// CompleteArtifact carries the worker-reported metadata for a finished
// stack. Paths are opaque remote-store locations chosen by the worker.
type CompleteArtifact struct {
	ArchivePath   string     `json:"archive_path" binding:"required"`
	ThumbnailPath *string    `json:"thumbnail_path"`
	SizeBytes     int64      `json:"size_bytes" binding:"required,gt=0"`
	FramesAligned int        `json:"frames_aligned" binding:"gte=0"`
	StarCount     *int       `json:"star_count"`
	TotalExpTime  *float64   `json:"total_exp_time"`
	ObsStart      *time.Time `json:"obs_start"`
	ObsEnd        *time.Time `json:"obs_end"`
	RA            *float64   `json:"ra"`
	Dec           *float64   `json:"dec"`
}

// FailJobRequest reports a failed attempt
type FailJobRequest struct {
	Error string `json:"error" binding:"required"`
}

// FailResult tells the worker where the job landed after a failure report
type FailResult struct {
	JobID      int64     `json:"job_id"`
	Status     JobStatus `json:"status"`
	RetryCount int       `json:"retry_count"`
}

// StackInfo is the API view of a finished stacked frame
type StackInfo struct {
	ID            int64     `json:"id"`
	JobID         int64     `json:"job_id"`
	ChunkKey      string    `json:"chunk_key"`
	Object        *string   `json:"object,omitempty"`
	ArchivePath   string    `json:"archive_path"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	FramesInput   int       `json:"frames_input"`
	FramesAligned int       `json:"frames_aligned"`
	TotalExpTime  *float64  `json:"total_exp_time,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
