package types

import "time"

// SessionInfo is the API view of an upload session
type SessionInfo struct {
	Token       string        `json:"token"`
	Status      SessionStatus `json:"status"`
	FileCount   int64         `json:"file_count"`
	TotalBytes  int64         `json:"total_bytes"`
	Object      *string       `json:"object,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	FinalizedAt *time.Time    `json:"finalized_at,omitempty"`
}

// IngestResult describes one accepted raw frame
type IngestResult struct {
	FileID   int64    `json:"file_id"`
	ChunkKey *string  `json:"chunk_key"`
	DateObs  *string  `json:"date_obs,omitempty"`
	Object   *string  `json:"object,omitempty"`
	ExpTime  *float64 `json:"exp_time,omitempty"`
	RA       *float64 `json:"ra,omitempty"`
	Dec      *float64 `json:"dec,omitempty"`
}

// FinalizeResult summarizes the jobs created when a session is closed
type FinalizeResult struct {
	SessionToken string  `json:"session_token"`
	JobCount     int     `json:"job_count"`
	JobIDs       []int64 `json:"job_ids"`
}

// ChunkGroup is one chunk key with its frame count and any object name
// observed among the group's frames
type ChunkGroup struct {
	ChunkKey   string  `json:"chunk_key"`
	FrameCount int     `json:"frame_count"`
	Object     *string `json:"object,omitempty"`
}
