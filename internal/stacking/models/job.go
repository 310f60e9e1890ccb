package models

import (
	"time"

	"github.com/astronomyk/CrowdSky/internal/stacking/types"
)

// StackingJob is the GORM model for stacking_jobs table. One job covers
// all frames of a session sharing a chunk key.
type StackingJob struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	SessionID   int64           `gorm:"not null;index"`
	UserID      int64           `gorm:"not null;index"`
	ChunkKey    string          `gorm:"type:varchar(64);not null"`
	Object      *string         `gorm:"type:varchar(128)"`
	Status      types.JobStatus `gorm:"type:varchar(16);not null;index:idx_jobs_status_retry"`
	RetryCount  int             `gorm:"not null;default:0;index:idx_jobs_status_retry"`
	FrameCount  int             `gorm:"not null"`
	WorkerID    *string         `gorm:"type:varchar(128)"`
	LastError   *string         `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"index"`
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TableName specifies the table name
func (StackingJob) TableName() string {
	return "stacking_jobs"
}

// StackedFrame is the GORM model for stacked_frames table, one finished
// artifact per completed job. ArchivePath and ThumbnailPath are opaque
// remote-store paths chosen by the worker.
type StackedFrame struct {
	ID            int64   `gorm:"primaryKey;autoIncrement"`
	JobID         int64   `gorm:"not null;uniqueIndex"`
	UserID        int64   `gorm:"not null;index"`
	SessionID     int64   `gorm:"not null"`
	ChunkKey      string  `gorm:"type:varchar(64);not null"`
	Object        *string `gorm:"type:varchar(128)"`
	ArchivePath   string  `gorm:"type:varchar(512);not null"`
	ThumbnailPath *string `gorm:"type:varchar(512)"`
	SizeBytes     int64   `gorm:"not null"`
	FramesInput   int     `gorm:"not null"`
	FramesAligned int     `gorm:"not null"`
	StarCount     *int
	TotalExpTime  *float64
	ObsStart      *time.Time
	ObsEnd        *time.Time
	RA            *float64
	Dec           *float64
	CreatedAt     time.Time
}

// TableName specifies the table name
func (StackedFrame) TableName() string {
	return "stacked_frames"
}
