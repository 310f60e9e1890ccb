package models

import (
	"time"

	"github.com/astronomyk/CrowdSky/internal/stacking/types"
)

// UploadSession is the GORM model for upload_sessions table. Clients
// address sessions by Token; counters and the best-effort pointing
// metadata accumulate while status is uploading.
type UploadSession struct {
	ID          int64               `gorm:"primaryKey;autoIncrement"`
	Token       string              `gorm:"type:varchar(36);not null;uniqueIndex"`
	UserID      int64               `gorm:"not null;index"`
	Status      types.SessionStatus `gorm:"type:varchar(16);not null;index:idx_sessions_status_created"`
	StorageRoot string              `gorm:"type:varchar(512);not null"`
	FileCount   int64               `gorm:"not null;default:0"`
	TotalBytes  int64               `gorm:"not null;default:0"`
	Object      *string             `gorm:"type:varchar(128)"`
	RA          *float64
	Dec         *float64
	CreatedAt   time.Time `gorm:"index:idx_sessions_status_created"`
	UpdatedAt   time.Time
	FinalizedAt *time.Time
}

// TableName specifies the table name
func (UploadSession) TableName() string {
	return "upload_sessions"
}

// RawFile is the GORM model for raw_files table. StoredPath points at the
// staging copy on local disk. IsDeleted and the physical unlink are always
// updated together; a row is never re-materialized once deleted.
type RawFile struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	SessionID    int64   `gorm:"not null;index"`
	UserID       int64   `gorm:"not null;index"`
	OriginalName string  `gorm:"type:varchar(255);not null"`
	StoredPath   string  `gorm:"type:varchar(512);not null"`
	SizeBytes    int64   `gorm:"not null"`
	ChunkKey     *string `gorm:"type:varchar(64);index"`
	DateObs      *string `gorm:"type:varchar(64)"`
	Object       *string `gorm:"type:varchar(128)"`
	ExpTime      *float64
	RA           *float64
	Dec          *float64
	IsDeleted    bool `gorm:"not null;default:false;index"`
	CreatedAt    time.Time
}

// TableName specifies the table name
func (RawFile) TableName() string {
	return "raw_files"
}
