package biz

import (
	"context"
	"io"
	"time"

	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"
)

// SessionRepo defines the repository interface for upload sessions
type SessionRepo interface {
	Create(ctx context.Context, session *models.UploadSession) error
	GetByID(ctx context.Context, id int64) (*models.UploadSession, error)
	GetByToken(ctx context.Context, token string) (*models.UploadSession, error)
	// ApplyIngest bumps the session counters by one file of the given
	// size and fills object/coordinates only where still null.
	ApplyIngest(ctx context.Context, id int64, sizeBytes int64, object *string, ra, dec *float64) error
	// TransitionStatus flips status from one value to another and
	// reports whether the row was in the expected state. The row stays
	// locked for the rest of the surrounding transaction.
	TransitionStatus(ctx context.Context, id int64, from, to types.SessionStatus, at time.Time) (bool, error)
	// ListAbandoned returns sessions still uploading that were created
	// before the cutoff.
	ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]*models.UploadSession, error)
}

// FileRepo defines the repository interface for raw frame rows
type FileRepo interface {
	Create(ctx context.Context, file *models.RawFile) error
	// GetLive returns a file that has not been soft-deleted.
	GetLive(ctx context.Context, id int64) (*models.RawFile, error)
	// GroupByChunkKey aggregates a session's live files per chunk key,
	// folding files without a key into the synthetic unknown group.
	GroupByChunkKey(ctx context.Context, sessionID int64) ([]types.ChunkGroup, error)
	// ListLiveByChunk returns a job's input frames ordered by
	// observation time. The unknown chunk key selects files whose key
	// is null.
	ListLiveByChunk(ctx context.Context, sessionID int64, chunkKey string) ([]*models.RawFile, error)
	ListLiveBySession(ctx context.Context, sessionID int64) ([]*models.RawFile, error)
	CountLiveBySession(ctx context.Context, sessionID int64) (int64, error)
	MarkDeleted(ctx context.Context, ids []int64) error
}

// JobRepo defines the repository interface for the work queue
type JobRepo interface {
	CreateBatch(ctx context.Context, jobs []*models.StackingJob) error
	GetByID(ctx context.Context, id int64) (*models.StackingJob, error)
	// GetForUpdate locks the row for the rest of the surrounding
	// transaction.
	GetForUpdate(ctx context.Context, id int64) (*models.StackingJob, error)
	// ClaimNext atomically selects the oldest eligible job, flips it to
	// processing for the given worker and returns it. Returns (nil, nil)
	// when no eligible job exists. Concurrent claimants skip rows locked
	// by in-flight claims instead of blocking on them.
	ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.StackingJob, error)
	// TransitionStatus flips status from one value to another and
	// reports whether the row was in the expected state.
	TransitionStatus(ctx context.Context, id int64, from, to types.JobStatus, at time.Time) (bool, error)
	Update(ctx context.Context, job *models.StackingJob) error
	Delete(ctx context.Context, id int64) error
	// ListCompletedWithLiveFiles returns jobs completed before the
	// cutoff whose input frames were never released.
	ListCompletedWithLiveFiles(ctx context.Context, cutoff time.Time, limit int) ([]*models.StackingJob, error)
}

// FrameRepo defines the repository interface for stacked artifacts
type FrameRepo interface {
	Create(ctx context.Context, frame *models.StackedFrame) error
	GetByJobID(ctx context.Context, jobID int64) (*models.StackedFrame, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.StackedFrame, error)
	Delete(ctx context.Context, id int64) error
}

// TxManager runs a function inside a database transaction; repository
// calls made with the function's context join that transaction.
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// FrameStore is the local staging area holding raw frames between
// ingest and stacking.
type FrameStore interface {
	// AllocateRoot creates the per-session staging directory and
	// returns its path.
	AllocateRoot(ctx context.Context, token string) (string, error)
	// Save streams a frame into the session root under a collision-free
	// name and returns its path and byte size.
	Save(ctx context.Context, root, name string, r io.Reader) (string, int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
	// RemoveRootIfEmpty reclaims a session root once nothing is left
	// inside. A missing root is not an error.
	RemoveRootIfEmpty(ctx context.Context, root string) error
}

// ArchiveStore is the remote object store holding finished stacks.
type ArchiveStore interface {
	MkdirAll(ctx context.Context, remotePath string) error
	Put(ctx context.Context, remotePath string, r io.Reader, size int64) error
	Delete(ctx context.Context, remotePath string) error
}

// StackCache is a read-through cache for per-user stack listings.
// All methods are best effort; a miss or cache failure falls back to
// the database.
type StackCache interface {
	GetStacks(ctx context.Context, userID int64) ([]*types.StackInfo, bool)
	SetStacks(ctx context.Context, userID int64, stacks []*types.StackInfo)
	Invalidate(ctx context.Context, userID int64)
}
