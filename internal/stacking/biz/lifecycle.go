package biz

import (
	"context"
	"io"
	"path"
	"time"

	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"go.uber.org/zap"
)

// JobUseCase drives jobs through their lifecycle after a claim:
// completion with its artifact, failure with bounded retries, worker
// file access, user-facing stack listing and deletion.
type JobUseCase struct {
	jobs     JobRepo
	files    FileRepo
	frames   FrameRepo
	sessions SessionRepo
	tx       TxManager
	store    FrameStore
	archive  ArchiveStore
	cache    StackCache
	log      *logger.Logger
}

// NewJobUseCase creates a new job use case
func NewJobUseCase(
	jobs JobRepo,
	files FileRepo,
	frames FrameRepo,
	sessions SessionRepo,
	tx TxManager,
	store FrameStore,
	archive ArchiveStore,
	cache StackCache,
	log *logger.Logger,
) *JobUseCase {
	return &JobUseCase{
		jobs:     jobs,
		files:    files,
		frames:   frames,
		sessions: sessions,
		tx:       tx,
		store:    store,
		archive:  archive,
		cache:    cache,
		log:      log,
	}
}

// ListFiles returns a claimed job's input frames ordered by observation
// time.
func (uc *JobUseCase) ListFiles(ctx context.Context, jobID int64) ([]*types.JobFile, error) {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	files, err := uc.files.ListLiveByChunk(ctx, job.SessionID, job.ChunkKey)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	out := make([]*types.JobFile, 0, len(files))
	for _, f := range files {
		out = append(out, &types.JobFile{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			SizeBytes:    f.SizeBytes,
			DateObs:      f.DateObs,
			ExpTime:      f.ExpTime,
			RA:           f.RA,
			Dec:          f.Dec,
		})
	}
	return out, nil
}

// FetchFile streams one raw frame to a worker. A soft-deleted or
// missing file reads as not found.
func (uc *JobUseCase) FetchFile(ctx context.Context, fileID int64) (*models.RawFile, io.ReadCloser, error) {
	file, err := uc.files.GetLive(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := uc.store.Open(ctx, file.StoredPath)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrFileNotFound, file.OriginalName)
	}
	return file, rc, nil
}

// Complete records a finished stack. The artifact is uploaded to the
// archive first, then one transaction flips the job to completed,
// persists the StackedFrame, releases the job's input frames and
// reclaims the session root once nothing is left in it. A job not
// currently processing rejects the report.
func (uc *JobUseCase) Complete(ctx context.Context, jobID int64, artifact *types.CompleteArtifact, stack, thumb io.Reader) error {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != types.JobProcessing {
		return apperrors.New(apperrors.ErrJobNotClaimed)
	}

	// Upload before the transaction; no lock is held across a network
	// call.
	if err := uc.archivePut(ctx, artifact.ArchivePath, stack, artifact.SizeBytes); err != nil {
		return err
	}
	if thumb != nil && artifact.ThumbnailPath != nil {
		if err := uc.archivePut(ctx, *artifact.ThumbnailPath, thumb, -1); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		ok, err := uc.jobs.TransitionStatus(ctx, job.ID, types.JobProcessing, types.JobCompleted, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.New(apperrors.ErrJobNotClaimed)
		}

		frame := &models.StackedFrame{
			JobID:         job.ID,
			UserID:        job.UserID,
			SessionID:     job.SessionID,
			ChunkKey:      job.ChunkKey,
			Object:        job.Object,
			ArchivePath:   artifact.ArchivePath,
			ThumbnailPath: artifact.ThumbnailPath,
			SizeBytes:     artifact.SizeBytes,
			FramesInput:   job.FrameCount,
			FramesAligned: artifact.FramesAligned,
			StarCount:     artifact.StarCount,
			TotalExpTime:  artifact.TotalExpTime,
			ObsStart:      artifact.ObsStart,
			ObsEnd:        artifact.ObsEnd,
			RA:            artifact.RA,
			Dec:           artifact.Dec,
		}
		if err := uc.frames.Create(ctx, frame); err != nil {
			return err
		}

		if err := uc.releaseChunkFiles(ctx, job.SessionID, job.ChunkKey); err != nil {
			return err
		}
		return uc.reclaimRootIfDrained(ctx, job.SessionID)
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	uc.cache.Invalidate(ctx, job.UserID)
	uc.log.Info("job completed",
		zap.Int64("job_id", job.ID),
		zap.String("chunk_key", job.ChunkKey),
		zap.String("archive_path", artifact.ArchivePath))
	return nil
}

// Fail records a failed attempt. The retry counter increments first;
// below the budget the job returns to the claimable retry state,
// otherwise it parks as failed. A job not currently processing rejects
// the report.
func (uc *JobUseCase) Fail(ctx context.Context, jobID int64, message string) (*types.FailResult, error) {
	var result *types.FailResult
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		job, err := uc.jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != types.JobProcessing {
			return apperrors.New(apperrors.ErrJobNotClaimed)
		}

		job.RetryCount++
		job.LastError = &message
		if job.RetryCount >= types.MaxRetries {
			job.Status = types.JobFailed
		} else {
			job.Status = types.JobRetry
			job.WorkerID = nil
		}
		if err := uc.jobs.Update(ctx, job); err != nil {
			return err
		}

		result = &types.FailResult{
			JobID:      job.ID,
			Status:     job.Status,
			RetryCount: job.RetryCount,
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	uc.log.Info("job failure reported",
		zap.Int64("job_id", jobID),
		zap.String("status", result.Status.String()),
		zap.Int("retry_count", result.RetryCount),
		zap.String("error", message))
	return result, nil
}

// ListStacks returns the user's finished stacks, served from cache when
// warm.
func (uc *JobUseCase) ListStacks(ctx context.Context, userID int64) ([]*types.StackInfo, error) {
	if stacks, ok := uc.cache.GetStacks(ctx, userID); ok {
		return stacks, nil
	}

	rows, err := uc.frames.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	stacks := make([]*types.StackInfo, 0, len(rows))
	for _, r := range rows {
		stacks = append(stacks, &types.StackInfo{
			ID:            r.ID,
			JobID:         r.JobID,
			ChunkKey:      r.ChunkKey,
			Object:        r.Object,
			ArchivePath:   r.ArchivePath,
			ThumbnailPath: r.ThumbnailPath,
			SizeBytes:     r.SizeBytes,
			FramesInput:   r.FramesInput,
			FramesAligned: r.FramesAligned,
			TotalExpTime:  r.TotalExpTime,
			CreatedAt:     r.CreatedAt,
		})
	}

	uc.cache.SetStacks(ctx, userID, stacks)
	return stacks, nil
}

// Delete removes a user's job, releasing any input frames it still
// holds and, for completed jobs, its artifact rows. Remote artifact
// deletion happens after commit and is best effort. A job currently
// processing cannot be deleted.
func (uc *JobUseCase) Delete(ctx context.Context, userID, jobID int64) error {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return apperrors.New(apperrors.ErrJobNotFound)
	}
	if job.Status == types.JobProcessing {
		return apperrors.New(apperrors.ErrConflict, "job is being processed")
	}

	var frame *models.StackedFrame
	if job.Status == types.JobCompleted {
		frame, err = uc.frames.GetByJobID(ctx, job.ID)
		if err != nil {
			return err
		}
	}

	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := uc.releaseChunkFiles(ctx, job.SessionID, job.ChunkKey); err != nil {
			return err
		}
		if frame != nil {
			if err := uc.frames.Delete(ctx, frame.ID); err != nil {
				return err
			}
		}
		if err := uc.jobs.Delete(ctx, job.ID); err != nil {
			return err
		}
		return uc.reclaimRootIfDrained(ctx, job.SessionID)
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	if frame != nil {
		uc.archiveDelete(ctx, frame.ArchivePath)
		if frame.ThumbnailPath != nil {
			uc.archiveDelete(ctx, *frame.ThumbnailPath)
		}
	}
	uc.cache.Invalidate(ctx, userID)
	return nil
}

// releaseChunkFiles unlinks and soft-deletes every live frame in a
// session+chunk-key group. A file already gone from disk is logged and
// still marked deleted.
func (uc *JobUseCase) releaseChunkFiles(ctx context.Context, sessionID int64, chunkKey string) error {
	live, err := uc.files.ListLiveByChunk(ctx, sessionID, chunkKey)
	if err != nil {
		return err
	}
	if len(live) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(live))
	for _, f := range live {
		if err := uc.store.Remove(ctx, f.StoredPath); err != nil {
			uc.log.Warn("failed to remove raw frame",
				zap.Int64("file_id", f.ID),
				zap.String("path", f.StoredPath),
				zap.Error(err))
		}
		ids = append(ids, f.ID)
	}
	return uc.files.MarkDeleted(ctx, ids)
}

// reclaimRootIfDrained removes the session staging directory once no
// live frame references it.
func (uc *JobUseCase) reclaimRootIfDrained(ctx context.Context, sessionID int64) error {
	n, err := uc.files.CountLiveBySession(ctx, sessionID)
	if err != nil || n > 0 {
		return err
	}

	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := uc.store.RemoveRootIfEmpty(ctx, session.StorageRoot); err != nil {
		uc.log.Warn("failed to reclaim session root",
			zap.Int64("session_id", sessionID),
			zap.String("root", session.StorageRoot),
			zap.Error(err))
	}
	return nil
}

func (uc *JobUseCase) archivePut(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := uc.archive.MkdirAll(ctx, dir); err != nil {
			return apperrors.Wrap(err, apperrors.ErrArchiveFailed, remotePath)
		}
	}
	if err := uc.archive.Put(ctx, remotePath, r, size); err != nil {
		return apperrors.Wrap(err, apperrors.ErrArchiveFailed, remotePath)
	}
	return nil
}

func (uc *JobUseCase) archiveDelete(ctx context.Context, remotePath string) {
	if err := uc.archive.Delete(ctx, remotePath); err != nil {
		uc.log.Warn("failed to delete archived artifact",
			zap.String("path", remotePath),
			zap.Error(err))
	}
}
