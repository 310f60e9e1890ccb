package biz

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/astronomyk/CrowdSky/internal/fits"
	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// allowedExtensions is the upload allow-list, lower-cased
var allowedExtensions = map[string]bool{
	".fit":  true,
	".fits": true,
}

// SessionUseCase contains business logic for upload sessions: opening,
// ingesting raw frames and finalizing into stacking jobs.
type SessionUseCase struct {
	sessions    SessionRepo
	files       FileRepo
	jobs        JobRepo
	tx          TxManager
	store       FrameStore
	maxFileSize int64
	log         *logger.Logger
}

// NewSessionUseCase creates a new session use case
func NewSessionUseCase(
	sessions SessionRepo,
	files FileRepo,
	jobs JobRepo,
	tx TxManager,
	store FrameStore,
	maxFileSize int64,
	log *logger.Logger,
) *SessionUseCase {
	return &SessionUseCase{
		sessions:    sessions,
		files:       files,
		jobs:        jobs,
		tx:          tx,
		store:       store,
		maxFileSize: maxFileSize,
		log:         log,
	}
}

// Open creates a fresh upload session for the user and allocates its
// staging directory.
func (uc *SessionUseCase) Open(ctx context.Context, userID int64) (*types.SessionInfo, error) {
	token := uuid.New().String()

	root, err := uc.store.AllocateRoot(ctx, token)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageFailed)
	}

	session := &models.UploadSession{
		Token:       token,
		UserID:      userID,
		Status:      types.SessionUploading,
		StorageRoot: root,
	}
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	return sessionInfo(session), nil
}

// Status returns the current view of the user's session.
func (uc *SessionUseCase) Status(ctx context.Context, token string, userID int64) (*types.SessionInfo, error) {
	session, err := uc.getOwned(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(session), nil
}

// Ingest validates and stores one raw frame, parses its header and
// assigns a chunk key. A frame whose timestamp cannot be bucketed is
// accepted with a null chunk key.
func (uc *SessionUseCase) Ingest(ctx context.Context, token string, userID int64, filename string, r io.Reader) (*types.IngestResult, error) {
	session, err := uc.getOwned(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != types.SessionUploading {
		return nil, apperrors.New(apperrors.ErrSessionNotUploading)
	}

	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, apperrors.New(apperrors.ErrFileTypeInvalid, filename)
	}

	// Cap the stream one byte past the limit so oversize input is
	// detected without buffering it whole.
	path, size, err := uc.store.Save(ctx, session.StorageRoot, filename, io.LimitReader(r, uc.maxFileSize+1))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageFailed)
	}
	if size > uc.maxFileSize {
		uc.discard(ctx, path)
		return nil, apperrors.New(apperrors.ErrFileTooLarge)
	}

	header, err := uc.parseStored(ctx, path)
	if err != nil {
		uc.discard(ctx, path)
		return nil, apperrors.Wrap(err, apperrors.ErrFrameInvalid, filename)
	}

	var chunkKey *string
	if header.DateObs != nil {
		if key, ok := fits.ComputeChunkKey(*header.DateObs, header.RA, header.Dec); ok {
			chunkKey = &key
		}
	}

	file := &models.RawFile{
		SessionID:    session.ID,
		UserID:       userID,
		OriginalName: filename,
		StoredPath:   path,
		SizeBytes:    size,
		ChunkKey:     chunkKey,
		DateObs:      header.DateObs,
		Object:       header.Object,
		ExpTime:      header.ExpTime,
		RA:           header.RA,
		Dec:          header.Dec,
	}

	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := uc.files.Create(ctx, file); err != nil {
			return err
		}
		return uc.sessions.ApplyIngest(ctx, session.ID, size, header.Object, header.RA, header.Dec)
	})
	if err != nil {
		uc.discard(ctx, path)
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	return &types.IngestResult{
		FileID:   file.ID,
		ChunkKey: chunkKey,
		DateObs:  header.DateObs,
		Object:   header.Object,
		ExpTime:  header.ExpTime,
		RA:       header.RA,
		Dec:      header.Dec,
	}, nil
}

// Finalize groups the session's live frames by chunk key, creates one
// pending job per group and flips the session to complete. A second
// call fails because the session has left the uploading state.
func (uc *SessionUseCase) Finalize(ctx context.Context, token string, userID int64) (*types.FinalizeResult, error) {
	session, err := uc.getOwned(ctx, token, userID)
	if err != nil {
		return nil, err
	}

	var jobIDs []int64
	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		ok, err := uc.sessions.TransitionStatus(ctx, session.ID, types.SessionUploading, types.SessionComplete, time.Now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.New(apperrors.ErrSessionNotUploading)
		}

		groups, err := uc.files.GroupByChunkKey(ctx, session.ID)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			return apperrors.New(apperrors.ErrSessionEmpty)
		}

		jobs := make([]*models.StackingJob, 0, len(groups))
		for _, g := range groups {
			jobs = append(jobs, &models.StackingJob{
				SessionID:  session.ID,
				UserID:     userID,
				ChunkKey:   g.ChunkKey,
				Object:     g.Object,
				Status:     types.JobPending,
				FrameCount: g.FrameCount,
			})
		}
		if err := uc.jobs.CreateBatch(ctx, jobs); err != nil {
			return err
		}

		for _, j := range jobs {
			jobIDs = append(jobIDs, j.ID)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}

	return &types.FinalizeResult{
		SessionToken: token,
		JobCount:     len(jobIDs),
		JobIDs:       jobIDs,
	}, nil
}

// getOwned resolves a token to a session and hides other users'
// sessions behind not-found.
func (uc *SessionUseCase) getOwned(ctx context.Context, token string, userID int64) (*models.UploadSession, error) {
	session, err := uc.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, apperrors.New(apperrors.ErrSessionNotFound)
	}
	return session, nil
}

// parseStored opens a staged frame and extracts its header.
func (uc *SessionUseCase) parseStored(ctx context.Context, path string) (*fits.Header, error) {
	f, err := uc.store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fits.ParseHeader(f)
}

// discard removes a staged frame that will not be recorded.
func (uc *SessionUseCase) discard(ctx context.Context, path string) {
	if err := uc.store.Remove(ctx, path); err != nil {
		uc.log.Warn("failed to discard staged frame",
			zap.String("path", path),
			zap.Error(err))
	}
}

func sessionInfo(s *models.UploadSession) *types.SessionInfo {
	return &types.SessionInfo{
		Token:       s.Token,
		Status:      s.Status,
		FileCount:   s.FileCount,
		TotalBytes:  s.TotalBytes,
		Object:      s.Object,
		CreatedAt:   s.CreatedAt,
		FinalizedAt: s.FinalizedAt,
	}
}
