package biz

import (
	"context"
	"time"

	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"go.uber.org/zap"
)

// sweepBatch bounds how many rows one pass touches; an idempotent rerun
// picks up the remainder.
const sweepBatch = 100

// SweepConfig holds the sweeper age thresholds
type SweepConfig struct {
	// SessionExpiry is how long an uploading session may sit idle
	// before it is treated as abandoned.
	SessionExpiry time.Duration
	// LeftoverGrace is how long after completion lingering raw frames
	// are tolerated before being force-released.
	LeftoverGrace time.Duration
}

// SweepReport summarizes one sweeper pass
type SweepReport struct {
	SessionsExpired int           `json:"sessions_expired"`
	JobsSwept       int           `json:"jobs_swept"`
	FilesReleased   int           `json:"files_released"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

// Sweeper reclaims storage from abandoned sessions and from completed
// jobs whose cleanup never ran. Both sweeps are idempotent; per-item
// failures are logged and skipped, never fatal to the pass.
type Sweeper struct {
	sessions SessionRepo
	files    FileRepo
	jobs     JobRepo
	tx       TxManager
	store    FrameStore
	cfg      SweepConfig
	log      *logger.Logger
}

// NewSweeper creates a new sweeper
func NewSweeper(
	sessions SessionRepo,
	files FileRepo,
	jobs JobRepo,
	tx TxManager,
	store FrameStore,
	cfg SweepConfig,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		files:    files,
		jobs:     jobs,
		tx:       tx,
		store:    store,
		cfg:      cfg,
		log:      log,
	}
}

// Run executes both sweeps and reports what was reclaimed.
func (s *Sweeper) Run(ctx context.Context) (*SweepReport, error) {
	started := time.Now().UTC()
	report := &SweepReport{StartedAt: started}

	if err := s.sweepAbandonedSessions(ctx, report); err != nil {
		return nil, err
	}
	if err := s.sweepCompletedLeftovers(ctx, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(started)
	s.log.Info("sweep finished",
		zap.Int("sessions_expired", report.SessionsExpired),
		zap.Int("jobs_swept", report.JobsSwept),
		zap.Int("files_released", report.FilesReleased),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// Start runs the sweeper on a fixed interval until the context is
// cancelled.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// sweepAbandonedSessions expires uploading sessions older than the
// threshold and releases their frames.
func (s *Sweeper) sweepAbandonedSessions(ctx context.Context, report *SweepReport) error {
	cutoff := time.Now().UTC().Add(-s.cfg.SessionExpiry)
	sessions, err := s.sessions.ListAbandoned(ctx, cutoff, sweepBatch)
	if err != nil {
		return err
	}

	for _, session := range sessions {
		released, err := s.expireSession(ctx, session)
		if err != nil {
			s.log.Warn("failed to expire session",
				zap.Int64("session_id", session.ID),
				zap.Error(err))
			continue
		}
		report.SessionsExpired++
		report.FilesReleased += released
	}
	return nil
}

func (s *Sweeper) expireSession(ctx context.Context, session *models.UploadSession) (released int, err error) {
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		ok, err := s.sessions.TransitionStatus(ctx, session.ID, types.SessionUploading, types.SessionExpired, time.Now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			// Finalized or already expired since listing; nothing to do.
			return nil
		}

		live, err := s.files.ListLiveBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		released, err = s.releaseFiles(ctx, live)
		if err != nil {
			return err
		}

		if err := s.store.RemoveRootIfEmpty(ctx, session.StorageRoot); err != nil {
			s.log.Warn("failed to remove session root",
				zap.Int64("session_id", session.ID),
				zap.String("root", session.StorageRoot),
				zap.Error(err))
		}
		return nil
	})
	return released, err
}

// sweepCompletedLeftovers force-releases frames still live under jobs
// that completed before the grace period.
func (s *Sweeper) sweepCompletedLeftovers(ctx context.Context, report *SweepReport) error {
	cutoff := time.Now().UTC().Add(-s.cfg.LeftoverGrace)
	jobs, err := s.jobs.ListCompletedWithLiveFiles(ctx, cutoff, sweepBatch)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		released, err := s.sweepJob(ctx, job)
		if err != nil {
			s.log.Warn("failed to sweep completed job",
				zap.Int64("job_id", job.ID),
				zap.Error(err))
			continue
		}
		report.JobsSwept++
		report.FilesReleased += released
	}
	return nil
}

func (s *Sweeper) sweepJob(ctx context.Context, job *models.StackingJob) (released int, err error) {
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		live, err := s.files.ListLiveByChunk(ctx, job.SessionID, job.ChunkKey)
		if err != nil {
			return err
		}
		released, err = s.releaseFiles(ctx, live)
		if err != nil {
			return err
		}

		n, err := s.files.CountLiveBySession(ctx, job.SessionID)
		if err != nil || n > 0 {
			return err
		}
		session, err := s.sessions.GetByID(ctx, job.SessionID)
		if err != nil {
			return err
		}
		if err := s.store.RemoveRootIfEmpty(ctx, session.StorageRoot); err != nil {
			s.log.Warn("failed to remove session root",
				zap.Int64("session_id", session.ID),
				zap.String("root", session.StorageRoot),
				zap.Error(err))
		}
		return nil
	})
	return released, err
}

// releaseFiles unlinks frames and marks them deleted. Files already
// missing from disk are logged and still marked.
func (s *Sweeper) releaseFiles(ctx context.Context, live []*models.RawFile) (int, error) {
	if len(live) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(live))
	for _, f := range live {
		if err := s.store.Remove(ctx, f.StoredPath); err != nil {
			s.log.Warn("failed to remove raw frame",
				zap.Int64("file_id", f.ID),
				zap.String("path", f.StoredPath),
				zap.Error(err))
		}
		ids = append(ids, f.ID)
	}
	if err := s.files.MarkDeleted(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}
