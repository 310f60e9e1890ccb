package biz

import (
	"context"
	"time"

	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"go.uber.org/zap"
)

// DispatchUseCase serves jobs to polling workers. Two concurrent
// claimants never receive the same job; contention on a candidate row
// is resolved by skipping it, not waiting.
type DispatchUseCase struct {
	jobs JobRepo
	tx   TxManager
	log  *logger.Logger
}

// NewDispatchUseCase creates a new dispatch use case
func NewDispatchUseCase(jobs JobRepo, tx TxManager, log *logger.Logger) *DispatchUseCase {
	return &DispatchUseCase{jobs: jobs, tx: tx, log: log}
}

// Claim hands the oldest eligible job to the worker, preferring pending
// jobs over retry ones. Returns (nil, nil) when no work is available.
func (uc *DispatchUseCase) Claim(ctx context.Context, workerID string) (*types.ClaimedJob, error) {
	if workerID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "worker id is required")
	}

	var claimed *models.StackingJob
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		claimed, err = uc.jobs.ClaimNext(ctx, workerID, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}
	if claimed == nil {
		return nil, nil
	}

	uc.log.Info("job claimed",
		zap.Int64("job_id", claimed.ID),
		zap.String("worker_id", workerID),
		zap.String("chunk_key", claimed.ChunkKey),
		zap.Int("retry_count", claimed.RetryCount))

	return &types.ClaimedJob{
		ID:         claimed.ID,
		SessionID:  claimed.SessionID,
		ChunkKey:   claimed.ChunkKey,
		Object:     claimed.Object,
		FrameCount: claimed.FrameCount,
		RetryCount: claimed.RetryCount,
		StartedAt:  derefTime(claimed.StartedAt),
	}, nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
