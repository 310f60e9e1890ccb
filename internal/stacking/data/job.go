package data

import (
	"context"
	"time"

	"github.com/astronomyk/CrowdSky/internal/pkg/database"
	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"gorm.io/gorm/clause"
)

// JobRepo implements biz.JobRepo on PostgreSQL
type JobRepo struct {
	db *database.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *database.DB) biz.JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) CreateBatch(ctx context.Context, jobs []*models.StackingJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.db.Conn(ctx).Create(&jobs).Error
}

func (r *JobRepo) GetByID(ctx context.Context, id int64) (*models.StackingJob, error) {
	var job models.StackingJob
	err := r.db.Conn(ctx).First(&job, id).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrJobNotFound)
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepo) GetForUpdate(ctx context.Context, id int64) (*models.StackingJob, error) {
	var job models.StackingJob
	err := r.db.Conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&job, id).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrJobNotFound)
		}
		return nil, err
	}
	return &job, nil
}

// ClaimNext selects the oldest claimable job with SKIP LOCKED so
// concurrent claimants pass over rows locked by in-flight claims
// instead of queueing behind them. Pending jobs are offered before
// retry ones. Must run inside a transaction.
func (r *JobRepo) ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.StackingJob, error) {
	job, err := r.lockNext(ctx, "status = ?", types.JobPending)
	if err != nil {
		return nil, err
	}
	if job == nil {
		job, err = r.lockNext(ctx, "status = ? AND retry_count < ?", types.JobRetry, types.MaxRetries)
		if err != nil || job == nil {
			return nil, err
		}
	}

	job.Status = types.JobProcessing
	job.WorkerID = &workerID
	job.StartedAt = &now
	job.UpdatedAt = now

	err = r.db.Conn(ctx).Model(&models.StackingJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":     types.JobProcessing,
			"worker_id":  workerID,
			"started_at": now,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) lockNext(ctx context.Context, cond string, args ...interface{}) (*models.StackingJob, error) {
	var job models.StackingJob
	err := r.db.Conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where(cond, args...).
		Order("created_at ASC, id ASC").
		First(&job).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepo) TransitionStatus(ctx context.Context, id int64, from, to types.JobStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case types.JobCompleted:
		updates["completed_at"] = at
	case types.JobProcessing:
		updates["started_at"] = at
	}

	res := r.db.Conn(ctx).Model(&models.StackingJob{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *JobRepo) Update(ctx context.Context, job *models.StackingJob) error {
	return r.db.Conn(ctx).Save(job).Error
}

func (r *JobRepo) Delete(ctx context.Context, id int64) error {
	return r.db.Conn(ctx).Delete(&models.StackingJob{}, id).Error
}

// ListCompletedWithLiveFiles finds completed jobs older than the cutoff
// whose session+chunk-key group still has undeleted raw files.
func (r *JobRepo) ListCompletedWithLiveFiles(ctx context.Context, cutoff time.Time, limit int) ([]*models.StackingJob, error) {
	var jobs []*models.StackingJob
	err := r.db.Conn(ctx).
		Where("status = ? AND completed_at < ?", types.JobCompleted, cutoff).
		Where(`EXISTS (
			SELECT 1 FROM raw_files rf
			WHERE rf.session_id = stacking_jobs.session_id
			  AND rf.is_deleted = false
			  AND (rf.chunk_key = stacking_jobs.chunk_key
			       OR (rf.chunk_key IS NULL AND stacking_jobs.chunk_key = ?)))`, types.UnknownChunkKey).
		Order("completed_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
