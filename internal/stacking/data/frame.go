package data

import (
	"context"

	"github.com/astronomyk/CrowdSky/internal/pkg/database"
	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
)

// FrameRepo implements biz.FrameRepo on PostgreSQL
type FrameRepo struct {
	db *database.DB
}

// NewFrameRepo creates a new stacked frame repository
func NewFrameRepo(db *database.DB) biz.FrameRepo {
	return &FrameRepo{db: db}
}

func (r *FrameRepo) Create(ctx context.Context, frame *models.StackedFrame) error {
	return r.db.Conn(ctx).Create(frame).Error
}

func (r *FrameRepo) GetByJobID(ctx context.Context, jobID int64) (*models.StackedFrame, error) {
	var frame models.StackedFrame
	err := r.db.Conn(ctx).Where("job_id = ?", jobID).First(&frame).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrNotFound, "stacked frame")
		}
		return nil, err
	}
	return &frame, nil
}

func (r *FrameRepo) ListByUser(ctx context.Context, userID int64) ([]*models.StackedFrame, error) {
	var frames []*models.StackedFrame
	err := r.db.Conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&frames).Error
	return frames, err
}

func (r *FrameRepo) Delete(ctx context.Context, id int64) error {
	return r.db.Conn(ctx).Delete(&models.StackedFrame{}, id).Error
}
