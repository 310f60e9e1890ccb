package data

import (
	"context"
	"time"

	"github.com/astronomyk/CrowdSky/internal/pkg/database"
	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"gorm.io/gorm"
)

// SessionRepo implements biz.SessionRepo on PostgreSQL
type SessionRepo struct {
	db *database.DB
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *database.DB) biz.SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, session *models.UploadSession) error {
	return r.db.Conn(ctx).Create(session).Error
}

func (r *SessionRepo) GetByID(ctx context.Context, id int64) (*models.UploadSession, error) {
	var session models.UploadSession
	err := r.db.Conn(ctx).First(&session, id).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrSessionNotFound)
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*models.UploadSession, error) {
	var session models.UploadSession
	err := r.db.Conn(ctx).Where("token = ?", token).First(&session).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrSessionNotFound)
		}
		return nil, err
	}
	return &session, nil
}

// ApplyIngest bumps counters and fills object/coordinates first-wins,
// guarded on the session still accepting uploads.
func (r *SessionRepo) ApplyIngest(ctx context.Context, id int64, sizeBytes int64, object *string, ra, dec *float64) error {
	res := r.db.Conn(ctx).Model(&models.UploadSession{}).
		Where("id = ? AND status = ?", id, types.SessionUploading).
		Updates(map[string]interface{}{
			"file_count":  gorm.Expr("file_count + 1"),
			"total_bytes": gorm.Expr("total_bytes + ?", sizeBytes),
			"object":      gorm.Expr("COALESCE(object, ?)", object),
			"ra":          gorm.Expr("COALESCE(ra, ?)", ra),
			"dec":         gorm.Expr("COALESCE(dec, ?)", dec),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrSessionNotUploading)
	}
	return nil
}

func (r *SessionRepo) TransitionStatus(ctx context.Context, id int64, from, to types.SessionStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if to == types.SessionComplete {
		updates["finalized_at"] = at
	}

	res := r.db.Conn(ctx).Model(&models.UploadSession{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SessionRepo) ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]*models.UploadSession, error) {
	var sessions []*models.UploadSession
	err := r.db.Conn(ctx).
		Where("status = ? AND created_at < ?", types.SessionUploading, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}
