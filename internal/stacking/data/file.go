package data

import (
	"context"
	"fmt"

	"github.com/astronomyk/CrowdSky/internal/pkg/database"
	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"
)

// FileRepo implements biz.FileRepo on PostgreSQL
type FileRepo struct {
	db *database.DB
}

// NewFileRepo creates a new raw file repository
func NewFileRepo(db *database.DB) biz.FileRepo {
	return &FileRepo{db: db}
}

func (r *FileRepo) Create(ctx context.Context, file *models.RawFile) error {
	return r.db.Conn(ctx).Create(file).Error
}

func (r *FileRepo) GetLive(ctx context.Context, id int64) (*models.RawFile, error) {
	var file models.RawFile
	err := r.db.Conn(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&file).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrFileNotFound)
		}
		return nil, err
	}
	return &file, nil
}

// GroupByChunkKey folds key-less files into the synthetic unknown group
// alongside the named groups.
func (r *FileRepo) GroupByChunkKey(ctx context.Context, sessionID int64) ([]types.ChunkGroup, error) {
	keyExpr := fmt.Sprintf("COALESCE(chunk_key, '%s')", types.UnknownChunkKey)

	var groups []types.ChunkGroup
	err := r.db.Conn(ctx).Model(&models.RawFile{}).
		Select(keyExpr+" AS chunk_key, COUNT(*) AS frame_count, MAX(object) AS object").
		Where("session_id = ? AND is_deleted = ?", sessionID, false).
		Group(keyExpr).
		Order("chunk_key ASC").
		Scan(&groups).Error
	return groups, err
}

func (r *FileRepo) ListLiveByChunk(ctx context.Context, sessionID int64, chunkKey string) ([]*models.RawFile, error) {
	q := r.db.Conn(ctx).Where("session_id = ? AND is_deleted = ?", sessionID, false)
	if chunkKey == types.UnknownChunkKey {
		q = q.Where("chunk_key IS NULL")
	} else {
		q = q.Where("chunk_key = ?", chunkKey)
	}

	var files []*models.RawFile
	err := q.Order("date_obs ASC, id ASC").Find(&files).Error
	return files, err
}

func (r *FileRepo) ListLiveBySession(ctx context.Context, sessionID int64) ([]*models.RawFile, error) {
	var files []*models.RawFile
	err := r.db.Conn(ctx).
		Where("session_id = ? AND is_deleted = ?", sessionID, false).
		Order("id ASC").
		Find(&files).Error
	return files, err
}

func (r *FileRepo) CountLiveBySession(ctx context.Context, sessionID int64) (int64, error) {
	var n int64
	err := r.db.Conn(ctx).Model(&models.RawFile{}).
		Where("session_id = ? AND is_deleted = ?", sessionID, false).
		Count(&n).Error
	return n, err
}

func (r *FileRepo) MarkDeleted(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Conn(ctx).Model(&models.RawFile{}).
		Where("id IN ?", ids).
		Update("is_deleted", true).Error
}
