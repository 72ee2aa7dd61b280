package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/types"
)

type VideoRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.VideoRecord) (*types.VideoRecord, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.VideoRecord, error)
}

type videoRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRecordRepo(db *gorm.DB, baseLog *logger.Logger) VideoRecordRepo {
	return &videoRecordRepo{db: db, log: baseLog.With("repo", "VideoRecordRepo")}
}

func (r *videoRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.VideoRecord) (*types.VideoRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *videoRecordRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.VideoRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*types.VideoRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
