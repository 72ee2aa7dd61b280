package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/types"
)

type ImageRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.ImageRecord) (*types.ImageRecord, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.ImageRecord, error)
}

type imageRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImageRecordRepo(db *gorm.DB, baseLog *logger.Logger) ImageRecordRepo {
	return &imageRecordRepo{db: db, log: baseLog.With("repo", "ImageRecordRepo")}
}

func (r *imageRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.ImageRecord) (*types.ImageRecord, error) {
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

func (r *imageRecordRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.ImageRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*types.ImageRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
