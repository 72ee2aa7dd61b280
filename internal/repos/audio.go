package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/types"
)

type AudioRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.AudioRecord) (*types.AudioRecord, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.AudioRecord, error)
}

type audioRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAudioRecordRepo(db *gorm.DB, baseLog *logger.Logger) AudioRecordRepo {
	return &audioRecordRepo{db: db, log: baseLog.With("repo", "AudioRecordRepo")}
}

func (r *audioRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.AudioRecord) (*types.AudioRecord, error) {
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

func (r *audioRecordRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.AudioRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*types.AudioRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
