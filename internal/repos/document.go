package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/types"
)

type DocumentRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.DocumentRecord) (*types.DocumentRecord, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.DocumentRecord, error)
}

type documentRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRecordRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRecordRepo {
	return &documentRecordRepo{db: db, log: baseLog.With("repo", "DocumentRecordRepo")}
}

func (r *documentRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.DocumentRecord) (*types.DocumentRecord, error) {
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

func (r *documentRecordRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.DocumentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*types.DocumentRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
