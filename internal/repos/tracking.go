package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/types"
)

// UsageSummary aggregates the tracking table for the /api/usage endpoint.
type UsageSummary struct {
	TotalTokens       int64            `json:"total_tokens"`
	RequestCount      int64            `json:"request_count"`
	AvgTokensPerReq   float64          `json:"avg_tokens_per_request"`
	TokensByAgent     map[string]int64 `json:"tokens_by_agent"`
	AvgProcessingTime float64          `json:"avg_processing_time"`
	SuccessRate       float64          `json:"success_rate"`
}

type TrackingRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.TrackingRecord) (*types.TrackingRecord, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, agentType string, limit int) ([]*types.TrackingRecord, error)
	Summarize(ctx context.Context, tx *gorm.DB, userID string) (*UsageSummary, error)
}

type trackingRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrackingRecordRepo(db *gorm.DB, baseLog *logger.Logger) TrackingRecordRepo {
	return &trackingRecordRepo{db: db, log: baseLog.With("repo", "TrackingRecordRepo")}
}

func (r *trackingRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.TrackingRecord) (*types.TrackingRecord, error) {
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

func (r *trackingRecordRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, agentType string, limit int) ([]*types.TrackingRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	query := transaction.WithContext(ctx).Where("user_id = ?", userID)
	if agentType != "" {
		query = query.Where("agent_type = ?", agentType)
	}

	var results []*types.TrackingRecord
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *trackingRecordRepo) Summarize(ctx context.Context, tx *gorm.DB, userID string) (*UsageSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	base := transaction.WithContext(ctx).Model(&types.TrackingRecord{})
	if userID != "" {
		base = base.Where("user_id = ?", userID)
	}

	var totals struct {
		TotalTokens  int64
		RequestCount int64
		AvgTime      float64
		Successes    int64
	}
	if err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(tokens_used),0) AS total_tokens, COUNT(*) AS request_count, COALESCE(AVG(processing_time),0) AS avg_time, COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END),0) AS successes").
		Scan(&totals).Error; err != nil {
		return nil, err
	}

	type agentTokens struct {
		AgentType string
		Tokens    int64
	}
	var byAgent []agentTokens
	if err := base.Session(&gorm.Session{}).
		Select("agent_type, COALESCE(SUM(tokens_used),0) AS tokens").
		Group("agent_type").
		Scan(&byAgent).Error; err != nil {
		return nil, err
	}

	summary := &UsageSummary{
		TotalTokens:       totals.TotalTokens,
		RequestCount:      totals.RequestCount,
		AvgProcessingTime: totals.AvgTime,
		TokensByAgent:     make(map[string]int64, len(byAgent)),
	}
	for _, row := range byAgent {
		summary.TokensByAgent[row.AgentType] = row.Tokens
	}
	if totals.RequestCount > 0 {
		summary.AvgTokensPerReq = float64(totals.TotalTokens) / float64(totals.RequestCount)
		summary.SuccessRate = float64(totals.Successes) / float64(totals.RequestCount)
	}
	return summary, nil
}
