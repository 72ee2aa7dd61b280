package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackingRecord is the audit row written exactly once per pipeline attempt,
// on success and on failure alike. RecordID is the caller-supplied synthetic
// id of the media row ("img_1712345678" style); it is not a foreign key.
type TrackingRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string    `gorm:"column:user_id;not null;index" json:"user_id"`
	AgentType      string    `gorm:"column:agent_type;not null;index" json:"agent_type"`
	Table          string    `gorm:"column:table_name;not null" json:"table_name"`
	RecordID       string    `gorm:"column:record_id;not null" json:"record_id"`
	Query          string    `gorm:"column:query" json:"query"`
	TokensUsed     int       `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	ProcessingTime float64   `gorm:"column:processing_time" json:"processing_time"`
	Success        bool      `gorm:"column:success;not null" json:"success"`
	ErrorMessage   string    `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (TrackingRecord) TableName() string {
	return "tracking_record"
}

func (r *TrackingRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
