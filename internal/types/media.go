package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImageRecord is written once per successful image analysis. Rows are
// append-only; nothing updates or deletes them.
type ImageRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string         `gorm:"column:user_id;not null;index" json:"user_id"`
	FilePath       string         `gorm:"column:file_path;not null" json:"file_path"`
	Query          string         `gorm:"column:query" json:"query"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	AnalysisResult datatypes.JSON `gorm:"column:analysis_result" json:"analysis_result"`
	TokensUsed     int            `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	Context        string         `gorm:"column:context" json:"context"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (ImageRecord) TableName() string {
	return "image_record"
}

func (r *ImageRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type DocumentRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string         `gorm:"column:user_id;not null;index" json:"user_id"`
	FilePath       string         `gorm:"column:file_path;not null" json:"file_path"`
	Query          string         `gorm:"column:query" json:"query"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	AnalysisResult datatypes.JSON `gorm:"column:analysis_result" json:"analysis_result"`
	TokensUsed     int            `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	Context        string         `gorm:"column:context" json:"context"`
	DocumentType   string         `gorm:"column:document_type" json:"document_type"`
	PageCount      int            `gorm:"column:page_count" json:"page_count"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (DocumentRecord) TableName() string {
	return "document_record"
}

func (r *DocumentRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type VideoRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string         `gorm:"column:user_id;not null;index" json:"user_id"`
	FilePath       string         `gorm:"column:file_path;not null" json:"file_path"`
	Query          string         `gorm:"column:query" json:"query"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	AnalysisResult datatypes.JSON `gorm:"column:analysis_result" json:"analysis_result"`
	TokensUsed     int            `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	Context        string         `gorm:"column:context" json:"context"`
	Duration       float64        `gorm:"column:duration" json:"duration"`
	FPS            float64        `gorm:"column:fps" json:"fps"`
	Resolution     string         `gorm:"column:resolution" json:"resolution"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (VideoRecord) TableName() string {
	return "video_record"
}

func (r *VideoRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type AudioRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string         `gorm:"column:user_id;not null;index" json:"user_id"`
	FilePath       string         `gorm:"column:file_path;not null" json:"file_path"`
	Query          string         `gorm:"column:query" json:"query"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	AnalysisResult datatypes.JSON `gorm:"column:analysis_result" json:"analysis_result"`
	TokensUsed     int            `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	Context        string         `gorm:"column:context" json:"context"`
	Duration       float64        `gorm:"column:duration" json:"duration"`
	SampleRate     int            `gorm:"column:sample_rate" json:"sample_rate"`
	Channels       int            `gorm:"column:channels" json:"channels"`
	Format         string         `gorm:"column:format" json:"format"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (AudioRecord) TableName() string {
	return "audio_record"
}

func (r *AudioRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
