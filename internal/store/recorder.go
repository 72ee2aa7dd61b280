package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/repos"
	"github.com/omniquery/omniquery-backend/internal/types"
)

// Table names the media repos write to, reused by tracking rows.
const (
	TableImage    = "image_record"
	TableDocument = "document_record"
	TableVideo    = "video_record"
	TableAudio    = "audio_record"
)

type MediaPersist struct {
	UserID   string
	FilePath string
	Query    string
	Metadata map[string]any
	Analysis map[string]any
	Tokens   int
	Context  string

	// document
	DocumentType string
	PageCount    int

	// video
	Duration   float64
	FPS        float64
	Resolution string

	// audio
	SampleRate int
	Channels   int
	Format     string
}

type TrackEvent struct {
	UserID         string
	AgentType      string
	Table          string
	RecordID       string
	Query          string
	Tokens         int
	ProcessingTime float64
	Success        bool
	ErrorMessage   string
}

// Recorder is the persistence facade the pipelines write through. Media rows
// are written only on success; a tracking row is written on every attempt.
// Storage errors are logged and absorbed so a full pipeline result is never
// lost to a database hiccup.
type Recorder interface {
	SaveImage(ctx context.Context, p MediaPersist) string
	SaveDocument(ctx context.Context, p MediaPersist) string
	SaveVideo(ctx context.Context, p MediaPersist) string
	SaveAudio(ctx context.Context, p MediaPersist) string
	Track(ctx context.Context, ev TrackEvent)
}

type recorder struct {
	images    repos.ImageRecordRepo
	documents repos.DocumentRecordRepo
	videos    repos.VideoRecordRepo
	audios    repos.AudioRecordRepo
	tracking  repos.TrackingRecordRepo
	log       *logger.Logger
	now       func() time.Time
}

func NewRecorder(
	images repos.ImageRecordRepo,
	documents repos.DocumentRecordRepo,
	videos repos.VideoRecordRepo,
	audios repos.AudioRecordRepo,
	tracking repos.TrackingRecordRepo,
	baseLog *logger.Logger,
) Recorder {
	return &recorder{
		images:    images,
		documents: documents,
		videos:    videos,
		audios:    audios,
		tracking:  tracking,
		log:       baseLog.With("service", "Recorder"),
		now:       time.Now,
	}
}

// RecordID builds the synthetic media row reference, e.g. "img_1712345678".
// Second-resolution timestamps can collide under concurrency; the id is a
// loose reference for audit rows, not a key.
func RecordID(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%d", prefix, at.Unix())
}

func (r *recorder) SaveImage(ctx context.Context, p MediaPersist) string {
	id := RecordID("img", r.now())
	rec := &types.ImageRecord{
		UserID:         p.UserID,
		FilePath:       p.FilePath,
		Query:          p.Query,
		Metadata:       toJSON(p.Metadata),
		AnalysisResult: toJSON(p.Analysis),
		TokensUsed:     p.Tokens,
		Context:        p.Context,
	}
	if _, err := r.images.Create(ctx, nil, rec); err != nil {
		r.log.Error("Failed to persist image record", "user_id", p.UserID, "error", err)
	}
	return id
}

func (r *recorder) SaveDocument(ctx context.Context, p MediaPersist) string {
	id := RecordID("doc", r.now())
	rec := &types.DocumentRecord{
		UserID:         p.UserID,
		FilePath:       p.FilePath,
		Query:          p.Query,
		Metadata:       toJSON(p.Metadata),
		AnalysisResult: toJSON(p.Analysis),
		TokensUsed:     p.Tokens,
		Context:        p.Context,
		DocumentType:   p.DocumentType,
		PageCount:      p.PageCount,
	}
	if _, err := r.documents.Create(ctx, nil, rec); err != nil {
		r.log.Error("Failed to persist document record", "user_id", p.UserID, "error", err)
	}
	return id
}

func (r *recorder) SaveVideo(ctx context.Context, p MediaPersist) string {
	id := RecordID("vid", r.now())
	rec := &types.VideoRecord{
		UserID:         p.UserID,
		FilePath:       p.FilePath,
		Query:          p.Query,
		Metadata:       toJSON(p.Metadata),
		AnalysisResult: toJSON(p.Analysis),
		TokensUsed:     p.Tokens,
		Context:        p.Context,
		Duration:       p.Duration,
		FPS:            p.FPS,
		Resolution:     p.Resolution,
	}
	if _, err := r.videos.Create(ctx, nil, rec); err != nil {
		r.log.Error("Failed to persist video record", "user_id", p.UserID, "error", err)
	}
	return id
}

func (r *recorder) SaveAudio(ctx context.Context, p MediaPersist) string {
	id := RecordID("aud", r.now())
	rec := &types.AudioRecord{
		UserID:         p.UserID,
		FilePath:       p.FilePath,
		Query:          p.Query,
		Metadata:       toJSON(p.Metadata),
		AnalysisResult: toJSON(p.Analysis),
		TokensUsed:     p.Tokens,
		Context:        p.Context,
		Duration:       p.Duration,
		SampleRate:     p.SampleRate,
		Channels:       p.Channels,
		Format:         p.Format,
	}
	if _, err := r.audios.Create(ctx, nil, rec); err != nil {
		r.log.Error("Failed to persist audio record", "user_id", p.UserID, "error", err)
	}
	return id
}

func (r *recorder) Track(ctx context.Context, ev TrackEvent) {
	rec := &types.TrackingRecord{
		UserID:         ev.UserID,
		AgentType:      ev.AgentType,
		Table:          ev.Table,
		RecordID:       ev.RecordID,
		Query:          ev.Query,
		TokensUsed:     ev.Tokens,
		ProcessingTime: ev.ProcessingTime,
		Success:        ev.Success,
		ErrorMessage:   ev.ErrorMessage,
	}
	if _, err := r.tracking.Create(ctx, nil, rec); err != nil {
		r.log.Error("Failed to persist tracking record",
			"user_id", ev.UserID,
			"agent_type", ev.AgentType,
			"error", err,
		)
	}
}

func toJSON(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return datatypes.JSON([]byte("{}"))
	}
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}
