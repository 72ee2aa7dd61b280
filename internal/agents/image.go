package agents

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/observability"
	"github.com/omniquery/omniquery-backend/internal/platform/localmedia"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/platform/modelapi"
	"github.com/omniquery/omniquery-backend/internal/store"
)

const (
	analysisMaxTokens = 1500
	thumbnailWidth    = 256
)

// Deps is the dependency bundle shared by all media agents.
type Deps struct {
	Log      *logger.Logger
	Model    modelapi.Client
	Tools    localmedia.Tools
	Recorder store.Recorder
	Enhancer Enhancer
	DataDir  string
}

type ImageAgent struct {
	log      *logger.Logger
	model    modelapi.Client
	files    *fileStore
	recorder store.Recorder
	enhancer Enhancer
}

func NewImageAgent(d Deps) *ImageAgent {
	log := d.Log.With("agent", "image")
	return &ImageAgent{
		log:      log,
		model:    d.Model,
		files:    newFileStore(d.DataDir, log),
		recorder: d.Recorder,
		enhancer: d.Enhancer,
	}
}

func (a *ImageAgent) QuickAnalyze(ctx context.Context, sourcePath, query, userID string) ProcessingResult {
	return a.run(ctx, sourcePath, query, userID, ModeQuick)
}

func (a *ImageAgent) Process(ctx context.Context, sourcePath, query, userID string) ProcessingResult {
	return a.run(ctx, sourcePath, query, userID, ModeFull)
}

func (a *ImageAgent) run(ctx context.Context, sourcePath, query, userID, mode string) ProcessingResult {
	start := time.Now()
	durablePath := ""

	fail := func(err error) ProcessingResult {
		a.log.Error("Image pipeline failed", "user_id", userID, "mode", mode, "error", err)
		a.recorder.Track(ctx, store.TrackEvent{
			UserID:         userID,
			AgentType:      "image",
			Table:          store.TableImage,
			Query:          query,
			ProcessingTime: time.Since(start).Seconds(),
			Success:        false,
			ErrorMessage:   err.Error(),
		})
		a.files.Cleanup(sourcePath, durablePath)
		observability.Current().ObservePipelineRun("image", mode, false, time.Since(start))
		return failureResult(query, mode, start, err)
	}

	path, err := a.files.Save("images", sourcePath, userID)
	if err != nil {
		return fail(err)
	}
	durablePath = path

	raw, err := os.ReadFile(durablePath)
	if err != nil {
		return fail(stageErrf(StageExtract, "read image: %w", err))
	}

	width, height, format := 0, 0, strings.TrimPrefix(strings.ToLower(filepath.Ext(durablePath)), ".")
	if cfg, fmtName, decErr := image.DecodeConfig(bytes.NewReader(raw)); decErr == nil {
		width, height, format = cfg.Width, cfg.Height, fmtName
	} else {
		a.log.Warn("Could not decode image dimensions", "path", durablePath, "error", decErr)
	}

	thumbnailPath := a.writeThumbnail(durablePath)

	dataURL := fmt.Sprintf("data:%s;base64,%s", imageMime(durablePath), base64.StdEncoding.EncodeToString(raw))
	prompt := strings.TrimSpace(query)
	if prompt == "" {
		prompt = "Describe this image in detail."
	}

	res, err := a.model.Chat(ctx, []modelapi.ChatMessage{
		{Role: "system", Content: "You are an expert image analyst. Ground every statement in what is visible."},
		{Role: "user", Content: []modelapi.ContentPart{
			modelapi.TextPart(prompt),
			modelapi.ImagePart(dataURL),
		}},
	}, modelapi.ChatOptions{MaxTokens: analysisMaxTokens})
	if err != nil {
		return fail(stageErr(StageAnalyze, err))
	}

	tokens := res.TotalTokens
	enhanced := ""
	enhanceTokens := 0
	if mode == ModeFull {
		enhanced, enhanceTokens = a.enhance(ctx, query, res.Text)
		tokens += enhanceTokens
	}

	imageInfo := map[string]any{
		"width":     width,
		"height":    height,
		"format":    format,
		"file_size": len(raw),
	}

	recordID := a.recorder.SaveImage(ctx, store.MediaPersist{
		UserID:   userID,
		FilePath: durablePath,
		Query:    query,
		Metadata: imageInfo,
		Analysis: map[string]any{
			"analysis":          res.Text,
			"enhanced_response": enhanced,
		},
		Tokens: tokens,
	})
	a.recorder.Track(ctx, store.TrackEvent{
		UserID:         userID,
		AgentType:      "image",
		Table:          store.TableImage,
		RecordID:       recordID,
		Query:          query,
		Tokens:         tokens,
		ProcessingTime: time.Since(start).Seconds(),
		Success:        true,
	})

	a.files.Cleanup(sourcePath, durablePath)
	observability.Current().ObservePipelineRun("image", mode, true, time.Since(start))

	result := map[string]any{
		"analysis": res.Text,
		"technical_details": map[string]any{
			"model_used":      res.Model,
			"tokens_used":     tokens,
			"processing_time": time.Since(start).Seconds(),
		},
		"image_info": imageInfo,
		"file_paths": map[string]any{
			"original":  sourcePath,
			"stored":    durablePath,
			"thumbnail": thumbnailPath,
		},
		"processing_mode": mode,
		"status":          "completed",
	}
	if mode == ModeFull {
		result["enhanced_response"] = enhanced
		result["technical_details"].(map[string]any)["token_breakdown"] = map[string]any{
			"analysis":    res.TotalTokens,
			"enhancement": enhanceTokens,
		}
	}

	return ProcessingResult{
		Success:          true,
		Tokens:           tokens,
		Result:           result,
		Query:            query,
		ProcessingMethod: mode,
		ProcessingTime:   time.Since(start).Seconds(),
	}
}

func (a *ImageAgent) enhance(ctx context.Context, query, analysis string) (string, int) {
	enhanced, tokens, err := a.enhancer.EnhanceAnalysis(ctx, crew.MediaImage, query, analysis)
	if err != nil {
		a.log.Warn("Image enhancement failed, keeping base analysis", "error", err)
		return "", 0
	}
	return enhanced, tokens
}

// writeThumbnail renders a small preview next to the durable copy.
// Failures only cost the preview.
func (a *ImageAgent) writeThumbnail(imagePath string) string {
	img, err := imaging.Open(imagePath)
	if err != nil {
		a.log.Warn("Thumbnail decode failed", "path", imagePath, "error", err)
		return ""
	}
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

	ext := filepath.Ext(imagePath)
	thumbPath := strings.TrimSuffix(imagePath, ext) + "_thumb.jpg"
	if err := imaging.Save(thumb, thumbPath); err != nil {
		a.log.Warn("Thumbnail save failed", "path", thumbPath, "error", err)
		return ""
	}
	return thumbPath
}

func imageMime(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
