package agents

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/observability"
	"github.com/omniquery/omniquery-backend/internal/platform/localmedia"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/platform/modelapi"
	"github.com/omniquery/omniquery-backend/internal/store"
)

// Frames sampled per video, evenly spaced inside the clip.
const videoFrameCount = 6

type VideoAgent struct {
	log      *logger.Logger
	model    modelapi.Client
	tools    localmedia.Tools
	files    *fileStore
	recorder store.Recorder
	enhancer Enhancer
}

func NewVideoAgent(d Deps) *VideoAgent {
	log := d.Log.With("agent", "video")
	return &VideoAgent{
		log:      log,
		model:    d.Model,
		tools:    d.Tools,
		files:    newFileStore(d.DataDir, log),
		recorder: d.Recorder,
		enhancer: d.Enhancer,
	}
}

func (a *VideoAgent) QuickAnalyze(ctx context.Context, sourcePath, query, userID string) ProcessingResult {
	return a.run(ctx, sourcePath, query, userID, ModeQuick)
}

func (a *VideoAgent) Process(ctx context.Context, sourcePath, query, userID string) ProcessingResult {
	return a.run(ctx, sourcePath, query, userID, ModeFull)
}

func (a *VideoAgent) run(ctx context.Context, sourcePath, query, userID, mode string) ProcessingResult {
	start := time.Now()
	durablePath := ""

	fail := func(err error) ProcessingResult {
		a.log.Error("Video pipeline failed", "user_id", userID, "mode", mode, "error", err)
		a.recorder.Track(ctx, store.TrackEvent{
			UserID:         userID,
			AgentType:      "video",
			Table:          store.TableVideo,
			Query:          query,
			ProcessingTime: time.Since(start).Seconds(),
			Success:        false,
			ErrorMessage:   err.Error(),
		})
		a.files.Cleanup(sourcePath, durablePath)
		observability.Current().ObservePipelineRun("video", mode, false, time.Since(start))
		return failureResult(query, mode, start, err)
	}

	path, err := a.files.Save("videos", sourcePath, userID)
	if err != nil {
		return fail(err)
	}
	durablePath = path

	probe, err := a.tools.ProbeVideo(ctx, durablePath)
	if err != nil {
		return fail(stageErr(StageExtract, err))
	}
	if probe.Duration <= 0 {
		return fail(stageErrf(StageExtract, "could not determine video duration"))
	}

	frameDir, err := os.MkdirTemp("", "videoframes")
	if err != nil {
		return fail(stageErrf(StageExtract, "temp dir: %w", err))
	}
	defer os.RemoveAll(frameDir)

	timestamps := localmedia.FrameTimestamps(probe.Duration, videoFrameCount)
	var frames []modelapi.ContentPart
	for i, ts := range timestamps {
		framePath := filepath.Join(frameDir, fmt.Sprintf("frame_%02d.jpg", i+1))
		if extractErr := a.tools.ExtractFrame(ctx, durablePath, ts, framePath); extractErr != nil {
			a.log.Warn("Frame extraction failed", "timestamp", ts, "error", extractErr)
			continue
		}
		raw, readErr := os.ReadFile(framePath)
		if readErr != nil {
			a.log.Warn("Frame read failed", "path", framePath, "error", readErr)
			continue
		}
		frames = append(frames, modelapi.ImagePart(
			"data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(raw)))
	}
	if len(frames) == 0 {
		return fail(stageErrf(StageExtract, "no frames could be extracted"))
	}

	prompt := strings.TrimSpace(query)
	if prompt == "" {
		prompt = "Describe what happens in this video."
	}
	content := append([]modelapi.ContentPart{
		modelapi.TextPart(fmt.Sprintf(
			"These are %d frames sampled evenly from a %.1fs video. %s",
			len(frames), probe.Duration, prompt)),
	}, frames...)

	res, err := a.model.Chat(ctx, []modelapi.ChatMessage{
		{Role: "system", Content: "You are an expert video analyst reasoning over sampled frames."},
		{Role: "user", Content: content},
	}, modelapi.ChatOptions{MaxTokens: analysisMaxTokens})
	if err != nil {
		return fail(stageErr(StageAnalyze, err))
	}

	tokens := res.TotalTokens
	enhanced := ""
	enhanceTokens := 0
	if mode == ModeFull {
		var enhErr error
		enhanced, enhanceTokens, enhErr = a.enhancer.EnhanceAnalysis(ctx, crew.MediaVideo, query, res.Text)
		if enhErr != nil {
			a.log.Warn("Video enhancement failed, keeping base analysis", "error", enhErr)
			enhanced, enhanceTokens = "", 0
		}
		tokens += enhanceTokens
	}

	videoInfo := map[string]any{
		"duration":        probe.Duration,
		"fps":             probe.FPS,
		"resolution":      probe.Resolution,
		"frames_analyzed": len(frames),
	}

	recordID := a.recorder.SaveVideo(ctx, store.MediaPersist{
		UserID:   userID,
		FilePath: durablePath,
		Query:    query,
		Metadata: videoInfo,
		Analysis: map[string]any{
			"analysis":          res.Text,
			"enhanced_response": enhanced,
		},
		Tokens:     tokens,
		Duration:   probe.Duration,
		FPS:        probe.FPS,
		Resolution: probe.Resolution,
	})
	a.recorder.Track(ctx, store.TrackEvent{
		UserID:         userID,
		AgentType:      "video",
		Table:          store.TableVideo,
		RecordID:       recordID,
		Query:          query,
		Tokens:         tokens,
		ProcessingTime: time.Since(start).Seconds(),
		Success:        true,
	})

	a.files.Cleanup(sourcePath, durablePath)
	observability.Current().ObservePipelineRun("video", mode, true, time.Since(start))

	result := map[string]any{
		"analysis": res.Text,
		"technical_details": map[string]any{
			"model_used":      res.Model,
			"tokens_used":     tokens,
			"processing_time": time.Since(start).Seconds(),
		},
		"video_info": videoInfo,
		"file_paths": map[string]any{
			"original": sourcePath,
			"stored":   durablePath,
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
