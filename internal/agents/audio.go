package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/observability"
	"github.com/omniquery/omniquery-backend/internal/platform/localmedia"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/platform/modelapi"
	"github.com/omniquery/omniquery-backend/internal/store"
)

type AudioAgent struct {
	log      *logger.Logger
	model    modelapi.Client
	tools    localmedia.Tools
	files    *fileStore
	recorder store.Recorder
	enhancer Enhancer
}

func NewAudioAgent(d Deps) *AudioAgent {
	log := d.Log.With("agent", "audio")
	return &AudioAgent{
		log:      log,
		model:    d.Model,
		tools:    d.Tools,
		files:    newFileStore(d.DataDir, log),
		recorder: d.Recorder,
		enhancer: d.Enhancer,
	}
}

func (a *AudioAgent) QuickAnalyze(ctx context.Context, sourcePath, query, userID string) ProcessingResult {
	return a.run(ctx, sourcePath, query, userID, ModeQuick)
}

func (a *AudioAgent) Process(ctx context.Context, sourcePath, query, userID string) ProcessingResult {
	return a.run(ctx, sourcePath, query, userID, ModeFull)
}

func (a *AudioAgent) run(ctx context.Context, sourcePath, query, userID, mode string) ProcessingResult {
	start := time.Now()
	durablePath := ""

	fail := func(err error) ProcessingResult {
		a.log.Error("Audio pipeline failed", "user_id", userID, "mode", mode, "error", err)
		a.recorder.Track(ctx, store.TrackEvent{
			UserID:         userID,
			AgentType:      "audio",
			Table:          store.TableAudio,
			Query:          query,
			ProcessingTime: time.Since(start).Seconds(),
			Success:        false,
			ErrorMessage:   err.Error(),
		})
		a.files.Cleanup(sourcePath, durablePath)
		observability.Current().ObservePipelineRun("audio", mode, false, time.Since(start))
		return failureResult(query, mode, start, err)
	}

	path, err := a.files.Save("audio", sourcePath, userID)
	if err != nil {
		return fail(err)
	}
	durablePath = path

	// Probe failures only cost metadata; transcription decides success.
	probe, probeErr := a.tools.ProbeAudio(ctx, durablePath)
	if probeErr != nil {
		a.log.Warn("Audio probe failed", "path", durablePath, "error", probeErr)
	}

	transcript, err := a.model.Transcribe(ctx, durablePath)
	if err != nil {
		return fail(stageErr(StageExtract, err))
	}
	if transcript.Text == "" {
		return fail(stageErrf(StageExtract, "transcription returned no text"))
	}
	if probe.Duration == 0 && transcript.Duration > 0 {
		probe.Duration = transcript.Duration
	}

	prompt := strings.TrimSpace(query)
	if prompt == "" {
		prompt = "Summarize this audio."
	}
	text := clipText(transcript.Text, documentTextBudget)

	res, err := a.model.Chat(ctx, []modelapi.ChatMessage{
		{Role: "system", Content: "You are an expert audio analyst working from a transcript."},
		{Role: "user", Content: fmt.Sprintf("Transcript:\n%s\n\nQuestion: %s", text, prompt)},
	}, modelapi.ChatOptions{MaxTokens: analysisMaxTokens})
	if err != nil {
		return fail(stageErr(StageAnalyze, err))
	}

	tokens := res.TotalTokens
	enhanced := ""
	enhanceTokens := 0
	if mode == ModeFull {
		var enhErr error
		enhanced, enhanceTokens, enhErr = a.enhancer.EnhanceAnalysis(ctx, crew.MediaAudio, query, res.Text)
		if enhErr != nil {
			a.log.Warn("Audio enhancement failed, keeping base analysis", "error", enhErr)
			enhanced, enhanceTokens = "", 0
		}
		tokens += enhanceTokens
	}

	audioInfo := map[string]any{
		"duration":    probe.Duration,
		"sample_rate": probe.SampleRate,
		"channels":    probe.Channels,
		"format":      probe.Format,
		"language":    transcript.Language,
		"segments":    transcript.Segments,
	}

	recordID := a.recorder.SaveAudio(ctx, store.MediaPersist{
		UserID:   userID,
		FilePath: durablePath,
		Query:    query,
		Metadata: audioInfo,
		Analysis: map[string]any{
			"transcription":     transcript.Text,
			"analysis":          res.Text,
			"enhanced_response": enhanced,
		},
		Tokens:     tokens,
		Duration:   probe.Duration,
		SampleRate: probe.SampleRate,
		Channels:   probe.Channels,
		Format:     probe.Format,
	})
	a.recorder.Track(ctx, store.TrackEvent{
		UserID:         userID,
		AgentType:      "audio",
		Table:          store.TableAudio,
		RecordID:       recordID,
		Query:          query,
		Tokens:         tokens,
		ProcessingTime: time.Since(start).Seconds(),
		Success:        true,
	})

	a.files.Cleanup(sourcePath, durablePath)
	observability.Current().ObservePipelineRun("audio", mode, true, time.Since(start))

	result := map[string]any{
		"transcription": transcript.Text,
		"analysis":      res.Text,
		"technical_details": map[string]any{
			"model_used":      res.Model,
			"tokens_used":     tokens,
			"processing_time": time.Since(start).Seconds(),
		},
		"audio_info": audioInfo,
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
