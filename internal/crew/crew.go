package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omniquery/omniquery-backend/internal/platform/envutil"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/platform/modelapi"
)

// MediaType is the closed set of modalities the crew routes between.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
)

type QueryInput struct {
	Query     string
	MediaType string
	UserID    string
	Context   string
}

type Result struct {
	Success           bool           `json:"success"`
	Result            string         `json:"result"`
	AgentUsed         string         `json:"agent_used"`
	MediaType         string         `json:"media_type"`
	Tokens            int            `json:"tokens"`
	ProcessingDetails map[string]any `json:"processing_details"`
	Error             string         `json:"error,omitempty"`
}

// Crew runs the router/specialist/synthesis role sequence against the
// hosted model, one chat call per task, each task fed the previous output.
type Crew struct {
	log       *logger.Logger
	model     modelapi.Client
	cfg       *Config
	maxTokens int
}

func New(log *logger.Logger, model modelapi.Client, cfg *Config) *Crew {
	return &Crew{
		log:       log.With("service", "Crew"),
		model:     model,
		cfg:       cfg,
		maxTokens: envutil.Int("CREW_MAX_TOKENS", 1500),
	}
}

// ResolveMediaType maps arbitrary input onto the closed enum. Anything
// unrecognized is routed to the document specialist and logged.
func (c *Crew) ResolveMediaType(raw string) MediaType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "image":
		return MediaImage
	case "document", "text", "":
		return MediaDocument
	case "audio":
		return MediaAudio
	case "video":
		return MediaVideo
	default:
		c.log.Warn("Unknown media type, falling back to document specialist", "media_type", raw)
		return MediaDocument
	}
}

func specialistFor(mt MediaType) string {
	switch mt {
	case MediaImage:
		return "image_specialist"
	case MediaAudio:
		return "audio_specialist"
	case MediaVideo:
		return "video_specialist"
	default:
		return "document_specialist"
	}
}

func (c *Crew) runTask(ctx context.Context, roleID, taskID string, vars map[string]string) (string, int, error) {
	role, ok := c.cfg.Roles[roleID]
	if !ok {
		return "", 0, fmt.Errorf("unknown role %q", roleID)
	}
	task, ok := c.cfg.Tasks[taskID]
	if !ok {
		return "", 0, fmt.Errorf("unknown task %q", taskID)
	}

	user := renderTemplate(task.Description, vars)
	if expected := strings.TrimSpace(task.ExpectedOutput); expected != "" {
		user += "\nExpected output: " + expected
	}

	res, err := c.model.Chat(ctx, []modelapi.ChatMessage{
		{Role: "system", Content: role.SystemPrompt()},
		{Role: "user", Content: user},
	}, modelapi.ChatOptions{MaxTokens: c.maxTokens})
	if err != nil {
		return "", 0, fmt.Errorf("task %s (%s): %w", taskID, roleID, err)
	}
	return res.Text, res.TotalTokens, nil
}

// Process executes the full router -> specialist -> synthesis sequence.
func (c *Crew) Process(ctx context.Context, in QueryInput) Result {
	start := time.Now()
	mediaType := c.ResolveMediaType(in.MediaType)
	specialist := specialistFor(mediaType)
	tokens := 0

	fail := func(err error) Result {
		c.log.Error("Crew processing failed",
			"media_type", string(mediaType),
			"agent", specialist,
			"error", err,
		)
		return Result{
			Success:   false,
			AgentUsed: specialist,
			MediaType: string(mediaType),
			Tokens:    tokens,
			Error:     err.Error(),
			ProcessingDetails: map[string]any{
				"processing_time": time.Since(start).Seconds(),
				"backend":         c.model.Backend(),
			},
		}
	}

	baseVars := map[string]string{
		"query":      in.Query,
		"context":    in.Context,
		"media_type": string(mediaType),
	}

	routing, t, err := c.runTask(ctx, "router", "route", baseVars)
	if err != nil {
		return fail(err)
	}
	tokens += t

	analysisVars := cloneVars(baseVars)
	analysisVars["routing"] = routing
	analysis, t, err := c.runTask(ctx, specialist, "analyze", analysisVars)
	if err != nil {
		return fail(err)
	}
	tokens += t

	synthVars := cloneVars(baseVars)
	synthVars["analysis"] = analysis
	final, t, err := c.runTask(ctx, "synthesis", "synthesize", synthVars)
	if err != nil {
		return fail(err)
	}
	tokens += t

	return Result{
		Success:   true,
		Result:    final,
		AgentUsed: specialist,
		MediaType: string(mediaType),
		Tokens:    tokens,
		ProcessingDetails: map[string]any{
			"tasks_executed":  3,
			"routing":         routing,
			"processing_time": time.Since(start).Seconds(),
			"backend":         c.model.Backend(),
			"model":           c.model.Model(),
		},
	}
}

// QuickClassify runs the router role only.
func (c *Crew) QuickClassify(ctx context.Context, in QueryInput) Result {
	start := time.Now()
	mediaType := c.ResolveMediaType(in.MediaType)

	routing, tokens, err := c.runTask(ctx, "router", "route", map[string]string{
		"query":      in.Query,
		"context":    in.Context,
		"media_type": string(mediaType),
	})
	if err != nil {
		c.log.Error("Crew classification failed", "error", err)
		return Result{
			Success:   false,
			AgentUsed: "router",
			MediaType: string(mediaType),
			Error:     err.Error(),
			ProcessingDetails: map[string]any{
				"processing_time": time.Since(start).Seconds(),
			},
		}
	}
	return Result{
		Success:   true,
		Result:    routing,
		AgentUsed: "router",
		MediaType: string(mediaType),
		Tokens:    tokens,
		ProcessingDetails: map[string]any{
			"tasks_executed":  1,
			"processing_time": time.Since(start).Seconds(),
		},
	}
}

// EnhanceAnalysis runs the specialist enhance task followed by synthesis
// over an existing base analysis. Used by the media pipelines' full mode.
func (c *Crew) EnhanceAnalysis(ctx context.Context, mediaType MediaType, query, analysis string) (string, int, error) {
	tokens := 0
	vars := map[string]string{
		"query":      query,
		"analysis":   analysis,
		"context":    "",
		"media_type": string(mediaType),
	}

	enhanced, t, err := c.runTask(ctx, specialistFor(mediaType), "enhance", vars)
	if err != nil {
		return "", 0, err
	}
	tokens += t

	vars["analysis"] = enhanced
	final, t, err := c.runTask(ctx, "synthesis", "synthesize", vars)
	if err != nil {
		return "", 0, err
	}
	tokens += t
	return final, tokens, nil
}

// Health reports whether the crew can serve requests.
func (c *Crew) Health() map[string]any {
	rolesLoaded := 0
	if c.cfg != nil {
		rolesLoaded = len(c.cfg.Roles)
	}
	return map[string]any{
		"llm_configured": c.model != nil && c.model.Healthy(),
		"backend":        c.model.Backend(),
		"model":          c.model.Model(),
		"roles_loaded":   rolesLoaded,
	}
}

func cloneVars(src map[string]string) map[string]string {
	out := make(map[string]string, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	return out
}
