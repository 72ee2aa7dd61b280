package crew

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/platform/modelapi"
)

type stubModel struct {
	chatFn    func(messages []modelapi.ChatMessage, opts modelapi.ChatOptions) (modelapi.ChatResult, error)
	chatCalls int
}

func (s *stubModel) Chat(ctx context.Context, messages []modelapi.ChatMessage, opts modelapi.ChatOptions) (modelapi.ChatResult, error) {
	s.chatCalls++
	if s.chatFn != nil {
		return s.chatFn(messages, opts)
	}
	return modelapi.ChatResult{Text: "stub output", Model: "stub-model", TotalTokens: 10}, nil
}

func (s *stubModel) Transcribe(ctx context.Context, audioPath string) (modelapi.Transcription, error) {
	return modelapi.Transcription{}, errors.New("not supported")
}

func (s *stubModel) Model() string   { return "stub-model" }
func (s *stubModel) Backend() string { return "openai" }
func (s *stubModel) Healthy() bool   { return true }

func newTestCrew(t *testing.T, model modelapi.Client) *Crew {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	cfg, err := LoadConfig("../../config")
	if err != nil {
		t.Fatalf("load crew config: %v", err)
	}
	return New(log, model, cfg)
}

func TestLoadConfigHasRequiredRolesAndTasks(t *testing.T) {
	cfg, err := LoadConfig("../../config")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	for _, id := range requiredRoles {
		if _, ok := cfg.Roles[id]; !ok {
			t.Fatalf("missing role %q", id)
		}
	}
	for _, id := range requiredTasks {
		if _, ok := cfg.Tasks[id]; !ok {
			t.Fatalf("missing task %q", id)
		}
	}
}

func TestLoadConfigMissingDir(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing config files")
	}
}

func TestRenderTemplate(t *testing.T) {
	got := renderTemplate("answer {query} about {media_type}", map[string]string{
		"query":      "what is this",
		"media_type": "image",
	})
	if got != "answer what is this about image" {
		t.Fatalf("renderTemplate = %q", got)
	}

	got = renderTemplate("keep {unknown} visible", map[string]string{"query": "x"})
	if got != "keep {unknown} visible" {
		t.Fatalf("unknown placeholders must be left intact, got %q", got)
	}
}

func TestResolveMediaType(t *testing.T) {
	c := newTestCrew(t, &stubModel{})
	cases := []struct {
		in   string
		want MediaType
	}{
		{"image", MediaImage},
		{" Image ", MediaImage},
		{"document", MediaDocument},
		{"text", MediaDocument},
		{"", MediaDocument},
		{"audio", MediaAudio},
		{"video", MediaVideo},
		{"hologram", MediaDocument},
	}
	for _, tc := range cases {
		if got := c.ResolveMediaType(tc.in); got != tc.want {
			t.Fatalf("ResolveMediaType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProcessRunsThreeTasksAndSumsTokens(t *testing.T) {
	model := &stubModel{}
	c := newTestCrew(t, model)

	res := c.Process(context.Background(), QueryInput{Query: "describe", MediaType: "image"})
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if model.chatCalls != 3 {
		t.Fatalf("chat calls = %d, want 3", model.chatCalls)
	}
	if res.Tokens != 30 {
		t.Fatalf("tokens = %d, want 30", res.Tokens)
	}
	if res.AgentUsed != "image_specialist" {
		t.Fatalf("agent_used = %q", res.AgentUsed)
	}
	if res.MediaType != "image" {
		t.Fatalf("media_type = %q", res.MediaType)
	}
	if res.ProcessingDetails["tasks_executed"] != 3 {
		t.Fatalf("tasks_executed = %v", res.ProcessingDetails["tasks_executed"])
	}
}

func TestProcessFailureCarriesAgentAndError(t *testing.T) {
	model := &stubModel{}
	model.chatFn = func(messages []modelapi.ChatMessage, opts modelapi.ChatOptions) (modelapi.ChatResult, error) {
		if model.chatCalls >= 2 {
			return modelapi.ChatResult{}, errors.New("backend unavailable")
		}
		return modelapi.ChatResult{Text: "routed", TotalTokens: 5}, nil
	}
	c := newTestCrew(t, model)

	res := c.Process(context.Background(), QueryInput{Query: "q", MediaType: "audio"})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.AgentUsed != "audio_specialist" {
		t.Fatalf("agent_used = %q", res.AgentUsed)
	}
	if !strings.Contains(res.Error, "backend unavailable") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestQuickClassifyRunsRouterOnly(t *testing.T) {
	model := &stubModel{}
	c := newTestCrew(t, model)

	res := c.QuickClassify(context.Background(), QueryInput{Query: "classify me"})
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if model.chatCalls != 1 {
		t.Fatalf("chat calls = %d, want 1", model.chatCalls)
	}
	if res.AgentUsed != "router" {
		t.Fatalf("agent_used = %q", res.AgentUsed)
	}
	if res.Tokens != 10 {
		t.Fatalf("tokens = %d, want 10", res.Tokens)
	}
}

func TestEnhanceAnalysisRunsSpecialistThenSynthesis(t *testing.T) {
	model := &stubModel{}
	c := newTestCrew(t, model)

	out, tokens, err := c.EnhanceAnalysis(context.Background(), MediaVideo, "q", "base analysis")
	if err != nil {
		t.Fatalf("EnhanceAnalysis: %v", err)
	}
	if model.chatCalls != 2 {
		t.Fatalf("chat calls = %d, want 2", model.chatCalls)
	}
	if tokens != 20 {
		t.Fatalf("tokens = %d, want 20", tokens)
	}
	if out == "" {
		t.Fatalf("expected non-empty enhanced output")
	}
}

func TestRoleSystemPrompt(t *testing.T) {
	rc := RoleConfig{Role: "a router", Goal: "pick a specialist.", Backstory: "You dispatch work."}
	got := rc.SystemPrompt()
	if !strings.HasPrefix(got, "You are a router.") {
		t.Fatalf("SystemPrompt = %q", got)
	}
	if !strings.Contains(got, "Your goal: pick a specialist.") {
		t.Fatalf("SystemPrompt missing goal: %q", got)
	}
}
