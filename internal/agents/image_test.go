package agents

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestImageAgent(t *testing.T, model *fakeModel, rec *fakeRecorder, enh *fakeEnhancer) *ImageAgent {
	t.Helper()
	return NewImageAgent(Deps{
		Log:      testLogger(t),
		Model:    model,
		Recorder: rec,
		Enhancer: enh,
		DataDir:  t.TempDir(),
	})
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("not-a-real-jpeg"), 0o644); err != nil {
		t.Fatalf("write test image: %v", err)
	}
	return path
}

func TestImageQuickAnalyzeSuccess(t *testing.T) {
	model := &fakeModel{}
	rec := &fakeRecorder{}
	enh := &fakeEnhancer{}
	agent := newTestImageAgent(t, model, rec, enh)

	res := agent.QuickAnalyze(context.Background(), writeTestImage(t), "what is this?", "alice")
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Tokens != 42 {
		t.Fatalf("tokens = %d, want 42", res.Tokens)
	}
	if res.ProcessingMethod != ModeQuick {
		t.Fatalf("processing_method = %q", res.ProcessingMethod)
	}
	if enh.calls != 0 {
		t.Fatalf("quick mode must never enhance, got %d calls", enh.calls)
	}

	if len(rec.mediaSaves) != 1 {
		t.Fatalf("media saves = %d, want 1", len(rec.mediaSaves))
	}
	if len(rec.tracks) != 1 {
		t.Fatalf("tracking writes = %d, want 1", len(rec.tracks))
	}
	track := rec.tracks[0]
	if !track.Success || track.Tokens != 42 || track.AgentType != "image" {
		t.Fatalf("unexpected tracking row: %+v", track)
	}
	if rec.mediaSaves[0].Tokens != 42 {
		t.Fatalf("persisted tokens = %d, want 42", rec.mediaSaves[0].Tokens)
	}
}

func TestImageProcessAlwaysAttemptsEnhancement(t *testing.T) {
	model := &fakeModel{}
	rec := &fakeRecorder{}
	enh := &fakeEnhancer{}
	agent := newTestImageAgent(t, model, rec, enh)

	res := agent.Process(context.Background(), writeTestImage(t), "q", "alice")
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if enh.calls != 1 {
		t.Fatalf("full mode must attempt enhancement exactly once, got %d", enh.calls)
	}
	if res.Tokens != 52 {
		t.Fatalf("tokens = %d, want base 42 + enhancement 10", res.Tokens)
	}
}

func TestImageEnhancementFailureIsAbsorbed(t *testing.T) {
	model := &fakeModel{}
	rec := &fakeRecorder{}
	enh := &fakeEnhancer{fail: true}
	agent := newTestImageAgent(t, model, rec, enh)

	res := agent.Process(context.Background(), writeTestImage(t), "q", "alice")
	if !res.Success {
		t.Fatalf("enhancement failure must not fail the pipeline: %q", res.Error)
	}
	if res.Tokens != 42 {
		t.Fatalf("tokens = %d, want base only after failed enhancement", res.Tokens)
	}
	if got := res.Result["enhanced_response"]; got != "" {
		t.Fatalf("enhanced_response = %v, want empty", got)
	}
}

func TestImageMissingSourceFailsWithOneTrackingWrite(t *testing.T) {
	model := &fakeModel{}
	rec := &fakeRecorder{}
	agent := newTestImageAgent(t, model, rec, &fakeEnhancer{})

	res := agent.QuickAnalyze(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), "q", "alice")
	if res.Success {
		t.Fatalf("expected failure for missing source")
	}
	if res.Tokens != 0 {
		t.Fatalf("failed attempts must report zero tokens, got %d", res.Tokens)
	}
	if res.Error == "" {
		t.Fatalf("failure must carry an error message")
	}
	if model.chatCalls != 0 {
		t.Fatalf("model must not be called when save fails, got %d calls", model.chatCalls)
	}
	if len(rec.mediaSaves) != 0 {
		t.Fatalf("no media record may be written on failure, got %d", len(rec.mediaSaves))
	}
	if len(rec.tracks) != 1 {
		t.Fatalf("tracking writes = %d, want exactly 1", len(rec.tracks))
	}
	if rec.tracks[0].Success {
		t.Fatalf("tracking row must record failure")
	}
}

func TestImageCleanupRemovesOriginalOnSuccess(t *testing.T) {
	agent := newTestImageAgent(t, &fakeModel{}, &fakeRecorder{}, &fakeEnhancer{})
	src := writeTestImage(t)

	res := agent.QuickAnalyze(context.Background(), src, "q", "alice")
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("original input should be removed after processing, stat err = %v", err)
	}
	stored, ok := res.Result["file_paths"].(map[string]any)["stored"].(string)
	if !ok || stored == "" {
		t.Fatalf("result missing stored path")
	}
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("durable copy must survive: %v", err)
	}
}
