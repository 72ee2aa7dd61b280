package agents

import (
	"context"
	"sync"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/platform/modelapi"
	"github.com/omniquery/omniquery-backend/internal/store"
)

// fakeModel satisfies modelapi.Client for pipeline tests.
type fakeModel struct {
	chatFn       func(messages []modelapi.ChatMessage, opts modelapi.ChatOptions) (modelapi.ChatResult, error)
	transcribeFn func(path string) (modelapi.Transcription, error)
	chatCalls    int
}

func (f *fakeModel) Chat(ctx context.Context, messages []modelapi.ChatMessage, opts modelapi.ChatOptions) (modelapi.ChatResult, error) {
	f.chatCalls++
	if f.chatFn != nil {
		return f.chatFn(messages, opts)
	}
	return modelapi.ChatResult{Text: "fake analysis", Model: "fake-model", TotalTokens: 42}, nil
}

func (f *fakeModel) Transcribe(ctx context.Context, audioPath string) (modelapi.Transcription, error) {
	if f.transcribeFn != nil {
		return f.transcribeFn(audioPath)
	}
	return modelapi.Transcription{Text: "fake transcript", Duration: 12.5}, nil
}

func (f *fakeModel) Model() string   { return "fake-model" }
func (f *fakeModel) Backend() string { return "openai" }
func (f *fakeModel) Healthy() bool   { return true }

// fakeRecorder records persistence calls instead of hitting a database.
type fakeRecorder struct {
	mu         sync.Mutex
	mediaSaves []store.MediaPersist
	tracks     []store.TrackEvent
}

func (f *fakeRecorder) save(p store.MediaPersist) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaSaves = append(f.mediaSaves, p)
	return "rec_1"
}

func (f *fakeRecorder) SaveImage(ctx context.Context, p store.MediaPersist) string    { return f.save(p) }
func (f *fakeRecorder) SaveDocument(ctx context.Context, p store.MediaPersist) string { return f.save(p) }
func (f *fakeRecorder) SaveVideo(ctx context.Context, p store.MediaPersist) string    { return f.save(p) }
func (f *fakeRecorder) SaveAudio(ctx context.Context, p store.MediaPersist) string    { return f.save(p) }

func (f *fakeRecorder) Track(ctx context.Context, ev store.TrackEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, ev)
}

// fakeEnhancer counts enhancement attempts.
type fakeEnhancer struct {
	calls int
	fail  bool
}

func (f *fakeEnhancer) EnhanceAnalysis(ctx context.Context, mediaType crew.MediaType, query, analysis string) (string, int, error) {
	f.calls++
	if f.fail {
		return "", 0, context.DeadlineExceeded
	}
	return "enhanced: " + analysis, 10, nil
}
