package queries

import (
	"context"
	"testing"
	"time"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

type stubProcessor struct {
	result crew.Result
}

func (p *stubProcessor) Process(ctx context.Context, in crew.QueryInput) crew.Result {
	return p.result
}

func waitForTerminal(t *testing.T, s *Store, id string) Entry {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if e, ok := s.Get(id); ok && e.Status != StatusProcessing {
			return e
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("query %s never reached a terminal state", id)
	return Entry{}
}

func newRunnerLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func TestRunnerSubmitCompletes(t *testing.T) {
	store := NewStore()
	r := NewRunner(store, &stubProcessor{result: crew.Result{Success: true, Result: "done", Tokens: 9}}, newRunnerLogger(t))

	id := r.Submit(crew.QueryInput{Query: "hello"})
	if _, ok := store.Get(id); !ok {
		t.Fatalf("id must be pollable immediately after Submit")
	}

	e := waitForTerminal(t, store, id)
	if e.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", e.Status)
	}
	res, ok := e.Result.(crew.Result)
	if !ok || res.Tokens != 9 {
		t.Fatalf("unexpected stored result: %#v", e.Result)
	}
}

func TestRunnerSubmitRecordsFailure(t *testing.T) {
	store := NewStore()
	r := NewRunner(store, &stubProcessor{result: crew.Result{Success: false, Error: "boom"}}, newRunnerLogger(t))

	id := r.Submit(crew.QueryInput{Query: "hello"})
	e := waitForTerminal(t, store, id)
	if e.Status != StatusError || e.Error != "boom" {
		t.Fatalf("unexpected terminal entry: %+v", e)
	}
}

func TestRunnerSubmitPipelineRunsCleanup(t *testing.T) {
	store := NewStore()
	r := NewRunner(store, &stubProcessor{}, newRunnerLogger(t))

	cleaned := make(chan struct{})
	id := r.SubmitPipeline("upload: photo.jpg",
		func() { close(cleaned) },
		func(ctx context.Context) (any, bool, string) {
			return map[string]any{"status": "completed"}, true, ""
		},
	)

	e := waitForTerminal(t, store, id)
	if e.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", e.Status)
	}
	if e.Query != "upload: photo.jpg" {
		t.Fatalf("label = %q", e.Query)
	}
	select {
	case <-cleaned:
	case <-time.After(5 * time.Second):
		t.Fatalf("cleanup never ran")
	}
}

func TestRunnerSubmitPipelineFailure(t *testing.T) {
	store := NewStore()
	r := NewRunner(store, &stubProcessor{}, newRunnerLogger(t))

	id := r.SubmitPipeline("upload: bad.bin", nil,
		func(ctx context.Context) (any, bool, string) {
			return nil, false, "pipeline exploded"
		},
	)

	e := waitForTerminal(t, store, id)
	if e.Status != StatusError || e.Error != "pipeline exploded" {
		t.Fatalf("unexpected terminal entry: %+v", e)
	}
}
