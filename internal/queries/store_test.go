package queries

import (
	"testing"
	"time"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	s.Begin("q1", "what is this")

	e, ok := s.Get("q1")
	if !ok {
		t.Fatalf("entry not found after Begin")
	}
	if e.Status != StatusProcessing {
		t.Fatalf("status = %q, want processing", e.Status)
	}
	if e.CompletedAt != nil {
		t.Fatalf("in-flight entry must not have completion time")
	}

	s.Complete("q1", map[string]any{"answer": 42}, 1500*time.Millisecond)
	e, _ = s.Get("q1")
	if e.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", e.Status)
	}
	if e.ProcessingTime != 1.5 {
		t.Fatalf("processing_time = %v, want 1.5", e.ProcessingTime)
	}
	if e.CompletedAt == nil {
		t.Fatalf("completed entry must carry completion time")
	}
	if e.Result == nil {
		t.Fatalf("completed entry must carry result")
	}

	if !s.Delete("q1") {
		t.Fatalf("Delete should report true for existing entry")
	}
	if s.Delete("q1") {
		t.Fatalf("Delete should report false for missing entry")
	}
	if _, ok := s.Get("q1"); ok {
		t.Fatalf("entry should be gone after Delete")
	}
}

func TestStoreFail(t *testing.T) {
	s := NewStore()
	s.Begin("q1", "q")
	s.Fail("q1", "model unavailable", time.Second)

	e, _ := s.Get("q1")
	if e.Status != StatusError {
		t.Fatalf("status = %q, want error", e.Status)
	}
	if e.Error != "model unavailable" {
		t.Fatalf("error = %q", e.Error)
	}
}

func TestStoreCompleteUnknownIDIsNoop(t *testing.T) {
	s := NewStore()
	s.Complete("ghost", nil, time.Second)
	s.Fail("ghost", "x", time.Second)
	if st := s.Stats(); st.Total != 0 {
		t.Fatalf("stats total = %d, want 0", st.Total)
	}
}

func TestStoreStats(t *testing.T) {
	s := NewStore()
	s.Begin("a", "q")
	s.Begin("b", "q")
	s.Begin("c", "q")
	s.Complete("b", "ok", time.Second)
	s.Fail("c", "boom", time.Second)

	st := s.Stats()
	if st.Total != 3 || st.Processing != 1 || st.Completed != 1 || st.Errored != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestPruneSkipsInFlightEntries(t *testing.T) {
	s := NewStore()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.Begin("old-done", "q")
	s.Complete("old-done", "ok", time.Second)
	s.Begin("old-failed", "q")
	s.Fail("old-failed", "boom", time.Second)
	s.Begin("still-running", "q")

	clock = clock.Add(25 * time.Hour)
	s.Begin("fresh", "q")
	s.Complete("fresh", "ok", time.Second)

	removed := s.PruneOlderThan(24 * time.Hour)
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, ok := s.Get("old-done"); ok {
		t.Fatalf("old completed entry should be pruned")
	}
	if _, ok := s.Get("old-failed"); ok {
		t.Fatalf("old errored entry should be pruned")
	}
	if _, ok := s.Get("still-running"); !ok {
		t.Fatalf("in-flight entry must never be pruned")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Fatalf("fresh terminal entry must survive")
	}
}
