package queries

import (
	"sync"
	"time"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

type Entry struct {
	ID             string     `json:"query_id"`
	Query          string     `json:"query"`
	Status         Status     `json:"status"`
	Result         any        `json:"result,omitempty"`
	Error          string     `json:"error,omitempty"`
	ProcessingTime float64    `json:"processing_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Store keeps per-process background query state. Entries do not survive a
// restart; the janitor prunes terminal entries past their TTL.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

func (s *Store) Begin(id, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &Entry{
		ID:        id,
		Query:     query,
		Status:    StatusProcessing,
		CreatedAt: s.now(),
	}
}

func (s *Store) Complete(id string, result any, dur time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	done := s.now()
	e.Status = StatusCompleted
	e.Result = result
	e.ProcessingTime = dur.Seconds()
	e.CompletedAt = &done
}

func (s *Store) Fail(id, errMsg string, dur time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	done := s.now()
	e.Status = StatusError
	e.Error = errMsg
	e.ProcessingTime = dur.Seconds()
	e.CompletedAt = &done
}

// Get returns a copy so callers never hold a reference into the map.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

type Stats struct {
	Total      int `json:"total_queries"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Errored    int `json:"errored"`
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{Total: len(s.entries)}
	for _, e := range s.entries {
		switch e.Status {
		case StatusProcessing:
			out.Processing++
		case StatusCompleted:
			out.Completed++
		case StatusError:
			out.Errored++
		}
	}
	return out
}

// PruneOlderThan removes terminal entries whose completion is older than
// ttl. In-flight entries are never pruned. Returns the number removed.
func (s *Store) PruneOlderThan(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, e := range s.entries {
		if e.Status == StatusProcessing || e.CompletedAt == nil {
			continue
		}
		if e.CompletedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
