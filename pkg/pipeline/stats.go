package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Stats is the mutable run aggregate. It is owned by the Pipeline, mutated
// only under its mutex while workers run, and safe to read plainly once Run
// has returned.
type Stats struct {
	mu sync.Mutex

	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`

	Fetched     int `json:"fetched"`
	Transformed int `json:"transformed"`
	Loaded      int `json:"loaded"`
	Batches     int `json:"batches_processed"`

	Errors []string `json:"errors"`
}

func newStats() *Stats {
	return &Stats{StartedAt: time.Now(), Errors: []string{}}
}

func (s *Stats) addFetched(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fetched += n
}

func (s *Stats) addTransformed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Transformed += n
}

func (s *Stats) addBatch(loaded int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Loaded += loaded
	s.Batches++
}

func (s *Stats) addError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, msg)
}

func (s *Stats) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndedAt = time.Now()
	s.Duration = s.EndedAt.Sub(s.StartedAt)
}

// ErrorCount returns the number of recorded per-unit failures.
func (s *Stats) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Errors)
}

// MarshalZerologObject lets a Stats value be logged as one structured event.
func (s *Stats) MarshalZerologObject(e *zerolog.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Int("fetched", s.Fetched).
		Int("transformed", s.Transformed).
		Int("loaded", s.Loaded).
		Int("batches", s.Batches).
		Int("errors", len(s.Errors)).
		Dur("duration", s.Duration)
}
