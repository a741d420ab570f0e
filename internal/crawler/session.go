package crawler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/sitegrab/internal/model"
)

// Session holds the discovery records of a crawl session in insertion order,
// keyed by address. Records survive across runs until Reset is called.
//
// The engine's worker is the only writer; readers take a snapshot.
type Session struct {
	mu sync.RWMutex

	id         string
	seed       string
	state      State
	startedAt  time.Time
	finishedAt time.Time
	diagnostic string

	order   []string
	records map[string]model.DiscoveryRecord
}

// NewSession creates an empty session with a fresh identifier.
func NewSession() *Session {
	s := &Session{}
	s.Reset()
	return s
}

// Reset clears all records and assigns a new identifier.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.seed = ""
	s.state = StateIdle
	s.startedAt = time.Time{}
	s.finishedAt = time.Time{}
	s.diagnostic = ""
	s.order = make([]string, 0)
	s.records = make(map[string]model.DiscoveryRecord)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Len returns the number of records.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns the record stored for address.
func (s *Session) Get(address string) (model.DiscoveryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[address]
	return r, ok
}

// Records returns the records in insertion order.
func (s *Session) Records() []model.DiscoveryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DiscoveryRecord, 0, len(s.order))
	for _, addr := range s.order {
		out = append(out, s.records[addr])
	}
	return out
}

// Snapshot returns a copy of the session suitable for persistence and reports.
func (s *Session) Snapshot() *model.CrawlSession {
	records := s.Records()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return &model.CrawlSession{
		ID:         s.id,
		Seed:       s.seed,
		State:      s.state.String(),
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
		Diagnostic: s.diagnostic,
		Records:    records,
	}
}

// add stores r. A repeated address (possible across runs) keeps its
// original position and takes the newer record.
func (s *Session) add(r model.DiscoveryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.Address]; !ok {
		s.order = append(s.order, r.Address)
	}
	s.records[r.Address] = r
}

// begin records the start of a run.
func (s *Session) begin(seed string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	s.state = StateRunning
	if s.startedAt.IsZero() {
		s.startedAt = now
	}
	s.finishedAt = time.Time{}
	s.diagnostic = ""
}

// end records the terminal state of a run.
func (s *Session) end(state State, now time.Time, diagnostic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.finishedAt = now
	s.diagnostic = diagnostic
}
