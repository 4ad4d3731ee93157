package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AngelCh415/adperf/internal/pipeline"
)

var ErrNotFound = errors.New("run not found")

// Run is one stored pipeline result.
type Run struct {
	ID      string           `json:"id"`
	Source  string           `json:"source"`
	Created time.Time        `json:"created_at"`
	Result  *pipeline.Result `json:"result"`
}

// RunInfo is the listing view of a Run.
type RunInfo struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	Created time.Time `json:"created_at"`
	Rows    int       `json:"rows"`
	Issues  int       `json:"quality_issues"`
}

type MemoryStore struct {
	mu    sync.RWMutex
	cap   int
	runs  map[string]*Run
	order []string // insertion order, oldest first
	now   func() time.Time
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryStore{
		cap:  capacity,
		runs: make(map[string]*Run),
		now:  time.Now,
	}
}

// Put stores res under a fresh id, evicting the oldest run when full.
func (s *MemoryStore) Put(source string, res *pipeline.Result) Run {
	r := &Run{ID: uuid.NewString(), Source: source, Created: s.now().UTC(), Result: res}
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.order) >= s.cap {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	s.runs[r.ID] = r
	s.order = append(s.order, r.ID)
	return *r
}

func (s *MemoryStore) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return *r, nil
}

// List returns stored runs, newest first.
func (s *MemoryStore) List() []RunInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunInfo, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.runs[s.order[i]]
		info := RunInfo{ID: r.ID, Source: r.Source, Created: r.Created}
		if r.Result != nil {
			info.Rows = r.Result.Cleaning.Stats.OutputRows
			info.Issues = r.Result.Quality.Issues()
		}
		out = append(out, info)
	}
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
