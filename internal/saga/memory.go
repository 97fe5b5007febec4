package saga

import (
	"context"
	"sort"
	"sync"
	"time"

	"matter_intake_backend/internal/manifest"
)

// MemoryStore is an in-process Store for tests and local runs. It applies
// the same guards as the Postgres repository.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
	writes int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]State{}}
}

var _ Store = (*MemoryStore)(nil)

// Writes counts successful mutations, for asserting that redeliveries are
// free of side effects.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryStore) Find(_ context.Context, correlationID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[correlationID]
	if !ok {
		return State{}, ErrNotFound(correlationID)
	}
	return clone(st), nil
}

func (s *MemoryStore) Create(_ context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[st.CorrelationID]; ok {
		return ErrExists(st.CorrelationID)
	}
	now := time.Now().UTC()
	st.CreatedAt, st.UpdatedAt = now, now
	if st.Issues == nil {
		st.Issues = []string{}
	}
	s.states[st.CorrelationID] = clone(st)
	s.writes++
	return nil
}

func (s *MemoryStore) AdvanceStatus(_ context.Context, correlationID string, from, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[correlationID]
	if !ok || st.Status != from {
		return false, nil
	}
	st.Status = to
	s.touch(st)
	return true, nil
}

func (s *MemoryStore) SetMatterID(_ context.Context, correlationID, matterID string) error {
	return s.update(correlationID, func(st *State) error {
		if st.MatterID != "" && st.MatterID != matterID {
			return ErrAlreadySet("matter id")
		}
		st.MatterID = matterID
		return nil
	})
}

func (s *MemoryStore) SetManifest(_ context.Context, correlationID string, m *manifest.Manifest) error {
	return s.update(correlationID, func(st *State) error {
		if st.Manifest != nil {
			return ErrAlreadySet("manifest")
		}
		cp := *m
		st.Manifest = &cp
		return nil
	})
}

func (s *MemoryStore) AppendIssues(_ context.Context, correlationID string, issues []string) error {
	if len(issues) == 0 {
		return nil
	}
	return s.update(correlationID, func(st *State) error {
		st.Issues = append(st.Issues, issues...)
		return nil
	})
}

func (s *MemoryStore) MarkError(_ context.Context, correlationID, note string) error {
	return s.update(correlationID, func(st *State) error {
		st.Status = StatusError
		st.ErrorNote = note
		return nil
	})
}

func (s *MemoryStore) MarkCompleted(_ context.Context, correlationID string, at time.Time) error {
	return s.update(correlationID, func(st *State) error {
		if st.Status != StatusCompleted {
			return ErrNotCompleted(correlationID)
		}
		st.CompletedAt = &at
		return nil
	})
}

func (s *MemoryStore) ResetStatus(_ context.Context, correlationID string, to Status) error {
	return s.update(correlationID, func(st *State) error {
		if st.Status != StatusError {
			return ErrNotErrored(correlationID)
		}
		st.Status = to
		st.ErrorNote = ""
		return nil
	})
}

// ListStalled returns sagas on a forward status last updated before before.
func (s *MemoryStore) ListStalled(_ context.Context, before time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stalled []State
	for _, st := range s.states {
		if !st.Status.Terminal() && st.UpdatedAt.Before(before) {
			stalled = append(stalled, st)
		}
	}
	sort.Slice(stalled, func(i, j int) bool { return stalled[i].UpdatedAt.Before(stalled[j].UpdatedAt) })

	ids := make([]string, 0, len(stalled))
	for _, st := range stalled {
		if len(ids) == limit {
			break
		}
		ids = append(ids, st.CorrelationID)
	}
	return ids, nil
}

func (s *MemoryStore) update(correlationID string, fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[correlationID]
	if !ok {
		return ErrNotFound(correlationID)
	}
	st = clone(st)
	if err := fn(&st); err != nil {
		return err
	}
	s.touch(st)
	return nil
}

// touch stores st; callers hold mu.
func (s *MemoryStore) touch(st State) {
	st.UpdatedAt = time.Now().UTC()
	s.states[st.CorrelationID] = st
	s.writes++
}

func clone(st State) State {
	st.Issues = append([]string{}, st.Issues...)
	if st.CompletedAt != nil {
		at := *st.CompletedAt
		st.CompletedAt = &at
	}
	return st
}
