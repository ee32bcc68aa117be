package inmemcache

import (
	"context"
	"sync"
	"time"

	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/profile"
)

type stateStore struct {
	mutex    sync.RWMutex
	profiles map[string]profile.Profile // {sessionID: profile}
	cleared  map[string]time.Time // {sessionID: clearedAt}
	nowFunc  func() time.Time
}

var _ auth.StatePruner = (*stateStore)(nil) // interface compliance check

// NewStateStore returns a process local auth.StateStore.
func NewStateStore() auth.StateStore {
	return &stateStore{
		profiles: make(map[string]profile.Profile),
		cleared:  make(map[string]time.Time),
		nowFunc:  time.Now,
	}
}

func (s *stateStore) GetProfile(_ context.Context, sessionID string) (profile.Profile, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.profiles[sessionID]
	return p, ok, nil
}

func (s *stateStore) SetProfile(_ context.Context, sessionID string, p profile.Profile) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.cleared[sessionID]; ok {
		return nil
	}
	s.profiles[sessionID] = p
	return nil
}

func (s *stateStore) Clear(_ context.Context, sessionID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.profiles, sessionID)
	s.cleared[sessionID] = s.nowFunc()
	return nil
}

func (s *stateStore) ClearUser(_ context.Context, userID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for sid, p := range s.profiles {
		if p.ID == userID {
			delete(s.profiles, sid)
		}
	}
	return nil
}

func (s *stateStore) IsCleared(_ context.Context, sessionID string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.cleared[sessionID]
	return ok, nil
}

func (s *stateStore) PruneCleared(_ context.Context, clearedBefore time.Time) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := 0
	for sid, at := range s.cleared {
		if at.Before(clearedBefore) {
			delete(s.cleared, sid)
			n++
		}
	}
	return n, nil
}
