package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// EventStore is an in-memory implementation of app.SessionRepository with the
// same optimistic-concurrency semantics as the Postgres store: one append-only
// stream per session, versions strictly consecutive, conflicting batches
// rejected whole.
type EventStore struct {
	mu      sync.Mutex
	streams map[domain.QuizSessionID][]domain.StoredEvent
}

func NewEventStore() *EventStore {
	return &EventStore{
		streams: make(map[domain.QuizSessionID][]domain.StoredEvent),
	}
}

func (s *EventStore) FindByID(ctx context.Context, id domain.QuizSessionID) (*domain.QuizSession, error) {
	s.mu.Lock()
	stream, ok := s.streams[id]
	if ok {
		stream = append([]domain.StoredEvent(nil), stream...)
	}
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return domain.ReplaySession(id, stream)
}

func (s *EventStore) Save(ctx context.Context, session *domain.QuizSession) error {
	pending := session.UncommittedEvents()
	if len(pending) == 0 {
		return nil
	}
	base := session.Version()
	encoded := make([]domain.StoredEvent, 0, len(pending))
	for i, e := range pending {
		se, err := domain.EncodeEvent(session.ID(), base+int64(i)+1, e)
		if err != nil {
			return err
		}
		encoded = append(encoded, se)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.streams[session.ID()]
	// The batch is all-or-nothing: another writer holding version base+1
	// fails the whole save, never part of it.
	if int64(len(stream)) != base {
		return domain.ErrConcurrentModification
	}
	s.streams[session.ID()] = append(stream, encoded...)
	session.MarkChangesAsCommitted()
	return nil
}

func (s *EventStore) FindExpiredSessions(ctx context.Context, now time.Time, limit int) ([]*domain.QuizSession, error) {
	sessions, err := s.replayAll()
	if err != nil {
		return nil, err
	}
	expired := make([]*domain.QuizSession, 0)
	for _, session := range sessions {
		if session.State() == domain.StateInProgress && now.After(session.ExpiresAt()) {
			expired = append(expired, session)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].StartedAt().Before(expired[j].StartedAt())
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *EventStore) FindActiveByUser(ctx context.Context, userID domain.UserID) (*domain.QuizSession, error) {
	sessions, err := s.replayAll()
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if session.UserID() == userID && session.State() == domain.StateInProgress {
			return session, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (s *EventStore) replayAll() ([]*domain.QuizSession, error) {
	s.mu.Lock()
	copies := make(map[domain.QuizSessionID][]domain.StoredEvent, len(s.streams))
	for id, stream := range s.streams {
		copies[id] = append([]domain.StoredEvent(nil), stream...)
	}
	s.mu.Unlock()

	sessions := make([]*domain.QuizSession, 0, len(copies))
	for id, stream := range copies {
		session, err := domain.ReplaySession(id, stream)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
