package app

import (
	"context"
	"errors"
	"time"

	"quiz-session-service/internal/domain"
)

// SessionRepository abstracts the event-sourced session store. FindByID loads
// the full event history and replays it; Save appends the aggregate's
// uncommitted events all-or-nothing and fails with
// domain.ErrConcurrentModification when another writer advanced the stream.
type SessionRepository interface {
	FindByID(ctx context.Context, id domain.QuizSessionID) (*domain.QuizSession, error)
	Save(ctx context.Context, session *domain.QuizSession) error
	FindExpiredSessions(ctx context.Context, now time.Time, limit int) ([]*domain.QuizSession, error)
	FindActiveByUser(ctx context.Context, userID domain.UserID) (*domain.QuizSession, error)
}

// QuestionCatalog supplies question data from the catalog subsystem.
// References carry valid option ids only; details (with correctness) are
// fetched for terminal sessions.
type QuestionCatalog interface {
	GetQuestionReference(ctx context.Context, id domain.QuestionID) (domain.QuestionReference, error)
	GetQuestionDetails(ctx context.Context, ids []domain.QuestionID) ([]domain.QuestionDetail, error)
}

// ProgressTracker is the user-progress collaborator: it consumes a score and
// study duration and returns the updated snapshot.
type ProgressTracker interface {
	RecordResult(ctx context.Context, userID domain.UserID, score int, studyDuration time.Duration) (domain.ProgressSnapshot, error)
	Progress(ctx context.Context, userID domain.UserID) (domain.ProgressSnapshot, error)
}

// SessionService contains the quiz session use cases.
type SessionService struct {
	sessions SessionRepository
	catalog  QuestionCatalog
	progress ProgressTracker
	watch    *SessionWatch
	now      func() time.Time
}

func NewSessionService(sessions SessionRepository, catalog QuestionCatalog, progress ProgressTracker) *SessionService {
	return NewSessionServiceWithClock(sessions, catalog, progress, time.Now)
}

// NewSessionServiceWithClock allows deterministic timestamps in tests.
func NewSessionServiceWithClock(sessions SessionRepository, catalog QuestionCatalog, progress ProgressTracker, now func() time.Time) *SessionService {
	return &SessionService{
		sessions: sessions,
		catalog:  catalog,
		progress: progress,
		watch:    NewSessionWatch(),
		now:      now,
	}
}

// Watch exposes the in-process progress broadcaster.
func (s *SessionService) Watch() *SessionWatch { return s.watch }

// StartSession validates the config, draws no questions itself (the caller
// supplies the already-drawn list), and persists a fresh InProgress session.
// A user may hold at most one active session at a time.
func (s *SessionService) StartSession(ctx context.Context, userID domain.UserID, props domain.QuizConfigProps, questionIDs []domain.QuestionID) (*domain.QuizSession, error) {
	config, err := domain.NewQuizConfig(props)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.FindActiveByUser(ctx, userID); err == nil {
		return nil, domain.ErrActiveSessionExists
	} else if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}

	session, err := domain.StartNew(userID, config, questionIDs, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	s.publish(session)
	return session, nil
}

// SubmitAnswer loads the session, fetches the question reference from the
// catalog, and applies the submission. Auto-completion happens inside the
// aggregate; the whole cascade persists in one batch.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID domain.QuizSessionID, userID domain.UserID, questionID domain.QuestionID, selectedOptionIDs []domain.OptionID) (*domain.QuizSession, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	// Membership is checked before the catalog lookup so a question outside
	// the session reports ErrQuestionNotInQuiz, not a catalog miss.
	if !session.HasQuestion(questionID) {
		return nil, domain.ErrQuestionNotInQuiz
	}
	ref, err := s.catalog.GetQuestionReference(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := session.SubmitAnswer(questionID, selectedOptionIDs, ref, s.now()); err != nil {
		return nil, err
	}
	if err := s.saveAndTrack(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CompleteSession finishes a session manually.
func (s *SessionService) CompleteSession(ctx context.Context, sessionID domain.QuizSessionID, userID domain.UserID) (*domain.QuizSession, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := session.Complete(s.now()); err != nil {
		return nil, err
	}
	if err := s.saveAndTrack(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession loads a session by id. Reads carry the same ownership rule as
// mutations: anyone but the owner sees ErrSessionNotFound.
func (s *SessionService) GetSession(ctx context.Context, sessionID domain.QuizSessionID, userID domain.UserID) (*domain.QuizSession, error) {
	return s.loadOwned(ctx, sessionID, userID)
}

// SweepExpired expires up to limit overdue sessions and reports how many it
// transitioned. A concurrent-modification conflict on one session means
// another writer got there first; the sweep skips it and moves on.
func (s *SessionService) SweepExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	sessions, err := s.sessions.FindExpiredSessions(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, session := range sessions {
		if err := session.Expire(now); err != nil {
			continue
		}
		if err := s.saveAndTrack(ctx, session); err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *SessionService) loadOwned(ctx context.Context, sessionID domain.QuizSessionID, userID domain.UserID) (*domain.QuizSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// A session is invisible to anyone but its owner.
	if session.UserID() != userID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// saveAndTrack persists the pending events, notifies watchers, and feeds the
// progress subsystem when this batch carried the session into a terminal state.
func (s *SessionService) saveAndTrack(ctx context.Context, session *domain.QuizSession) error {
	events := session.UncommittedEvents()
	if err := s.sessions.Save(ctx, session); err != nil {
		return err
	}
	s.publish(session)
	if finished(events) {
		score, err := s.score(ctx, session)
		if err != nil {
			return err
		}
		duration := s.studyDuration(session)
		if _, err := s.progress.RecordResult(ctx, session.UserID(), score, duration); err != nil {
			return err
		}
	}
	return nil
}

func finished(events []domain.Event) bool {
	for _, e := range events {
		switch e.(type) {
		case domain.SessionCompleted, domain.SessionExpired:
			return true
		}
	}
	return false
}

func (s *SessionService) publish(session *domain.QuizSession) {
	s.watch.Publish(SessionUpdate{
		SessionID:     session.ID().String(),
		State:         string(session.State()),
		AnsweredCount: session.AnsweredQuestionCount(),
		QuestionCount: len(session.QuestionIDs()),
		UpdatedAt:     s.now(),
	})
}

func (s *SessionService) studyDuration(session *domain.QuizSession) time.Duration {
	end := session.ExpiresAt()
	if at := session.CompletedAt(); at != nil {
		end = *at
	}
	return end.Sub(session.StartedAt())
}
