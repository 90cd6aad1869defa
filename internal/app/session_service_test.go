package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

var serviceStart = time.Date(2024, 11, 22, 8, 0, 0, 0, time.UTC)

type fixture struct {
	service *app.SessionService
	store   *memory.EventStore
	clock   *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newFixture() *fixture {
	store := memory.NewEventStore()
	catalog := memory.NewStaticCatalog([]domain.QuestionDetail{
		{
			ID:     "q1",
			Prompt: "Pick the correct reading",
			Options: []domain.OptionDetail{
				{ID: "o1", Text: "A", Correct: false},
				{ID: "o2", Text: "B", Correct: true},
			},
		},
		{
			ID:     "q2",
			Prompt: "Pick the correct particle",
			Options: []domain.OptionDetail{
				{ID: "o1", Text: "C", Correct: true},
				{ID: "o2", Text: "D", Correct: false},
			},
		},
	})
	clock := &fakeClock{now: serviceStart}
	service := app.NewSessionServiceWithClock(store, catalog, memory.NewProgressTracker(), clock.Now)
	return &fixture{service: service, store: store, clock: clock}
}

func defaultProps() domain.QuizConfigProps {
	return domain.QuizConfigProps{
		ExamType:      domain.ExamTypeJLPTN5,
		QuestionCount: 2,
	}
}

func TestStartSessionPersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	session, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Version() != 1 {
		t.Fatalf("expected committed version 1, got %d", session.Version())
	}

	loaded, err := f.service.GetSession(ctx, session.ID(), "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.State() != domain.StateInProgress {
		t.Fatalf("expected InProgress, got %s", loaded.State())
	}

	// Reads enforce ownership like mutations do.
	if _, err := f.service.GetSession(ctx, session.ID(), "intruder"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not-found for foreign reader, got %v", err)
	}
}

func TestStartSessionRejectsSecondActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	if _, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"})
	if !errors.Is(err, domain.ErrActiveSessionExists) {
		t.Fatalf("expected active-session-exists, got %v", err)
	}
	// A different user is unaffected.
	if _, err := f.service.StartSession(ctx, "u2", defaultProps(), []domain.QuestionID{"q1", "q2"}); err != nil {
		t.Fatalf("other user start: %v", err)
	}
}

func TestSubmitAnswerFlowWithAutoComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	session, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	f.clock.now = serviceStart.Add(10 * time.Second)
	updated, err := f.service.SubmitAnswer(ctx, session.ID(), "u1", "q1", []domain.OptionID{"o2"})
	if err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if updated.State() != domain.StateInProgress {
		t.Fatalf("expected InProgress after first answer, got %s", updated.State())
	}

	f.clock.now = serviceStart.Add(20 * time.Second)
	updated, err = f.service.SubmitAnswer(ctx, session.ID(), "u1", "q2", []domain.OptionID{"o1"})
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if updated.State() != domain.StateCompleted {
		t.Fatalf("expected auto-completed session, got %s", updated.State())
	}

	// Both answers correct.
	results, err := f.service.GetResults(ctx, session.ID(), "u1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.Score != 2 || results.QuestionCount != 2 {
		t.Fatalf("expected 2/2, got %d/%d", results.Score, results.QuestionCount)
	}
	if results.Progress.SessionsCompleted != 1 || results.Progress.TotalScore != 2 {
		t.Fatalf("progress not recorded: %+v", results.Progress)
	}
}

func TestSubmitAnswerOtherUsersSessionHidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	session, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err = f.service.SubmitAnswer(ctx, session.ID(), "intruder", "q1", []domain.OptionID{"o1"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not-found for foreign user, got %v", err)
	}
}

func TestSubmitAnswerUnknownQuestionSkipsCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	session, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// q9 is neither in the session nor the catalog; membership wins.
	_, err = f.service.SubmitAnswer(ctx, session.ID(), "u1", "q9", []domain.OptionID{"o1"})
	if !errors.Is(err, domain.ErrQuestionNotInQuiz) {
		t.Fatalf("expected question-not-in-quiz, got %v", err)
	}
}

func TestGetResultsRequiresTerminalState(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	session, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err = f.service.GetResults(ctx, session.ID(), "u1")
	if !errors.Is(err, domain.ErrSessionNotFinished) {
		t.Fatalf("expected not-finished, got %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	props := defaultProps()
	props.TimeLimitSeconds = 60
	session, err := f.service.StartSession(ctx, "u1", props, []domain.QuestionID{"q1", "q2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Nothing overdue yet.
	n, err := f.service.SweepExpired(ctx, serviceStart.Add(30*time.Second), 10)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 expired, got %d", n)
	}

	n, err = f.service.SweepExpired(ctx, serviceStart.Add(5*time.Minute), 10)
	if err != nil {
		t.Fatalf("sweep overdue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	loaded, err := f.service.GetSession(ctx, session.ID(), "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.State() != domain.StateExpired {
		t.Fatalf("expected Expired, got %s", loaded.State())
	}

	// Expired sessions still produce results (for review), feed the progress
	// subsystem, and free the user.
	results, err := f.service.GetResults(ctx, session.ID(), "u1")
	if err != nil {
		t.Fatalf("results after expiry: %v", err)
	}
	if results.Progress.SessionsCompleted != 1 || results.Progress.TotalScore != 0 {
		t.Fatalf("expiry must record progress, got %+v", results.Progress)
	}
	if _, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"}); err != nil {
		t.Fatalf("start after expiry: %v", err)
	}
}

func TestWatchReceivesProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	session, err := f.service.StartSession(ctx, "u1", defaultProps(), []domain.QuestionID{"q1", "q2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	updates, cancel := f.service.Watch().Subscribe(session.ID())
	defer cancel()

	if _, err := f.service.SubmitAnswer(ctx, session.ID(), "u1", "q1", []domain.OptionID{"o1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case update := <-updates:
		if update.AnsweredCount != 1 || update.State != string(domain.StateInProgress) {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a progress update")
	}
}
