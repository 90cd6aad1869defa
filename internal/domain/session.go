package domain

import (
	"fmt"
	"time"
)

// SessionState is the lifecycle state of a quiz session. Transitions are
// one-directional: InProgress moves to Completed or Expired, both terminal.
type SessionState string

const (
	StateInProgress SessionState = "IN_PROGRESS"
	StateCompleted  SessionState = "COMPLETED"
	StateExpired    SessionState = "EXPIRED"
)

// QuizSession is the aggregate root coordinating configuration, question
// order, submitted answers, and time-based expiry. It is loaded and persisted
// as one unit; all mutation goes through its methods, which are synchronous
// and in-memory so the state machine tests without I/O.
type QuizSession struct {
	id          QuizSessionID
	userID      UserID
	config      QuizConfig
	order       QuestionOrder
	answers     map[QuestionID]Answer
	answerSeq   []QuestionID // submission order
	state       SessionState
	startedAt   time.Time
	completedAt *time.Time
	version     int64 // version of the last committed event
	pending     []Event
}

// StartNew begins a session for userID over the drawn question list. The list
// must be non-empty, duplicate-free, and exactly config.QuestionCount long.
func StartNew(userID UserID, config QuizConfig, questionIDs []QuestionID, now time.Time) (*QuizSession, error) {
	if _, err := NewQuestionOrder(questionIDs); err != nil {
		return nil, err
	}
	if len(questionIDs) != config.QuestionCount() {
		return nil, ErrQuestionCountMismatch
	}
	s := newEmptySession()
	err := s.raise(SessionStarted{
		SessionID:   NewQuizSessionID(),
		UserID:      userID,
		Config:      config.ToDTO(),
		QuestionIDs: questionIDs,
		StartedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewSessionForReplay creates an empty aggregate to be filled by
// LoadFromHistory. It is unusable until the SessionStarted event is applied.
func NewSessionForReplay(id QuizSessionID) *QuizSession {
	s := newEmptySession()
	s.id = id
	return s
}

func newEmptySession() *QuizSession {
	return &QuizSession{
		answers: make(map[QuestionID]Answer),
	}
}

// SubmitAnswer records an answer for questionID, validating the selection
// against ref. On the last answer the session auto-completes when the config
// asks for it, within the same operation.
func (s *QuizSession) SubmitAnswer(questionID QuestionID, selectedOptionIDs []OptionID, ref QuestionReference, now time.Time) error {
	if s.state != StateInProgress {
		return ErrQuizNotInProgress
	}
	if s.isPastLimit(now) {
		// The state stays InProgress; only Expire records the transition.
		return ErrQuizExpired
	}
	if !s.order.Contains(questionID) {
		return ErrQuestionNotInQuiz
	}
	if _, answered := s.answers[questionID]; answered {
		return ErrQuestionAlreadyAnswered
	}
	if s.config.EnforceSequentialAnswering() {
		expected := s.firstUnansweredIndex()
		actual := s.order.IndexOf(questionID)
		if actual != expected {
			return OutOfOrderAnswerError{ExpectedIndex: expected, ActualIndex: actual}
		}
	}
	if ref.QuestionID() != questionID {
		return ErrQuestionReferenceMismatch
	}
	var invalid []OptionID
	for _, id := range selectedOptionIDs {
		if !ref.HasOption(id) {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return InvalidOptionsError{QuestionID: questionID, Invalid: invalid}
	}

	answer, err := NewAnswer(questionID, selectedOptionIDs, now)
	if err != nil {
		return err
	}
	if err := s.raise(AnswerSubmitted{
		AnswerID:          answer.ID(),
		QuestionID:        answer.QuestionID(),
		SelectedOptionIDs: answer.SelectedOptionIDs(),
		AnsweredAt:        answer.AnsweredAt(),
	}); err != nil {
		return err
	}

	if s.config.AutoCompleteWhenAllAnswered() && len(s.answers) == s.order.Size() {
		return s.raise(SessionCompleted{CompletedAt: now})
	}
	return nil
}

// Complete finishes a session manually. When the config requires all answers,
// completion is rejected while questions remain unanswered.
func (s *QuizSession) Complete(now time.Time) error {
	if s.state != StateInProgress {
		return ErrQuizNotInProgress
	}
	if s.isPastLimit(now) {
		return ErrQuizExpired
	}
	if s.config.RequireAllAnswers() && len(s.answers) < s.order.Size() {
		return ErrIncompleteAnswers
	}
	return s.raise(SessionCompleted{CompletedAt: now})
}

// Expire transitions an in-progress session whose limit elapsed to Expired.
// Driven by the expiry sweep, never by direct user action.
func (s *QuizSession) Expire(now time.Time) error {
	if s.state != StateInProgress {
		return ErrQuizNotInProgress
	}
	if !s.isPastLimit(now) {
		return ErrQuizNotExpired
	}
	return s.raise(SessionExpired{ExpiredAt: now})
}

func (s *QuizSession) isPastLimit(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

// ExpiresAt is startedAt plus the effective limit (explicit or fallback).
func (s *QuizSession) ExpiresAt() time.Time {
	return s.startedAt.Add(time.Duration(s.config.EffectiveLimitSeconds()) * time.Second)
}

func (s *QuizSession) firstUnansweredIndex() int {
	for i := 0; i < s.order.Size(); i++ {
		if _, ok := s.answers[s.order.At(i)]; !ok {
			return i
		}
	}
	return -1
}

// raise applies an event to the aggregate and buffers it for persistence.
func (s *QuizSession) raise(e Event) error {
	if err := s.apply(e); err != nil {
		return err
	}
	s.pending = append(s.pending, e)
	return nil
}

// apply is the pure state transition for one event. It runs both on live
// mutation and on replay, and performs no business validation.
func (s *QuizSession) apply(e Event) error {
	switch e := e.(type) {
	case SessionStarted:
		order, err := QuestionOrderFromPersistence(e.QuestionIDs)
		if err != nil {
			return err
		}
		s.id = e.SessionID
		s.userID = e.UserID
		s.config = QuizConfigFromDTO(e.Config)
		s.order = order
		s.state = StateInProgress
		s.startedAt = e.StartedAt
	case AnswerSubmitted:
		answer := AnswerFromReplay(e.AnswerID, e.QuestionID, e.SelectedOptionIDs, e.AnsweredAt)
		s.answers[e.QuestionID] = answer
		s.answerSeq = append(s.answerSeq, e.QuestionID)
	case SessionCompleted:
		s.state = StateCompleted
		at := e.CompletedAt
		s.completedAt = &at
	case SessionExpired:
		s.state = StateExpired
	default:
		return fmt.Errorf("unknown event %T", e)
	}
	return nil
}

// LoadFromHistory replays a full event sequence into the aggregate. The
// history is trusted: no business validation re-runs, and a sequence that
// fails to apply indicates a corrupted stream.
func (s *QuizSession) LoadFromHistory(events []Event) error {
	for _, e := range events {
		if err := s.apply(e); err != nil {
			return fmt.Errorf("replay session %s: %w", s.id, err)
		}
		s.version++
	}
	return nil
}

// UncommittedEvents returns a copy of the events raised since the last commit.
func (s *QuizSession) UncommittedEvents() []Event {
	out := make([]Event, len(s.pending))
	copy(out, s.pending)
	return out
}

// MarkChangesAsCommitted advances the version past the persisted events and
// clears the buffer so a reused instance does not re-submit them.
func (s *QuizSession) MarkChangesAsCommitted() {
	s.version += int64(len(s.pending))
	s.pending = nil
}

func (s *QuizSession) ID() QuizSessionID    { return s.id }
func (s *QuizSession) UserID() UserID       { return s.userID }
func (s *QuizSession) Config() QuizConfig   { return s.config }
func (s *QuizSession) State() SessionState  { return s.state }
func (s *QuizSession) StartedAt() time.Time { return s.startedAt }
func (s *QuizSession) Version() int64       { return s.version }

// CompletedAt returns the completion time, or nil while not completed.
func (s *QuizSession) CompletedAt() *time.Time {
	if s.completedAt == nil {
		return nil
	}
	at := *s.completedAt
	return &at
}

// QuestionIDs returns the session's question order.
func (s *QuizSession) QuestionIDs() []QuestionID { return s.order.AllIDs() }

// Answers returns all answers ordered by submission.
func (s *QuizSession) Answers() []Answer {
	out := make([]Answer, 0, len(s.answerSeq))
	for _, q := range s.answerSeq {
		out = append(out, s.answers[q])
	}
	return out
}

// HasQuestion reports whether questionID is part of the session's order.
func (s *QuizSession) HasQuestion(questionID QuestionID) bool {
	return s.order.Contains(questionID)
}

// AnswerFor returns the answer for questionID, if any.
func (s *QuizSession) AnswerFor(questionID QuestionID) (Answer, bool) {
	a, ok := s.answers[questionID]
	return a, ok
}

// AnsweredQuestionCount returns how many questions have answers.
func (s *QuizSession) AnsweredQuestionCount() int { return len(s.answers) }
