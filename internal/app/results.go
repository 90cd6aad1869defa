package app

import (
	"context"
	"sort"
	"time"

	"quiz-session-service/internal/domain"
)

// QuestionResult is the per-question outcome shown after a session finishes.
type QuestionResult struct {
	QuestionID        domain.QuestionID `json:"questionId"`
	Prompt            string            `json:"prompt"`
	SelectedOptionIDs []domain.OptionID `json:"selectedOptionIds"`
	CorrectOptionIDs  []domain.OptionID `json:"correctOptionIds"`
	Correct           bool              `json:"correct"`
}

// SessionResults is the scored view of a terminal session.
type SessionResults struct {
	SessionID     domain.QuizSessionID    `json:"sessionId"`
	State         domain.SessionState     `json:"state"`
	Score         int                     `json:"score"`
	QuestionCount int                     `json:"questionCount"`
	StartedAt     time.Time               `json:"startedAt"`
	FinishedAt    time.Time               `json:"finishedAt"`
	Questions     []QuestionResult        `json:"questions"`
	Progress      domain.ProgressSnapshot `json:"progress"`
}

// GetResults scores a finished session against the catalog's correct-option
// sets. In-progress sessions have no results; correctness never leaves the
// catalog before a session reaches a terminal state.
func (s *SessionService) GetResults(ctx context.Context, sessionID domain.QuizSessionID, userID domain.UserID) (SessionResults, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return SessionResults{}, err
	}
	if session.State() == domain.StateInProgress {
		return SessionResults{}, domain.ErrSessionNotFinished
	}

	details, err := s.catalog.GetQuestionDetails(ctx, session.QuestionIDs())
	if err != nil {
		return SessionResults{}, err
	}
	byID := detailsByID(details)

	score := 0
	questions := make([]QuestionResult, 0, len(session.QuestionIDs()))
	for _, questionID := range session.QuestionIDs() {
		detail := byID[questionID]
		result := QuestionResult{
			QuestionID:       questionID,
			Prompt:           detail.Prompt,
			CorrectOptionIDs: detail.CorrectOptionIDs(),
		}
		if answer, ok := session.AnswerFor(questionID); ok {
			result.SelectedOptionIDs = answer.SelectedOptionIDs()
			result.Correct = sameOptionSet(result.SelectedOptionIDs, result.CorrectOptionIDs)
		}
		if result.Correct {
			score++
		}
		questions = append(questions, result)
	}

	progress, err := s.progress.Progress(ctx, session.UserID())
	if err != nil {
		return SessionResults{}, err
	}

	finishedAt := session.ExpiresAt()
	if at := session.CompletedAt(); at != nil {
		finishedAt = *at
	}
	return SessionResults{
		SessionID:     session.ID(),
		State:         session.State(),
		Score:         score,
		QuestionCount: len(session.QuestionIDs()),
		StartedAt:     session.StartedAt(),
		FinishedAt:    finishedAt,
		Questions:     questions,
		Progress:      progress,
	}, nil
}

// score fetches question details and counts correct answers. It backs the
// progress-recording path; GetResults runs the same comparison per question
// while also building the result rows.
func (s *SessionService) score(ctx context.Context, session *domain.QuizSession) (int, error) {
	details, err := s.catalog.GetQuestionDetails(ctx, session.QuestionIDs())
	if err != nil {
		return 0, err
	}
	byID := detailsByID(details)
	score := 0
	for _, answer := range session.Answers() {
		if sameOptionSet(answer.SelectedOptionIDs(), byID[answer.QuestionID()].CorrectOptionIDs()) {
			score++
		}
	}
	return score, nil
}

func detailsByID(details []domain.QuestionDetail) map[domain.QuestionID]domain.QuestionDetail {
	byID := make(map[domain.QuestionID]domain.QuestionDetail, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}
	return byID
}

// sameOptionSet compares two selections as sets.
func sameOptionSet(a, b []domain.OptionID) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	for i := range a {
		as[i] = a[i].String()
		bs[i] = b[i].String()
	}
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
