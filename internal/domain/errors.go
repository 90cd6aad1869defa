package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotInProgress is returned when a mutation hits a terminal session.
	ErrQuizNotInProgress = errors.New("quiz session is not in progress")
	// ErrQuizExpired is returned when a submission arrives past the time limit.
	ErrQuizExpired = errors.New("quiz session time limit exceeded")
	// ErrQuizNotExpired is returned when Expire runs before the limit elapsed.
	ErrQuizNotExpired = errors.New("quiz session time limit has not elapsed")
	// ErrQuestionNotInQuiz is returned for answers to questions outside the order.
	ErrQuestionNotInQuiz = errors.New("question is not part of this quiz session")
	// ErrQuestionAlreadyAnswered is returned on re-submission to the same question.
	ErrQuestionAlreadyAnswered = errors.New("question has already been answered")
	// ErrQuestionReferenceMismatch indicates the caller passed a reference for a
	// different question than the one being answered.
	ErrQuestionReferenceMismatch = errors.New("question reference does not match submitted question")
	// ErrQuestionCountMismatch is returned when the drawn question list does not
	// match the configured question count.
	ErrQuestionCountMismatch = errors.New("question list does not match configured question count")
	// ErrIncompleteAnswers rejects manual completion while answers are missing
	// and the config requires all questions to be answered.
	ErrIncompleteAnswers = errors.New("not all questions have been answered")
	// ErrSessionNotFinished is returned when results are requested for a session
	// that is still in progress.
	ErrSessionNotFinished = errors.New("quiz session is not finished")
	// ErrActiveSessionExists rejects starting a second in-progress session per user.
	ErrActiveSessionExists = errors.New("user already has an active quiz session")
	// ErrQuestionNotFound indicates the catalog has no such question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrConcurrentModification signals an optimistic-concurrency conflict on save.
	// It is infrastructure-level: the caller should reload and retry, never treat
	// it as a business rejection.
	ErrConcurrentModification = errors.New("quiz session was modified concurrently")
)

// InvalidQuestionCountError reports a question count outside the allowed range.
type InvalidQuestionCountError struct {
	Count int
}

func (e InvalidQuestionCountError) Error() string {
	return fmt.Sprintf("question count %d must be between %d and %d", e.Count, MinQuestionCount, MaxQuestionCount)
}

// InvalidTimeLimitError reports a time limit below the minimum.
type InvalidTimeLimitError struct {
	Seconds int
}

func (e InvalidTimeLimitError) Error() string {
	return fmt.Sprintf("time limit %ds must be at least %ds", e.Seconds, MinTimeLimitSeconds)
}

// InvalidAnswerError reports an empty or duplicated option selection.
type InvalidAnswerError struct {
	Reason string
}

func (e InvalidAnswerError) Error() string {
	return "invalid answer: " + e.Reason
}

// InvalidOptionsError lists selected option ids the question does not offer.
type InvalidOptionsError struct {
	QuestionID QuestionID
	Invalid    []OptionID
}

func (e InvalidOptionsError) Error() string {
	return fmt.Sprintf("question %s does not offer options %v", e.QuestionID, e.Invalid)
}

// OutOfOrderAnswerError reports a sequential-mode submission that skipped ahead.
type OutOfOrderAnswerError struct {
	ExpectedIndex int
	ActualIndex   int
}

func (e OutOfOrderAnswerError) Error() string {
	return fmt.Sprintf("answers must be submitted in order: expected question at index %d, got index %d", e.ExpectedIndex, e.ActualIndex)
}

// QuestionOrderError indicates an empty or duplicated question list. By the
// time an order is built the list was sourced from the catalog, so this is a
// data/programming error rather than a user-facing validation failure.
type QuestionOrderError struct {
	Reason string
}

func (e QuestionOrderError) Error() string {
	return "invalid question order: " + e.Reason
}
