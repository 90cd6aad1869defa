package domain

import "github.com/google/uuid"

// Identifier types are distinct string types so the compiler rejects mixing
// them up (a QuestionID can never be compared to or passed as an OptionID).

// QuizSessionID identifies one quiz session aggregate.
type QuizSessionID string

// UserID identifies the owner of a session.
type UserID string

// QuestionID identifies a question within the catalog.
type QuestionID string

// OptionID identifies an answer option of a question.
type OptionID string

// AnswerID identifies a single submitted answer.
type AnswerID string

func NewQuizSessionID() QuizSessionID { return QuizSessionID(uuid.NewString()) }
func NewAnswerID() AnswerID           { return AnswerID(uuid.NewString()) }

func (id QuizSessionID) String() string { return string(id) }
func (id UserID) String() string        { return string(id) }
func (id QuestionID) String() string    { return string(id) }
func (id OptionID) String() string      { return string(id) }
func (id AnswerID) String() string      { return string(id) }
