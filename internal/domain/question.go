package domain

// OptionDetail is one answer option as authored in the catalog.
type OptionDetail struct {
	ID      OptionID `json:"id"`
	Text    string   `json:"text"`
	Correct bool     `json:"correct"`
}

// QuestionDetail is the catalog's full view of a question, including
// correctness. It is exposed to the core only after a session reaches a
// terminal state, for scoring and results display.
type QuestionDetail struct {
	ID      QuestionID     `json:"id"`
	Prompt  string         `json:"prompt"`
	Options []OptionDetail `json:"options"`
}

// OptionIDs returns every option id of the question.
func (q QuestionDetail) OptionIDs() []OptionID {
	ids := make([]OptionID, 0, len(q.Options))
	for _, opt := range q.Options {
		ids = append(ids, opt.ID)
	}
	return ids
}

// CorrectOptionIDs returns the ids of the correct options.
func (q QuestionDetail) CorrectOptionIDs() []OptionID {
	ids := make([]OptionID, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// Reference derives the valid-option reference handed to the aggregate at
// submission time. Correctness never leaks through this path.
func (q QuestionDetail) Reference() QuestionReference {
	return NewQuestionReference(q.ID, q.OptionIDs())
}

// ProgressSnapshot is the user-progress view updated when a session finishes.
// The leveling rules live in a separate subsystem; the core only consumes the
// returned snapshot.
type ProgressSnapshot struct {
	UserID            UserID `json:"userId"`
	SessionsCompleted int    `json:"sessionsCompleted"`
	TotalScore        int    `json:"totalScore"`
	StudySeconds      int64  `json:"studySeconds"`
	Level             int    `json:"level"`
}
