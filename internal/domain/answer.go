package domain

import "time"

// QuestionReference carries the valid option ids of one question, looked up
// from the catalog at submission time. It validates a candidate selection
// without exposing which options are correct, and is never persisted.
type QuestionReference struct {
	questionID QuestionID
	validIDs   map[OptionID]struct{}
}

// NewQuestionReference builds a reference from the catalog's option list.
func NewQuestionReference(questionID QuestionID, validOptionIDs []OptionID) QuestionReference {
	valid := make(map[OptionID]struct{}, len(validOptionIDs))
	for _, id := range validOptionIDs {
		valid[id] = struct{}{}
	}
	return QuestionReference{questionID: questionID, validIDs: valid}
}

func (r QuestionReference) QuestionID() QuestionID { return r.questionID }

// HasOption reports whether id is a valid option of the question.
func (r QuestionReference) HasOption(id OptionID) bool {
	_, ok := r.validIDs[id]
	return ok
}

// Answer is the immutable record of one submitted answer. Equality is by id,
// not by content.
type Answer struct {
	id                AnswerID
	questionID        QuestionID
	selectedOptionIDs []OptionID
	answeredAt        time.Time
}

// NewAnswer validates a live submission: the selection must be non-empty and
// free of duplicates.
func NewAnswer(questionID QuestionID, selectedOptionIDs []OptionID, answeredAt time.Time) (Answer, error) {
	if len(selectedOptionIDs) == 0 {
		return Answer{}, InvalidAnswerError{Reason: "no options selected"}
	}
	seen := make(map[OptionID]struct{}, len(selectedOptionIDs))
	for _, id := range selectedOptionIDs {
		if _, dup := seen[id]; dup {
			return Answer{}, InvalidAnswerError{Reason: "duplicate option id " + id.String()}
		}
		seen[id] = struct{}{}
	}
	return Answer{
		id:                NewAnswerID(),
		questionID:        questionID,
		selectedOptionIDs: copyOptionIDs(selectedOptionIDs),
		answeredAt:        answeredAt,
	}, nil
}

// AnswerFromReplay rebuilds an answer from event history without validation.
// Once-recorded data is restored structurally as it was, even if live rules
// have since changed. The selection is still copied so the caller's slice
// cannot alias the answer's.
func AnswerFromReplay(id AnswerID, questionID QuestionID, selectedOptionIDs []OptionID, answeredAt time.Time) Answer {
	return Answer{
		id:                id,
		questionID:        questionID,
		selectedOptionIDs: copyOptionIDs(selectedOptionIDs),
		answeredAt:        answeredAt,
	}
}

func (a Answer) ID() AnswerID           { return a.id }
func (a Answer) QuestionID() QuestionID { return a.questionID }
func (a Answer) AnsweredAt() time.Time  { return a.answeredAt }

// SelectedOptionIDs returns a defensive copy of the selection in submission order.
func (a Answer) SelectedOptionIDs() []OptionID {
	return copyOptionIDs(a.selectedOptionIDs)
}

func copyOptionIDs(ids []OptionID) []OptionID {
	out := make([]OptionID, len(ids))
	copy(out, ids)
	return out
}
