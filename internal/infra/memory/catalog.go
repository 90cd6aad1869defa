package memory

import (
	"context"

	"quiz-session-service/internal/domain"
)

// StaticCatalog is a question catalog backed by an in-memory map (useful for
// tests/demos).
type StaticCatalog struct {
	questions map[domain.QuestionID]domain.QuestionDetail
}

func NewStaticCatalog(questions []domain.QuestionDetail) *StaticCatalog {
	byID := make(map[domain.QuestionID]domain.QuestionDetail, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &StaticCatalog{questions: byID}
}

func (c *StaticCatalog) GetQuestionReference(_ context.Context, id domain.QuestionID) (domain.QuestionReference, error) {
	q, ok := c.questions[id]
	if !ok {
		return domain.QuestionReference{}, domain.ErrQuestionNotFound
	}
	return q.Reference(), nil
}

func (c *StaticCatalog) GetQuestionDetails(_ context.Context, ids []domain.QuestionID) ([]domain.QuestionDetail, error) {
	details := make([]domain.QuestionDetail, 0, len(ids))
	for _, id := range ids {
		q, ok := c.questions[id]
		if !ok {
			return nil, domain.ErrQuestionNotFound
		}
		details = append(details, q)
	}
	return details, nil
}
