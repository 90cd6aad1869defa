package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-session-service/internal/domain"
)

// QuestionLoader loads question JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, id domain.QuestionID) (domain.QuestionDetail, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, id.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QuestionDetail{}, domain.ErrQuestionNotFound
		}
		return domain.QuestionDetail{}, fmt.Errorf("load question: %w", err)
	}
	var detail domain.QuestionDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return domain.QuestionDetail{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return detail, nil
}

// GetQuestionReference makes the loader usable as an uncached catalog when no
// Redis tier is configured.
func (l *QuestionLoader) GetQuestionReference(ctx context.Context, id domain.QuestionID) (domain.QuestionReference, error) {
	detail, err := l.LoadQuestion(ctx, id)
	if err != nil {
		return domain.QuestionReference{}, err
	}
	return detail.Reference(), nil
}

func (l *QuestionLoader) GetQuestionDetails(ctx context.Context, ids []domain.QuestionID) ([]domain.QuestionDetail, error) {
	details := make([]domain.QuestionDetail, 0, len(ids))
	for _, id := range ids {
		detail, err := l.LoadQuestion(ctx, id)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}
