package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"quiz-session-service/internal/domain"
)

type sessionEventRow struct {
	bun.BaseModel `bun:"table:quiz_session_events,alias:e"`

	SessionID  string    `bun:"session_id,pk"`
	Version    int64     `bun:"version,pk"`
	EventType  string    `bun:"event_type,notnull"`
	Payload    []byte    `bun:"payload,type:jsonb,notnull"`
	OccurredAt time.Time `bun:"occurred_at,notnull"`
}

type sessionIndexRow struct {
	bun.BaseModel `bun:"table:quiz_session_index,alias:i"`

	SessionID string    `bun:"session_id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	State     string    `bun:"state,notnull"`
	StartedAt time.Time `bun:"started_at,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	Version   int64     `bun:"version,notnull"`
}

// EventStore persists quiz sessions as an append-only event stream per
// session, with a denormalized index row maintained in the same transaction
// so expiry and active-session queries never scan event histories. The
// primary key on (session_id, version) is the sole optimistic-concurrency
// signal: a concurrent writer loses by unique violation, and the whole batch
// rolls back.
type EventStore struct {
	db *bun.DB
}

func NewEventStore(db *bun.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) FindByID(ctx context.Context, id domain.QuizSessionID) (*domain.QuizSession, error) {
	var rows []sessionEventRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", id.String()).
		Order("version ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session events: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	stream := make([]domain.StoredEvent, 0, len(rows))
	for _, row := range rows {
		stream = append(stream, domain.StoredEvent{
			SessionID:  id,
			Version:    row.Version,
			EventType:  row.EventType,
			Payload:    row.Payload,
			OccurredAt: row.OccurredAt,
		})
	}
	return domain.ReplaySession(id, stream)
}

func (s *EventStore) Save(ctx context.Context, session *domain.QuizSession) error {
	pending := session.UncommittedEvents()
	if len(pending) == 0 {
		return nil
	}
	base := session.Version()
	rows := make([]sessionEventRow, 0, len(pending))
	for i, e := range pending {
		se, err := domain.EncodeEvent(session.ID(), base+int64(i)+1, e)
		if err != nil {
			return err
		}
		rows = append(rows, sessionEventRow{
			SessionID:  se.SessionID.String(),
			Version:    se.Version,
			EventType:  se.EventType,
			Payload:    se.Payload,
			OccurredAt: se.OccurredAt,
		})
	}
	index := indexRowFor(session, base+int64(len(pending)))

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&index).
			On("CONFLICT (session_id) DO UPDATE").
			Set("state = EXCLUDED.state").
			Set("expires_at = EXCLUDED.expires_at").
			Set("version = EXCLUDED.version").
			Exec(ctx)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConcurrentModification
		}
		return fmt.Errorf("append session events: %w", err)
	}
	session.MarkChangesAsCommitted()
	return nil
}

func (s *EventStore) FindExpiredSessions(ctx context.Context, now time.Time, limit int) ([]*domain.QuizSession, error) {
	var ids []string
	q := s.db.NewSelect().
		Model((*sessionIndexRow)(nil)).
		Column("session_id").
		Where("state = ?", string(domain.StateInProgress)).
		Where("expires_at < ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	sessions := make([]*domain.QuizSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.FindByID(ctx, domain.QuizSessionID(id))
		if err != nil {
			// The index is a projection; a stream deleted between the query
			// and the rehydration is not an error for the sweep.
			if errors.Is(err, domain.ErrSessionNotFound) {
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *EventStore) FindActiveByUser(ctx context.Context, userID domain.UserID) (*domain.QuizSession, error) {
	var id string
	err := s.db.NewSelect().
		Model((*sessionIndexRow)(nil)).
		Column("session_id").
		Where("user_id = ?", userID.String()).
		Where("state = ?", string(domain.StateInProgress)).
		Order("started_at DESC").
		Limit(1).
		Scan(ctx, &id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("query active session: %w", err)
	}
	return s.FindByID(ctx, domain.QuizSessionID(id))
}

func indexRowFor(session *domain.QuizSession, version int64) sessionIndexRow {
	return sessionIndexRow{
		SessionID: session.ID().String(),
		UserID:    session.UserID().String(),
		State:     string(session.State()),
		StartedAt: session.StartedAt(),
		ExpiresAt: session.ExpiresAt(),
		Version:   version,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}
