package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type tags as stored in the event log. The log is the permanent source
// of truth, so tags are append-only: never rename or reuse one.
const (
	EventTypeSessionStarted   = "quiz_session.started"
	EventTypeAnswerSubmitted  = "quiz_session.answer_submitted"
	EventTypeSessionCompleted = "quiz_session.completed"
	EventTypeSessionExpired   = "quiz_session.expired"
)

// Event is a state change produced by the QuizSession aggregate.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

// SessionStarted opens a session's event stream.
type SessionStarted struct {
	SessionID   QuizSessionID `json:"sessionId"`
	UserID      UserID        `json:"userId"`
	Config      QuizConfigDTO `json:"config"`
	QuestionIDs []QuestionID  `json:"questionIds"`
	StartedAt   time.Time     `json:"startedAt"`
}

func (e SessionStarted) EventType() string     { return EventTypeSessionStarted }
func (e SessionStarted) OccurredAt() time.Time { return e.StartedAt }

// AnswerSubmitted records one accepted answer.
type AnswerSubmitted struct {
	AnswerID          AnswerID   `json:"answerId"`
	QuestionID        QuestionID `json:"questionId"`
	SelectedOptionIDs []OptionID `json:"selectedOptionIds"`
	AnsweredAt        time.Time  `json:"answeredAt"`
}

func (e AnswerSubmitted) EventType() string     { return EventTypeAnswerSubmitted }
func (e AnswerSubmitted) OccurredAt() time.Time { return e.AnsweredAt }

// SessionCompleted closes a session normally.
type SessionCompleted struct {
	CompletedAt time.Time `json:"completedAt"`
}

func (e SessionCompleted) EventType() string     { return EventTypeSessionCompleted }
func (e SessionCompleted) OccurredAt() time.Time { return e.CompletedAt }

// SessionExpired closes a session whose time limit elapsed.
type SessionExpired struct {
	ExpiredAt time.Time `json:"expiredAt"`
}

func (e SessionExpired) EventType() string     { return EventTypeSessionExpired }
func (e SessionExpired) OccurredAt() time.Time { return e.ExpiredAt }

// StoredEvent is the persistence envelope around one event. Version is the
// per-session sequence: the first event of a stream has version 1 and each
// following event increments it by exactly 1. The (SessionID, Version) pair
// is unique in every store, and a violated uniqueness constraint is the sole
// optimistic-concurrency conflict signal.
type StoredEvent struct {
	SessionID  QuizSessionID
	Version    int64
	EventType  string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// EncodeEvent wraps a domain event into its envelope at the given version.
func EncodeEvent(sessionID QuizSessionID, version int64, e Event) (StoredEvent, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("marshal %s event: %w", e.EventType(), err)
	}
	return StoredEvent{
		SessionID:  sessionID,
		Version:    version,
		EventType:  e.EventType(),
		Payload:    payload,
		OccurredAt: e.OccurredAt(),
	}, nil
}

// DecodeEvent unwraps a stored envelope back into a domain event. Unknown
// payload fields are ignored so old readers keep working as schemas grow.
func DecodeEvent(se StoredEvent) (Event, error) {
	switch se.EventType {
	case EventTypeSessionStarted:
		var e SessionStarted
		if err := json.Unmarshal(se.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", se.EventType, err)
		}
		return e, nil
	case EventTypeAnswerSubmitted:
		var e AnswerSubmitted
		if err := json.Unmarshal(se.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", se.EventType, err)
		}
		return e, nil
	case EventTypeSessionCompleted:
		var e SessionCompleted
		if err := json.Unmarshal(se.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", se.EventType, err)
		}
		return e, nil
	case EventTypeSessionExpired:
		var e SessionExpired
		if err := json.Unmarshal(se.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", se.EventType, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", se.EventType)
	}
}

// ReplaySession decodes a stored stream and rebuilds the aggregate from it.
func ReplaySession(id QuizSessionID, stream []StoredEvent) (*QuizSession, error) {
	events := make([]Event, 0, len(stream))
	for _, se := range stream {
		e, err := DecodeEvent(se)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	session := NewSessionForReplay(id)
	if err := session.LoadFromHistory(events); err != nil {
		return nil, err
	}
	return session, nil
}
