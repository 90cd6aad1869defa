package app

import (
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// SessionUpdate is the progress view pushed to watchers of one session.
type SessionUpdate struct {
	SessionID     string    `json:"sessionId"`
	State         string    `json:"state"`
	AnsweredCount int       `json:"answeredCount"`
	QuestionCount int       `json:"questionCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SessionWatch fans session updates out to in-process subscribers. It carries
// no session state of its own; the event store stays the source of truth.
type SessionWatch struct {
	mu   sync.Mutex
	subs map[domain.QuizSessionID]map[chan SessionUpdate]struct{}
}

func NewSessionWatch() *SessionWatch {
	return &SessionWatch{
		subs: make(map[domain.QuizSessionID]map[chan SessionUpdate]struct{}),
	}
}

// Subscribe returns a channel receiving updates for sessionID. The caller
// must invoke the returned cancel function to avoid leaks.
func (w *SessionWatch) Subscribe(sessionID domain.QuizSessionID) (<-chan SessionUpdate, func()) {
	ch := make(chan SessionUpdate, 8)

	w.mu.Lock()
	if w.subs[sessionID] == nil {
		w.subs[sessionID] = make(map[chan SessionUpdate]struct{})
	}
	w.subs[sessionID][ch] = struct{}{}
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		if set, ok := w.subs[sessionID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(w.subs, sessionID)
			}
		}
		w.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an update to every watcher of the session. Slow consumers
// lose stale updates rather than blocking the publisher.
func (w *SessionWatch) Publish(update SessionUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs[domain.QuizSessionID(update.SessionID)] {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}
