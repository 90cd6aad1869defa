package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// WSHandler streams live session progress to observers over a websocket.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the watch route on mux.
func (h *WSHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /sessions/{id}/watch", h.ServeWatch)
}

type watchMessage struct {
	Type    string            `json:"type"`
	Payload app.SessionUpdate `json:"payload"`
}

// ServeWatch upgrades the request and pushes one snapshot followed by every
// subsequent update until the client disconnects. Watching requires ownership,
// like every other session read.
func (h *WSHandler) ServeWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := domain.QuizSessionID(r.PathValue("id"))

	session, err := h.service.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.service.Watch().Subscribe(sessionID)
	defer cancel()

	snapshot := app.SessionUpdate{
		SessionID:     session.ID().String(),
		State:         string(session.State()),
		AnsweredCount: session.AnsweredQuestionCount(),
		QuestionCount: len(session.QuestionIDs()),
	}
	if err := conn.WriteJSON(watchMessage{Type: "snapshot", Payload: snapshot}); err != nil {
		return
	}

	// Reader only detects disconnect; watchers never send payloads.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(watchMessage{Type: "progress", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
