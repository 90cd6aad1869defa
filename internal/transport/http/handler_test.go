package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	catalog := memory.NewStaticCatalog([]domain.QuestionDetail{
		{
			ID:     "q1",
			Prompt: "Choose the reading",
			Options: []domain.OptionDetail{
				{ID: "o1", Text: "A", Correct: true},
				{ID: "o2", Text: "B", Correct: false},
			},
		},
		{
			ID:     "q2",
			Prompt: "Choose the particle",
			Options: []domain.OptionDetail{
				{ID: "o1", Text: "C", Correct: false},
				{ID: "o2", Text: "D", Correct: true},
			},
		},
	})
	service := app.NewSessionService(memory.NewEventStore(), catalog, memory.NewProgressTracker())

	mux := http.NewServeMux()
	NewHandler(service).Register(mux)
	NewWSHandler(service).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, userID string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	fields := map[string]json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, fields
}

func stringField(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(fields[key], &s); err != nil {
		t.Fatalf("field %s: %v", key, err)
	}
	return s
}

func startRequest() map[string]any {
	return map[string]any{
		"examType":      "JLPT_N5",
		"questionCount": 2,
		"questionIds":   []string{"q1", "q2"},
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)

	resp, fields := doJSON(t, "POST", server.URL+"/sessions", "u1", startRequest())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status %d", resp.StatusCode)
	}
	sessionID := stringField(t, fields, "id")
	if stringField(t, fields, "state") != "IN_PROGRESS" {
		t.Fatalf("expected IN_PROGRESS, got %s", fields["state"])
	}

	resp, _ = doJSON(t, "POST", server.URL+"/sessions/"+sessionID+"/answers", "u1", map[string]any{
		"questionId":        "q1",
		"selectedOptionIds": []string{"o1"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer status %d", resp.StatusCode)
	}

	resp, fields = doJSON(t, "POST", server.URL+"/sessions/"+sessionID+"/answers", "u1", map[string]any{
		"questionId":        "q2",
		"selectedOptionIds": []string{"o1"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer status %d", resp.StatusCode)
	}
	if stringField(t, fields, "state") != "COMPLETED" {
		t.Fatalf("expected auto-complete, got %s", fields["state"])
	}

	resp, fields = doJSON(t, "GET", server.URL+"/sessions/"+sessionID+"/results", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results status %d", resp.StatusCode)
	}
	var score int
	if err := json.Unmarshal(fields["score"], &score); err != nil {
		t.Fatalf("score field: %v", err)
	}
	// q1 answered o1 (correct), q2 answered o1 (wrong).
	if score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
}

func TestStartSessionRequiresUser(t *testing.T) {
	server := newTestServer(t)

	resp, fields := doJSON(t, "POST", server.URL+"/sessions", "", startRequest())
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if stringField(t, fields, "code") != "UNAUTHENTICATED" {
		t.Fatalf("unexpected error code %s", fields["code"])
	}
}

func TestStartSessionValidationStatus(t *testing.T) {
	server := newTestServer(t)

	body := startRequest()
	body["questionCount"] = 0
	body["questionIds"] = []string{}
	resp, fields := doJSON(t, "POST", server.URL+"/sessions", "u1", body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if stringField(t, fields, "code") != "INVALID_QUESTION_COUNT" {
		t.Fatalf("unexpected error code %s", fields["code"])
	}
}

func TestGetSessionEnforcesOwnership(t *testing.T) {
	server := newTestServer(t)

	_, fields := doJSON(t, "POST", server.URL+"/sessions", "u1", startRequest())
	sessionID := stringField(t, fields, "id")

	resp, _ := doJSON(t, "GET", server.URL+"/sessions/"+sessionID, "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner read status %d", resp.StatusCode)
	}

	resp, fields = doJSON(t, "GET", server.URL+"/sessions/"+sessionID, "intruder", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign reader, got %d", resp.StatusCode)
	}
	if stringField(t, fields, "code") != "SESSION_NOT_FOUND" {
		t.Fatalf("unexpected error code %s", fields["code"])
	}

	resp, fields = doJSON(t, "GET", server.URL+"/sessions/"+sessionID, "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.StatusCode)
	}
	if stringField(t, fields, "code") != "UNAUTHENTICATED" {
		t.Fatalf("unexpected error code %s", fields["code"])
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	server := newTestServer(t)

	resp, fields := doJSON(t, "GET", server.URL+"/sessions/nope", "u1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if stringField(t, fields, "code") != "SESSION_NOT_FOUND" {
		t.Fatalf("unexpected error code %s", fields["code"])
	}
}

func TestDuplicateAnswerIsConflict(t *testing.T) {
	server := newTestServer(t)

	_, fields := doJSON(t, "POST", server.URL+"/sessions", "u1", startRequest())
	sessionID := stringField(t, fields, "id")

	answer := map[string]any{"questionId": "q1", "selectedOptionIds": []string{"o1"}}
	if resp, _ := doJSON(t, "POST", server.URL+"/sessions/"+sessionID+"/answers", "u1", answer); resp.StatusCode != http.StatusOK {
		t.Fatalf("first answer status %d", resp.StatusCode)
	}
	resp, fields := doJSON(t, "POST", server.URL+"/sessions/"+sessionID+"/answers", "u1", answer)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if stringField(t, fields, "code") != "QUESTION_ALREADY_ANSWERED" {
		t.Fatalf("unexpected error code %s", fields["code"])
	}
}
