package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/spend-tracker/internal/logger"
	"github.com/dvloznov/spend-tracker/internal/tracker"
	"github.com/google/uuid"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		path   string
		header map[string]string
		want   int
	}{
		{"no key configured", "", "/api/dashboard", nil, http.StatusOK},
		{"missing key", "secret", "/api/dashboard", nil, http.StatusUnauthorized},
		{"wrong key", "secret", "/api/dashboard", map[string]string{HeaderAPIKey: "nope"}, http.StatusUnauthorized},
		{"api key header", "secret", "/api/dashboard", map[string]string{HeaderAPIKey: "secret"}, http.StatusOK},
		{"bearer token", "secret", "/api/dashboard", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"health is open", "secret", "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			Auth(tt.apiKey)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSession(t *testing.T) {
	store := tracker.NewSessionStore()
	var seen *tracker.Session
	h := Session(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == nil {
		t.Fatal("session missing from context")
	}
	id := rec.Header().Get(HeaderSessionID)
	if _, err := uuid.Parse(id); err != nil || id != seen.ID() {
		t.Fatalf("session header = %q, want the new session's uuid", id)
	}
	first := seen

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderSessionID, id)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != first {
		t.Error("same header should resolve the same session")
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)

	var fromHandler string
	h := RequestID(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromHandler = RequestIDFromContext(r.Context())
		log := logger.FromContext(r.Context())
		log.Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/banks", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if fromHandler != "req-1" || rec.Header().Get(HeaderRequestID) != "req-1" {
		t.Errorf("request id = %q, header %q", fromHandler, rec.Header().Get(HeaderRequestID))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["request_id"] != "req-1" || entry["status"] != float64(http.StatusTeapot) || entry["path"] != "/api/banks" {
		t.Errorf("request log = %v", entry)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.NewWithWriter(&bytes.Buffer{}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/dashboard", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), HeaderSessionID) {
		t.Error("preflight should allow the session header")
	}
}
