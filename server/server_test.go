package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/onnwee/garden-tender/command"
	"github.com/onnwee/garden-tender/tracker"
)

type fakeChat struct {
	mu        sync.Mutex
	connected bool
	sent      []string
	err       error
}

func (f *fakeChat) Connected() bool    { return f.connected }
func (f *fakeChat) Channels() []string { return []string{"garden"} }

func (f *fakeChat) Send(_ context.Context, channel, text string) error {
	if f.err != nil {
		return f.err
	}
	if channel != "garden" {
		return fmt.Errorf("%w: not joined", tracker.ErrUndeliverable)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channel+":"+text)
	return nil
}

type fakeSessions []string

func (s fakeSessions) Len() int         { return len(s) }
func (s fakeSessions) Owners() []string { return s }

func newTestMux(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if deps.Commands == nil {
		deps.Commands = command.NewRegistry(command.Ping(), command.Help())
	}
	return NewMux(ctx, deps)
}

func do(h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return m
}

func TestHealthzOK(t *testing.T) {
	h := newTestMux(t, Deps{})
	rr := do(h, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected a generated correlation id")
	}
}

func TestCorrelationHeaderReused(t *testing.T) {
	h := newTestMux(t, Deps{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "corr-1" {
		t.Errorf("X-Correlation-ID = %q, want corr-1", got)
	}
}

func TestReadyz(t *testing.T) {
	chat := &fakeChat{}
	h := newTestMux(t, Deps{Chat: chat})

	rr := do(h, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while disconnected, got %d", rr.Code)
	}
	if m := decode(t, rr); m["failed_check"] != "chat" {
		t.Errorf("failed_check = %v", m["failed_check"])
	}

	chat.connected = true
	rr = do(h, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when connected, got %d", rr.Code)
	}
	if m := decode(t, rr); m["status"] != "ready" {
		t.Errorf("status = %v", m["status"])
	}
}

func TestRoot(t *testing.T) {
	h := newTestMux(t, Deps{Chat: &fakeChat{connected: true}})
	rr := do(h, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	m := decode(t, rr)
	if m["status"] != "online" || m["bot_logged_in"] != true || m["commands_loaded"] != float64(2) {
		t.Errorf("root = %v", m)
	}
	if _, ok := m["timestamp"].(string); !ok {
		t.Error("missing timestamp")
	}

	if rr := do(h, http.MethodGet, "/nope", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d, want 404", rr.Code)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		chat       *fakeChat
		wantStatus string
		wantUserID any
	}{
		{"connected", &fakeChat{connected: true}, "connected", "999"},
		{"disconnected", &fakeChat{}, "disconnected", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestMux(t, Deps{Chat: tt.chat, BotUserID: "999", BotLogin: "gardenbot", Sessions: fakeSessions{"garden"}})
			m := decode(t, do(h, http.MethodGet, "/status", nil))
			if m["bot_status"] != tt.wantStatus || m["user_id"] != tt.wantUserID {
				t.Errorf("status = %v", m)
			}
			if m["active_sessions"] != float64(1) {
				t.Errorf("active_sessions = %v", m["active_sessions"])
			}
			if cmds, ok := m["commands"].([]any); !ok || len(cmds) != 2 {
				t.Errorf("commands = %v", m["commands"])
			}
		})
	}
}

func TestCommands(t *testing.T) {
	h := newTestMux(t, Deps{})
	m := decode(t, do(h, http.MethodGet, "/commands", nil))
	if m["total"] != float64(2) {
		t.Errorf("total = %v", m["total"])
	}
	details, ok := m["details"].([]any)
	if !ok || len(details) != 2 {
		t.Fatalf("details = %v", m["details"])
	}
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name       string
		chat       *fakeChat
		body       string
		wantStatus int
	}{
		{"not connected", &fakeChat{}, `{"threadID":"garden","message":"hi"}`, http.StatusServiceUnavailable},
		{"missing thread", &fakeChat{connected: true}, `{"message":"hi"}`, http.StatusBadRequest},
		{"missing message", &fakeChat{connected: true}, `{"threadID":"garden","message":"  "}`, http.StatusBadRequest},
		{"bad json", &fakeChat{connected: true}, `{`, http.StatusBadRequest},
		{"unknown thread", &fakeChat{connected: true}, `{"threadID":"other","message":"hi"}`, http.StatusInternalServerError},
		{"send failure", &fakeChat{connected: true, err: errors.New("boom")}, `{"threadID":"garden","message":"hi"}`, http.StatusInternalServerError},
		{"delivered", &fakeChat{connected: true}, `{"threadID":"garden","message":"hi"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestMux(t, Deps{Chat: tt.chat})
			rr := do(h, http.MethodPost, "/send-message", []byte(tt.body))
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestSendMessageRequiresAdmin(t *testing.T) {
	chat := &fakeChat{connected: true}
	h := newTestMux(t, Deps{Chat: chat, AdminToken: "secret"})

	rr := do(h, http.MethodPost, "/send-message", []byte(`{"threadID":"garden","message":"hi"}`))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/send-message", bytes.NewReader([]byte(`{"threadID":"garden","message":"hi"}`)))
	req.Header.Set("X-Admin-Token", "secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	if len(chat.sent) != 1 || chat.sent[0] != "garden:hi" {
		t.Errorf("sent = %v", chat.sent)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestMux(t, Deps{Chat: &fakeChat{connected: true}})
	if rr := do(h, http.MethodGet, "/send-message", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /send-message = %d", rr.Code)
	}
	if rr := do(h, http.MethodPost, "/status", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestMux(t, Deps{})
	if rr := do(h, http.MethodGet, "/metrics", nil); rr.Code != http.StatusOK {
		t.Errorf("/metrics = %d", rr.Code)
	}
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Start(ctx, "127.0.0.1:0", Deps{}) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}
