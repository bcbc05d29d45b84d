package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// StockItem is one listing in a mocked stock payload.
type StockItem struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// StockPayload is the json body nested inside the mocked tRPC envelope.
type StockPayload struct {
	GearStock      []StockItem `json:"gearStock"`
	SeedsStock     []StockItem `json:"seedsStock"`
	EggStock       []StockItem `json:"eggStock"`
	CosmeticsStock []StockItem `json:"cosmeticsStock"`
	HoneyStock     []StockItem `json:"honeyStock,omitempty"`
	NightStock     []StockItem `json:"nightStock,omitempty"`
	BloodStock     []StockItem `json:"bloodStock,omitempty"`
}

// MockStockServer mocks the stock and weather endpoints. Handlers are keyed by
// URL path; every request is recorded.
type MockStockServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	requests []*http.Request
}

// NewMockStockServer creates a new mock stock API server.
func NewMockStockServer(t *testing.T) *MockStockServer {
	t.Helper()
	m := &MockStockServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Clone(r.Context()))
		handler, ok := m.Handlers[r.URL.Path]
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle installs a handler under the server lock.
func (m *MockStockServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[path] = h
}

// Requests returns the requests received so far.
func (m *MockStockServer) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

// MockStockResponse serves payload wrapped in the tRPC batch envelope.
func (m *MockStockServer) MockStockResponse(path string, payload StockPayload) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		response := []map[string]interface{}{
			{"result": map[string]interface{}{
				"data": map[string]interface{}{"json": payload},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	})
}

// MockWeatherResponse serves fields as a flat weather object.
func (m *MockStockServer) MockWeatherResponse(path string, fields map[string]interface{}) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fields) //nolint:errcheck // test mock response
	})
}

// MockRawResponse serves body verbatim with the given status.
func (m *MockStockServer) MockRawResponse(path string, status int, body string) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body)) //nolint:errcheck // test mock response
	})
}

// MockTwitchServer mocks the Twitch id endpoints used for token validation
// and refresh.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch id server.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockValidateResponse adds a handler for /oauth2/validate.
func (m *MockTwitchServer) MockValidateResponse(login, userID string, scopes []string, expiresIn int) {
	m.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		response := map[string]interface{}{
			"login":      login,
			"user_id":    userID,
			"scopes":     scopes,
			"expires_in": expiresIn,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint.
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"token_type":    "bearer",
			"scope":         []string{"chat:read", "chat:edit"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockErrorResponse adds a handler that returns an error status.
func (m *MockTwitchServer) MockErrorResponse(path string, statusCode int, message string) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		response := map[string]interface{}{
			"status":  statusCode,
			"message": message,
		}
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
