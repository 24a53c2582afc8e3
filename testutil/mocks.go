package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// MockStreamServer mocks the streaming server's public API.
type MockStreamServer struct {
	*httptest.Server

	mu       sync.Mutex
	Handlers map[string]http.HandlerFunc
	hits     map[string]*atomic.Int64
}

// NewMockStreamServer creates a mock server closed on test cleanup.
func NewMockStreamServer(t *testing.T) *MockStreamServer {
	t.Helper()
	m := &MockStreamServer{
		Handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]*atomic.Int64),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		handler, ok := m.Handlers[r.URL.Path]
		counter := m.counterLocked(r.URL.Path)
		m.mu.Unlock()
		counter.Add(1)
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *MockStreamServer) counterLocked(path string) *atomic.Int64 {
	c, ok := m.hits[path]
	if !ok {
		c = &atomic.Int64{}
		m.hits[path] = c
	}
	return c
}

// Handle installs a handler for path.
func (m *MockStreamServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[path] = h
}

// Hits returns how many requests path has received.
func (m *MockStreamServer) Hits(path string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counterLocked(path).Load()
}

// JSON installs a handler that always answers v as JSON.
func (m *MockStreamServer) JSON(path string, v any) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
	})
}

// Fail installs a handler that always answers status.
func (m *MockStreamServer) Fail(path string, status int) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(status), status)
	})
}

// MockStatusResponse answers /api/status.
func (m *MockStreamServer) MockStatusResponse(status map[string]any) { m.JSON("/api/status", status) }

// MockConfigResponse answers /api/config.
func (m *MockStreamServer) MockConfigResponse(cfg map[string]any) { m.JSON("/api/config", cfg) }

// MockPingResponse answers /api/ping with an empty 200.
func (m *MockStreamServer) MockPingResponse() {
	m.Handle("/api/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

// MockRegisterResponse answers /api/chat/register with a fixed token, echoing the
// requested display name when displayName is empty.
func (m *MockStreamServer) MockRegisterResponse(accessToken, displayName string) {
	m.Handle("/api/chat/register", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DisplayName string `json:"displayName"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		name := displayName
		if name == "" {
			name = body.DisplayName
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "accessToken": accessToken, "displayName": name}) //nolint:errcheck // test mock response
	})
}
