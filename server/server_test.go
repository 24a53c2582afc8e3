package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/chat"
	"github.com/onnwee/livewatch/session"
	"github.com/onnwee/livewatch/store"
)

type fakeSession struct {
	mu        sync.Mutex
	running   bool
	state     session.State
	events    []session.Event
	names     []string
	nameErr   error
	dispatchE error
}

func (f *fakeSession) View() session.View { return session.Derive(f.Snapshot(), time.Now()) }

func (f *fakeSession) Snapshot() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) Dispatch(ev session.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dispatchE != nil {
		return f.dispatchE
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSession) ChangeName(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nameErr != nil {
		return f.nameErr
	}
	f.names = append(f.names, name)
	return nil
}

func (f *fakeSession) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeSession) lastEvent() session.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	return f.events[len(f.events)-1]
}

func newTestSession() *fakeSession {
	st := session.NewState(session.DefaultOptions())
	st.ConfigLoaded = true
	st.Config = api.Config{
		Name:            "Night Owls",
		ExternalActions: []api.ExternalAction{{URL: "https://tips.example.com", Title: "Tips"}},
	}
	return &fakeSession{running: true, state: st}
}

func newTestMux(t *testing.T, sess *fakeSession, st store.Store) http.Handler {
	t.Helper()
	t.Setenv("CONTROL_TOKEN", "")
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewMux(ctx, NewHandlers(sess, st))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	sess := newTestSession()
	h := newTestMux(t, sess, nil)

	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("expected ok body, got %q", got)
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected a correlation id header")
	}

	sess.running = false
	if rr := do(t, h, http.MethodGet, "/healthz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the loop stopped, got %d", rr.Code)
	}
}

type brokenStore struct{ store.Store }

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*fakeSession)
		store      store.Store
		wantStatus int
		wantCheck  string
	}{
		{name: "ready", store: store.NewMemoryStore(), wantStatus: http.StatusOK},
		{name: "loop stopped", mutate: func(f *fakeSession) { f.running = false }, wantStatus: http.StatusServiceUnavailable, wantCheck: "session"},
		{name: "config missing", mutate: func(f *fakeSession) { f.state.ConfigLoaded = false }, wantStatus: http.StatusServiceUnavailable, wantCheck: "config"},
		{name: "store down", store: brokenStore{}, wantStatus: http.StatusServiceUnavailable, wantCheck: "store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newTestSession()
			if tt.mutate != nil {
				tt.mutate(sess)
			}
			rr := do(t, newTestMux(t, sess, tt.store), http.MethodGet, "/readyz", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d, body=%s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["failed_check"] != tt.wantCheck {
				t.Errorf("failed_check = %q, want %q", body["failed_check"], tt.wantCheck)
			}
		})
	}
}

func TestStateEndpoint(t *testing.T) {
	sess := newTestSession()
	h := newTestMux(t, sess, nil)

	rr := do(t, h, http.MethodGet, "/state", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var v session.View
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if v.Title != "Night Owls" {
		t.Errorf("title = %q", v.Title)
	}
	if v.StatusMessage != session.MessageOffline {
		t.Errorf("status message = %q", v.StatusMessage)
	}
}

func TestControlEndpointsDispatchEvents(t *testing.T) {
	tests := []struct {
		method, path, body string
		want               session.Event
	}{
		{http.MethodPost, "/chat/panel", "", session.ChatPanelToggled{}},
		{http.MethodPost, "/config/refresh", "", session.ConfigRequested{}},
		{http.MethodPost, "/window/focus", "", session.WindowFocused{}},
		{http.MethodPost, "/window/blur", "", session.WindowBlurred{}},
		{http.MethodPost, "/window/resize", `{"width":1280,"height":720}`, session.WindowResized{Width: 1280, Height: 720}},
		{http.MethodPost, "/keys", `{"code":"KeyM"}`, session.KeyPressed{Code: "KeyM"}},
		{http.MethodPost, "/keys", `{"code":"Space","inInput":true}`, session.KeyPressed{Code: "Space", InInput: true}},
		{http.MethodPost, "/player/quality", `{"index":-1}`, session.QualitySelected{Index: -1}},
		{http.MethodPost, "/actions/0", "", session.ActionRequested{Index: 0}},
		{http.MethodDelete, "/actions/pending", "", session.ActionClosed{}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			sess := newTestSession()
			rr := do(t, newTestMux(t, sess, nil), tt.method, tt.path, tt.body)
			if rr.Code != http.StatusAccepted {
				t.Fatalf("expected 202, got %d, body=%s", rr.Code, rr.Body.String())
			}
			if got := sess.lastEvent(); got != tt.want {
				t.Errorf("dispatched %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestControlEndpointsRejectBadInput(t *testing.T) {
	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/chat/panel", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/window/resize", `{"width":0,"height":10}`, http.StatusBadRequest},
		{http.MethodPost, "/window/maximize", "", http.StatusNotFound},
		{http.MethodPost, "/keys", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/keys", `not json`, http.StatusBadRequest},
		{http.MethodPost, "/player/quality", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/actions/abc", "", http.StatusBadRequest},
		{http.MethodPost, "/actions/7", "", http.StatusNotFound},
		{http.MethodPost, "/chat/name", `{"name":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			sess := newTestSession()
			rr := do(t, newTestMux(t, sess, nil), tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d, body=%s", tt.want, rr.Code, rr.Body.String())
			}
			if ev := sess.lastEvent(); ev != nil {
				t.Errorf("unexpected event %#v", ev)
			}
		})
	}
}

func TestChatNameEndpoint(t *testing.T) {
	sess := newTestSession()
	h := newTestMux(t, sess, nil)
	if rr := do(t, h, http.MethodPost, "/chat/name", `{"name":"zed"}`); rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if len(sess.names) != 1 || sess.names[0] != "zed" {
		t.Fatalf("names = %v", sess.names)
	}

	sess.nameErr = chat.ErrNoSession
	if rr := do(t, h, http.MethodPost, "/chat/name", `{"name":"zed"}`); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 without a chat session, got %d", rr.Code)
	}
}

func TestStoppedSessionReturns503(t *testing.T) {
	sess := newTestSession()
	sess.dispatchE = session.ErrNotRunning
	rr := do(t, newTestMux(t, sess, nil), http.MethodPost, "/chat/panel", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestControlTokenRequiredForMutations(t *testing.T) {
	t.Setenv("CONTROL_TOKEN", "s3cret")
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess := newTestSession()
	h := NewMux(ctx, NewHandlers(sess, nil))

	if rr := do(t, h, http.MethodGet, "/state", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads stay open, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/chat/panel", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/chat/panel", nil)
	req.Header.Set("X-Control-Token", "s3cret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with token, got %d", rr.Code)
	}
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Start(ctx, NewHandlers(newTestSession(), nil), "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}
