package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

const readinessProbeKey = "__readyz"

// HandleHealthz reports liveness of the session loop.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if !h.sess.Running() {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports whether the session has what it needs to serve a viewer.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"session", func() error {
			if !h.sess.Running() {
				return errors.New("session loop not running")
			}
			return nil
		}},
		{"config", func() error {
			if !h.sess.Snapshot().ConfigLoaded {
				return errors.New("instance config not loaded")
			}
			return nil
		}},
		{"store", func() error {
			if h.store == nil {
				return nil
			}
			_, _, err := h.store.Get(r.Context(), readinessProbeKey)
			return err
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
