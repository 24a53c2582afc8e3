package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/livewatch/chat"
	"github.com/onnwee/livewatch/session"
	"github.com/onnwee/livewatch/telemetry"
)

const maxBodyBytes = 4 << 10

// HandleState returns the derived view.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.View())
}

// HandleConfigRefresh refetches the instance config.
func (h *Handlers) HandleConfigRefresh(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	h.dispatch(w, r, session.ConfigRequested{})
}

// HandleChatName changes the viewer's display name.
func (h *Handlers) HandleChatName(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	if err := h.sess.ChangeName(name); err != nil {
		if errors.Is(err, chat.ErrNoSession) {
			http.Error(w, "no chat session", http.StatusConflict)
			return
		}
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleChatPanel toggles the chat panel.
func (h *Handlers) HandleChatPanel(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	h.dispatch(w, r, session.ChatPanelToggled{})
}

// HandleQuality pins a rendition from the quality menu; index -1 selects auto.
func (h *Handlers) HandleQuality(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var body struct {
		Index *int `json:"index"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Index == nil {
		http.Error(w, "index required", http.StatusBadRequest)
		return
	}
	h.dispatch(w, r, session.QualitySelected{Index: *body.Index})
}

// HandleWindow handles /window/focus, /window/blur and /window/resize.
func (h *Handlers) HandleWindow(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	switch strings.TrimPrefix(r.URL.Path, "/window/") {
	case "focus":
		h.dispatch(w, r, session.WindowFocused{})
	case "blur":
		h.dispatch(w, r, session.WindowBlurred{})
	case "resize":
		var body struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.Width <= 0 || body.Height <= 0 {
			http.Error(w, "width and height must be positive", http.StatusBadRequest)
			return
		}
		h.dispatch(w, r, session.WindowResized{Width: body.Width, Height: body.Height})
	default:
		http.NotFound(w, r)
	}
}

// HandleKey forwards a keyboard shortcut.
func (h *Handlers) HandleKey(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var body struct {
		Code    string `json:"code"`
		InInput bool   `json:"inInput"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Code == "" {
		http.Error(w, "code required", http.StatusBadRequest)
		return
	}
	h.dispatch(w, r, session.KeyPressed{Code: body.Code, InInput: body.InInput})
}

// HandleAction opens (POST /actions/{index}) or closes (DELETE /actions/pending)
// an external action.
func (h *Handlers) HandleAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/actions/")
	switch {
	case r.Method == http.MethodDelete && rest == "pending":
		h.dispatch(w, r, session.ActionClosed{})
	case r.Method == http.MethodPost:
		idx, err := strconv.Atoi(rest)
		if err != nil {
			http.Error(w, "invalid action index", http.StatusBadRequest)
			return
		}
		if idx < 0 || idx >= len(h.sess.Snapshot().Config.ExternalActions) {
			http.NotFound(w, r)
			return
		}
		h.dispatch(w, r, session.ActionRequested{Index: idx})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) dispatch(w http.ResponseWriter, r *http.Request, ev session.Event) {
	if err := h.sess.Dispatch(ev); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotRunning) {
		http.Error(w, "session not running", http.StatusServiceUnavailable)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}
