package server

import (
	"github.com/onnwee/livewatch/session"
	"github.com/onnwee/livewatch/store"
)

// Session is the coordinator surface the handlers use.
type Session interface {
	View() session.View
	Snapshot() session.State
	Dispatch(ev session.Event) error
	ChangeName(name string) error
	Running() bool
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	sess  Session
	store store.Store
}

// NewHandlers creates handlers over sess. st is probed by /readyz and may be nil.
func NewHandlers(sess Session, st store.Store) *Handlers {
	return &Handlers{sess: sess, store: st}
}
