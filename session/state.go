// Package session reconciles stream status, player and chat into one view.
//
// All transition logic lives in Reduce, a pure function of the current State,
// one Event and the current time. It returns the next State plus the Effects to
// run. The Coordinator owns the only State value, feeds it events from every
// asynchronous source through one goroutine and executes the effects.
package session

import (
	"time"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/chat"
	"github.com/onnwee/livewatch/player"
)

// Status messages.
const (
	MessageOnline  = "Stream is online."
	MessageOffline = "Stream is offline."
)

// Named timers owned by the coordinator.
const (
	TimerPoll        = "status-poll"
	TimerDuration    = "stream-duration"
	TimerChatDisable = "chat-disable"
	TimerResize      = "window-resize"
)

// Orientations reported after a resize.
const (
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
)

// Options are the tunables the reducer needs.
type Options struct {
	GraceWindow    time.Duration
	PollInterval   time.Duration
	DurationTick   time.Duration
	ResizeDebounce time.Duration
	// InstanceURL is appended to external action links.
	InstanceURL string
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		GraceWindow:    5 * time.Minute,
		PollInterval:   20 * time.Second,
		DurationTick:   time.Second,
		ResizeDebounce: 250 * time.Millisecond,
	}
}

// ExternalAction is a server-configured link resolved for this viewer.
type ExternalAction struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	OpenExternally bool   `json:"openExternally"`
}

// State is the whole session state. Slices are never mutated in place.
type State struct {
	Opts Options

	Config            api.Config
	ConfigLoaded      bool
	HasConfiguredChat bool

	StatusKnown        bool
	Online             bool
	ViewerCount        int
	StreamTitle        string
	LastConnectTime    *time.Time
	LastDisconnectTime *time.Time
	// GraceAppliedFor is the disconnect time the chat grace window was last computed from.
	GraceAppliedFor *time.Time
	StatusMessage   string
	PollingStarted  bool

	PlayerReady  bool
	PlayerActive bool
	Playing      bool
	Qualities    []player.Quality

	Identity         chat.Identity
	ChatConnected    bool
	ChatInputEnabled bool
	CanChat          bool
	ChatBlocked      bool
	DisplayChatPanel bool

	WindowFocused bool
	PageTitle     string
	WindowWidth   int
	WindowHeight  int
	Orientation   string
	PendingWidth  int
	PendingHeight int

	PendingAction *ExternalAction

	ErrorCount int
	LastError  string
}

// NewState returns the state before any event has been applied.
func NewState(opts Options) State {
	return State{
		Opts:             opts,
		CanChat:          true,
		DisplayChatPanel: true,
		WindowFocused:    true,
		StatusMessage:    MessageOffline,
	}
}
