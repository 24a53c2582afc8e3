package session

import (
	"time"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/chat"
	"github.com/onnwee/livewatch/player"
)

// Event is an input to Reduce.
type Event interface{ isEvent() }

// Started is the first event of a session, carrying the persisted flags.
type Started struct {
	ChatBlocked        bool
	ChatPanelDisplayed bool
}

// ConfigRequested asks for the instance config to be fetched again.
type ConfigRequested struct{}

// ConfigLoaded carries a fetched config.
type ConfigLoaded struct{ Config api.Config }

// ConfigFailed reports a config fetch failure.
type ConfigFailed struct{ Err error }

// PlayerReady is reported once the player can accept a source.
type PlayerReady struct{}

// PlayerPlaying is reported when playback begins.
type PlayerPlaying struct{}

// PlayerEnded is reported when the stream source ends.
type PlayerEnded struct{}

// PlayerFailed is reported on an unrecoverable playback error.
type PlayerFailed struct{ Err error }

// QualitiesLoaded carries the quality menu.
type QualitiesLoaded struct{ Menu []player.Quality }

// QualitySelected pins a rendition from the menu.
type QualitySelected struct{ Index int }

// StatusUpdated carries one successful status poll.
type StatusUpdated struct{ Status api.Status }

// OfflineDetected reports a failed status fetch or ping.
type OfflineDetected struct{}

// NetworkError reports a recoverable network failure.
type NetworkError struct {
	Context string
	Err     error
}

// PollSettled reports that the in-flight status fetch returned.
type PollSettled struct{}

// TimerFired reports a named timer firing. Seq identifies the arming that fired.
type TimerFired struct {
	Name string
	Seq  uint64
}

// IdentityChanged carries a new chat identity.
type IdentityChanged struct{ Identity chat.Identity }

// ChatDisabled reports a server-side chat disablement.
type ChatDisabled struct{ Permanent bool }

// RegistrationRequired reports that the server wants a fresh registration.
type RegistrationRequired struct{}

// ChatSessionResult reports the outcome of one session setup attempt.
type ChatSessionResult struct{ Err error }

// ChatPanelToggled flips the chat panel.
type ChatPanelToggled struct{}

// NameChangeRequested asks for a new display name.
type NameChangeRequested struct{ Name string }

// WindowFocused and WindowBlurred track page focus.
type (
	WindowFocused struct{}
	WindowBlurred struct{}
)

// WindowResized reports new window dimensions; applied after a debounce.
type WindowResized struct{ Width, Height int }

// KeyPressed is a keyboard shortcut. InInput marks keys typed into a text field.
type KeyPressed struct {
	Code    string
	InInput bool
}

// ActionRequested opens the configured external action at Index.
type ActionRequested struct{ Index int }

// ActionClosed dismisses the pending action modal.
type ActionClosed struct{}

func (Started) isEvent()              {}
func (ConfigRequested) isEvent()      {}
func (ConfigLoaded) isEvent()         {}
func (ConfigFailed) isEvent()         {}
func (PlayerReady) isEvent()          {}
func (PlayerPlaying) isEvent()        {}
func (PlayerEnded) isEvent()          {}
func (PlayerFailed) isEvent()         {}
func (QualitiesLoaded) isEvent()      {}
func (QualitySelected) isEvent()      {}
func (StatusUpdated) isEvent()        {}
func (OfflineDetected) isEvent()      {}
func (NetworkError) isEvent()         {}
func (PollSettled) isEvent()          {}
func (TimerFired) isEvent()           {}
func (IdentityChanged) isEvent()      {}
func (ChatDisabled) isEvent()         {}
func (RegistrationRequired) isEvent() {}
func (ChatSessionResult) isEvent()    {}
func (ChatPanelToggled) isEvent()     {}
func (NameChangeRequested) isEvent()  {}
func (WindowFocused) isEvent()        {}
func (WindowBlurred) isEvent()        {}
func (WindowResized) isEvent()        {}
func (KeyPressed) isEvent()           {}
func (ActionRequested) isEvent()      {}
func (ActionClosed) isEvent()         {}

// Effect is a command produced by Reduce for the coordinator to run.
type Effect interface{ isEffect() }

type (
	// FetchConfig fetches the instance config.
	FetchConfig struct{}
	// InitPlayer attaches the player engine.
	InitPlayer struct{}
	// StartPlayer restores volume and attaches the stream source.
	StartPlayer struct{}
	// DeactivatePlayer detaches the stream source.
	DeactivatePlayer struct{}
	// TogglePlay pauses or resumes playback.
	TogglePlay struct{}
	// ToggleMute flips mute.
	ToggleMute struct{}
	// AdjustVolume changes the volume by Delta.
	AdjustVolume struct{ Delta float64 }
	// SelectQuality pins a rendition.
	SelectQuality struct{ Index int }
	// Poll starts one status poll.
	Poll struct{}
	// StartTimer (re)arms a named timer. Repeat makes it an interval.
	StartTimer struct {
		Name   string
		After  time.Duration
		Repeat bool
	}
	// CancelTimer stops a named timer; stopping an idle timer is a no-op.
	CancelTimer struct{ Name string }
	// EnsureChat sets up the chat session.
	EnsureChat struct{ Force bool }
	// SendNameChange sends a display-name change over the chat socket.
	SendNameChange struct{ Name string }
	// Persist stores a value under a persistence key.
	Persist struct{ Key, Value string }
	// OpenExternal opens a URL outside the session.
	OpenExternal struct{ URL string }
)

func (FetchConfig) isEffect()      {}
func (InitPlayer) isEffect()       {}
func (StartPlayer) isEffect()      {}
func (DeactivatePlayer) isEffect() {}
func (TogglePlay) isEffect()       {}
func (ToggleMute) isEffect()       {}
func (AdjustVolume) isEffect()     {}
func (SelectQuality) isEffect()    {}
func (Poll) isEffect()             {}
func (StartTimer) isEffect()       {}
func (CancelTimer) isEffect()      {}
func (EnsureChat) isEffect()       {}
func (SendNameChange) isEffect()   {}
func (Persist) isEffect()          {}
func (OpenExternal) isEffect()     {}
