package session

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/onnwee/livewatch/chat"
	"github.com/onnwee/livewatch/store"
)

// Keyboard codes handled while the stream is online.
const (
	KeySpace          = "Space"
	KeyP              = "KeyP"
	KeyMediaPlayPause = "MediaPlayPause"
	KeyM              = "KeyM"
	KeyC              = "KeyC"
	KeyDigit9         = "Digit9"
	KeyDigit0         = "Digit0"
)

const volumeStep = 0.1

// Reduce applies ev to s at time now.
func Reduce(s State, ev Event, now time.Time) (State, []Effect) {
	var fx []Effect
	switch ev := ev.(type) {
	case Started:
		s.ChatBlocked = ev.ChatBlocked
		s.CanChat = !ev.ChatBlocked
		s.DisplayChatPanel = ev.ChatPanelDisplayed
		fx = append(fx, FetchConfig{}, InitPlayer{})

	case ConfigRequested:
		fx = append(fx, FetchConfig{})

	case ConfigLoaded:
		s.Config = ev.Config
		s.ConfigLoaded = true
		s.PageTitle = ev.Config.Name
		if !s.ChatBlocked && !s.HasConfiguredChat && !ev.Config.ChatDisabled {
			fx = append(fx, EnsureChat{})
		}
		s.HasConfiguredChat = true
		s.CanChat = !s.ChatBlocked

	case ConfigFailed:
		s = noteError(s, "fetch config", ev.Err)

	case PlayerReady:
		s.PlayerReady = true
		if !s.PollingStarted {
			s.PollingStarted = true
			fx = append(fx, Poll{})
		}

	case PlayerPlaying:
		s.Playing = true

	case PlayerEnded:
		if s.PlayerActive {
			s, fx = goOffline(s, nil, now, fx)
		}
		s, fx = deactivate(s, fx)

	case PlayerFailed:
		s, fx = goOffline(s, nil, now, fx)
		s, fx = deactivate(s, fx)

	case QualitiesLoaded:
		s.Qualities = ev.Menu

	case QualitySelected:
		fx = append(fx, SelectQuality(ev))

	case StatusUpdated:
		st := ev.Status
		wasKnown, wasOnline := s.StatusKnown, s.Online
		s.StatusKnown = true
		s.ViewerCount = st.ViewerCount
		s.LastConnectTime = st.LastConnectTime
		s.LastDisconnectTime = st.LastDisconnectTime
		s.StreamTitle = st.StreamTitle
		switch {
		case !wasKnown || st.Online != wasOnline:
			if st.Online {
				s, fx = goOnline(s, fx)
			} else {
				s, fx = goOffline(s, st.LastDisconnectTime, now, fx)
			}
		case !st.Online && st.LastDisconnectTime != nil && !sameTime(s.GraceAppliedFor, st.LastDisconnectTime):
			// offline was forced without a disconnect time; the grace window starts counting now
			s, fx = applyGrace(s, *st.LastDisconnectTime, now, fx)
		}

	case OfflineDetected:
		s.StatusKnown = true
		s, fx = goOffline(s, nil, now, fx)

	case NetworkError:
		s = noteError(s, ev.Context, ev.Err)

	case PollSettled:
		if s.PollingStarted {
			fx = append(fx, StartTimer{Name: TimerPoll, After: s.Opts.PollInterval})
		}

	case TimerFired:
		s, fx = timerFired(s, ev.Name, now, fx)

	case IdentityChanged:
		s.Identity = ev.Identity

	case ChatDisabled:
		s.CanChat = false
		s.ChatConnected = false
		if ev.Permanent {
			s.ChatBlocked = true
		}

	case RegistrationRequired:
		s.ChatConnected = false
		fx = append(fx, EnsureChat{Force: true})

	case ChatSessionResult:
		switch {
		case ev.Err == nil:
			// a disable pushed by the new socket may already have been applied
			s.ChatConnected = s.CanChat
		case errors.Is(ev.Err, chat.ErrChatBlocked):
			s.ChatBlocked = true
			s.CanChat = false
			s.ChatConnected = false
		case errors.Is(ev.Err, chat.ErrRegistrationInFlight):
		default:
			s.ChatConnected = false
			s = noteError(s, "chat session", ev.Err)
		}

	case ChatPanelToggled:
		s, fx = toggleChatPanel(s, fx)

	case NameChangeRequested:
		if s.ChatConnected && ev.Name != "" {
			fx = append(fx, SendNameChange(ev))
		}

	case WindowFocused:
		s.WindowFocused = true
		s.PageTitle = s.Config.Name

	case WindowBlurred:
		s.WindowFocused = false

	case WindowResized:
		s.PendingWidth, s.PendingHeight = ev.Width, ev.Height
		fx = append(fx, StartTimer{Name: TimerResize, After: s.Opts.ResizeDebounce})

	case KeyPressed:
		s, fx = keyPressed(s, ev, fx)

	case ActionRequested:
		s, fx = requestAction(s, ev.Index, fx)

	case ActionClosed:
		s.PendingAction = nil
	}
	return s, fx
}

// goOnline runs the offline-to-online transition.
func goOnline(s State, fx []Effect) (State, []Effect) {
	fx = append(fx,
		StartPlayer{},
		CancelTimer{Name: TimerChatDisable},
		StartTimer{Name: TimerDuration, After: s.Opts.DurationTick, Repeat: true},
	)
	s.PlayerActive = true
	s.Online = true
	s.GraceAppliedFor = nil
	s.ChatInputEnabled = true
	s.StreamTitle = ""
	s.StatusMessage = MessageOnline
	if !s.WindowFocused {
		s.PageTitle = " 🟢 " + s.Config.Name
	}
	return s, fx
}

// goOffline runs the online-to-offline path. disconnected is nil when the
// trigger carries no disconnect time; chat input is then left alone.
// A player that is still playing stays attached, so PlayerActive lags the
// offline status until the engine reports ended.
func goOffline(s State, disconnected *time.Time, now time.Time, fx []Effect) (State, []Effect) {
	fx = append(fx, CancelTimer{Name: TimerDuration})
	if disconnected != nil {
		s, fx = applyGrace(s, *disconnected, now, fx)
	}
	s.Online = false
	s.StatusMessage = MessageOffline
	if s.PlayerActive && !s.Playing {
		s, fx = deactivate(s, fx)
	}
	if !s.WindowFocused {
		s.PageTitle = " 🔴 " + s.Config.Name
	}
	return s, fx
}

// applyGrace keeps chat input open for what is left of the grace window
// after disconnected, or closes it at once when the window has passed.
func applyGrace(s State, disconnected, now time.Time, fx []Effect) (State, []Effect) {
	s.GraceAppliedFor = &disconnected
	remaining := s.Opts.GraceWindow - now.Sub(disconnected)
	if remaining > 0 {
		s.ChatInputEnabled = true
		return s, append(fx, StartTimer{Name: TimerChatDisable, After: remaining})
	}
	s.ChatInputEnabled = false
	return s, append(fx, CancelTimer{Name: TimerChatDisable})
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func deactivate(s State, fx []Effect) (State, []Effect) {
	s.PlayerActive = false
	s.Playing = false
	return s, append(fx, DeactivatePlayer{})
}

func timerFired(s State, name string, now time.Time, fx []Effect) (State, []Effect) {
	switch name {
	case TimerPoll:
		fx = append(fx, Poll{})
	case TimerDuration:
		s.StatusMessage = MessageOnline
		if s.LastConnectTime != nil {
			s.StatusMessage += " " + FormatDuration(now.Sub(*s.LastConnectTime))
		}
	case TimerChatDisable:
		s.ChatInputEnabled = false
	case TimerResize:
		s.WindowWidth, s.WindowHeight = s.PendingWidth, s.PendingHeight
		s.Orientation = OrientationLandscape
		if s.WindowHeight > s.WindowWidth {
			s.Orientation = OrientationPortrait
		}
	}
	return s, fx
}

func toggleChatPanel(s State, fx []Effect) (State, []Effect) {
	s.DisplayChatPanel = !s.DisplayChatPanel
	fx = append(fx, Persist{Key: store.KeyChatPanelDisplayed, Value: strconv.FormatBool(s.DisplayChatPanel)})
	// Showing the panel retries a chat setup that failed earlier.
	if s.DisplayChatPanel && s.ConfigLoaded && s.CanChat && !s.ChatConnected && !s.Config.ChatDisabled {
		fx = append(fx, EnsureChat{})
	}
	return s, fx
}

func keyPressed(s State, ev KeyPressed, fx []Effect) (State, []Effect) {
	if ev.InInput || !s.Online {
		return s, fx
	}
	switch ev.Code {
	case KeySpace, KeyP, KeyMediaPlayPause:
		s.Playing = !s.Playing
		fx = append(fx, TogglePlay{})
	case KeyM:
		fx = append(fx, ToggleMute{})
	case KeyC:
		s, fx = toggleChatPanel(s, fx)
	case KeyDigit9:
		fx = append(fx, AdjustVolume{Delta: -volumeStep})
	case KeyDigit0:
		fx = append(fx, AdjustVolume{Delta: volumeStep})
	}
	return s, fx
}

func requestAction(s State, index int, fx []Effect) (State, []Effect) {
	if index < 0 || index >= len(s.Config.ExternalActions) {
		return s, fx
	}
	a := s.Config.ExternalActions[index]
	u, err := ActionURL(a.URL, s.Identity.Username, s.Opts.InstanceURL)
	if err != nil {
		return noteError(s, "external action", err), fx
	}
	if a.OpenExternally {
		return s, append(fx, OpenExternal{URL: u})
	}
	s.PendingAction = &ExternalAction{URL: u, Title: a.Title, Description: a.Description}
	return s, fx
}

// ActionURL appends the viewer's username and the instance URL to raw.
func ActionURL(raw, username, instance string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("action url %q is not absolute", raw)
	}
	q := u.Query()
	q.Add("username", username)
	q.Add("instance", instance)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func noteError(s State, context string, err error) State {
	s.ErrorCount++
	if err != nil {
		s.LastError = context + ": " + err.Error()
	} else {
		s.LastError = context
	}
	return s
}
