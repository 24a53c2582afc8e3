package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/chat"
	"github.com/onnwee/livewatch/store"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	o := DefaultOptions()
	o.GraceWindow = 10 * time.Second
	o.InstanceURL = "https://live.example.com"
	return o
}

func loaded() State {
	s := NewState(testOptions())
	s, _ = Reduce(s, Started{ChatPanelDisplayed: true}, t0)
	s, _ = Reduce(s, ConfigLoaded{Config: api.Config{Name: "Night Owls"}}, t0)
	return s
}

func status(online bool) StatusUpdated { return StatusUpdated{Status: api.Status{Online: online}} }

func ptr(t time.Time) *time.Time { return &t }

func TestStartedRequestsConfigAndPlayer(t *testing.T) {
	s, fx := Reduce(NewState(testOptions()), Started{ChatBlocked: true, ChatPanelDisplayed: false}, t0)
	assert.Equal(t, []Effect{FetchConfig{}, InitPlayer{}}, fx)
	assert.True(t, s.ChatBlocked)
	assert.False(t, s.CanChat)
	assert.False(t, s.DisplayChatPanel)
}

func TestConfigLoadedSetsUpChatOnce(t *testing.T) {
	s := NewState(testOptions())
	s, _ = Reduce(s, Started{ChatPanelDisplayed: true}, t0)
	s, fx := Reduce(s, ConfigLoaded{Config: api.Config{Name: "Night Owls"}}, t0)
	assert.Equal(t, []Effect{EnsureChat{}}, fx)
	assert.Equal(t, "Night Owls", s.PageTitle)
	assert.True(t, s.CanChat)

	_, fx = Reduce(s, ConfigLoaded{Config: api.Config{Name: "Night Owls"}}, t0)
	assert.Empty(t, fx, "chat is configured only on the first config")
}

func TestConfigLoadedSkipsChat(t *testing.T) {
	tests := []struct {
		name    string
		blocked bool
		cfg     api.Config
	}{
		{"blocked", true, api.Config{Name: "x"}},
		{"disabled by server", false, api.Config{Name: "x", ChatDisabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := Reduce(NewState(testOptions()), Started{ChatBlocked: tt.blocked, ChatPanelDisplayed: true}, t0)
			s, fx := Reduce(s, ConfigLoaded{Config: tt.cfg}, t0)
			assert.NotContains(t, fx, EnsureChat{})
			assert.Equal(t, !tt.blocked, s.CanChat)
		})
	}
}

func TestPlayerReadyStartsPollingOnce(t *testing.T) {
	s := loaded()
	s, fx := Reduce(s, PlayerReady{}, t0)
	assert.Equal(t, []Effect{Poll{}}, fx)
	_, fx = Reduce(s, PlayerReady{}, t0)
	assert.Empty(t, fx)
}

func TestPollRearmsOnSettle(t *testing.T) {
	s := loaded()
	_, fx := Reduce(s, PollSettled{}, t0)
	assert.Empty(t, fx, "no polling before the player is ready")

	s, _ = Reduce(s, PlayerReady{}, t0)
	_, fx = Reduce(s, PollSettled{}, t0)
	assert.Equal(t, []Effect{StartTimer{Name: TimerPoll, After: 20 * time.Second}}, fx)

	_, fx = Reduce(s, TimerFired{Name: TimerPoll}, t0)
	assert.Equal(t, []Effect{Poll{}}, fx)
}

func TestOnlineTransitionEffectsInOrder(t *testing.T) {
	s := loaded()
	s, fx := Reduce(s, StatusUpdated{Status: api.Status{Online: true, StreamTitle: "late show", ViewerCount: 4}}, t0)
	assert.Equal(t, []Effect{
		StartPlayer{},
		CancelTimer{Name: TimerChatDisable},
		StartTimer{Name: TimerDuration, After: time.Second, Repeat: true},
	}, fx)
	assert.True(t, s.Online)
	assert.True(t, s.PlayerActive)
	assert.True(t, s.ChatInputEnabled)
	assert.Empty(t, s.StreamTitle, "title is cleared pending fresh data")
	assert.Equal(t, MessageOnline, s.StatusMessage)

	// Same online value: no transition, fresh data kept.
	s, fx = Reduce(s, StatusUpdated{Status: api.Status{Online: true, StreamTitle: "late show"}}, t0)
	assert.Empty(t, fx)
	assert.Equal(t, "late show", s.StreamTitle)
}

func TestFirstOfflineStatusTransitions(t *testing.T) {
	s := loaded()
	s, fx := Reduce(s, status(false), t0)
	assert.Contains(t, fx, CancelTimer{Name: TimerDuration})
	assert.True(t, s.StatusKnown)
	assert.False(t, s.Online)
	assert.Equal(t, MessageOffline, s.StatusMessage)
}

func TestPlayerActiveTracksLatestStatus(t *testing.T) {
	seqs := [][]bool{
		{true},
		{false},
		{true, false},
		{false, true},
		{true, true, false, false, true},
		{false, false, true, false, true, true, false},
	}
	for _, seq := range seqs {
		s := loaded()
		for _, online := range seq {
			s, _ = Reduce(s, status(online), t0)
			require.Equal(t, online, s.PlayerActive, "sequence %v", seq)
		}
	}
}

func TestOfflineWithStaleDisconnectDisablesChatImmediately(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, status(true), t0)
	now := t0.Add(time.Minute)
	s, fx := Reduce(s, StatusUpdated{Status: api.Status{Online: false, LastDisconnectTime: ptr(now.Add(-30 * time.Second))}}, now)
	assert.False(t, s.ChatInputEnabled)
	for _, e := range fx {
		if st, ok := e.(StartTimer); ok {
			assert.NotEqual(t, TimerChatDisable, st.Name, "no timer needed once the grace window passed")
		}
	}
}

func TestOfflineWithinGraceKeepsChatThenDisables(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, status(false), t0)
	s, _ = Reduce(s, status(true), t0.Add(time.Second))

	disconnect := t0.Add(2 * time.Second)
	now := disconnect.Add(3 * time.Second)
	s, fx := Reduce(s, StatusUpdated{Status: api.Status{Online: false, LastDisconnectTime: ptr(disconnect)}}, now)
	assert.True(t, s.ChatInputEnabled)
	assert.Contains(t, fx, StartTimer{Name: TimerChatDisable, After: 7 * time.Second})

	s, _ = Reduce(s, TimerFired{Name: TimerChatDisable}, now.Add(7*time.Second))
	assert.False(t, s.ChatInputEnabled)
}

func TestOnlineCancelsPendingChatDisable(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, status(true), t0)
	s, _ = Reduce(s, StatusUpdated{Status: api.Status{LastDisconnectTime: ptr(t0)}}, t0)
	_, fx := Reduce(s, status(true), t0.Add(time.Second))
	assert.Contains(t, fx, CancelTimer{Name: TimerChatDisable})
}

func TestOfflineKeepsPlayingPlayerAttached(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, status(true), t0)
	s, _ = Reduce(s, PlayerPlaying{}, t0)
	s, fx := Reduce(s, status(false), t0)
	assert.True(t, s.PlayerActive, "a playing player drains until it ends")
	assert.NotContains(t, fx, DeactivatePlayer{})

	s, fx = Reduce(s, PlayerEnded{}, t0)
	assert.False(t, s.PlayerActive)
	assert.Contains(t, fx, DeactivatePlayer{})
}

func TestPlayerErrorRunsOfflinePath(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, status(true), t0)
	s, _ = Reduce(s, PlayerPlaying{}, t0)
	s, fx := Reduce(s, PlayerFailed{Err: errors.New("decode")}, t0)
	assert.False(t, s.Online)
	assert.False(t, s.PlayerActive)
	assert.True(t, s.ChatInputEnabled, "no disconnect time: chat input untouched")
	assert.Contains(t, fx, CancelTimer{Name: TimerDuration})
	assert.Contains(t, fx, DeactivatePlayer{})

	// The next online poll restarts the player.
	s, fx = Reduce(s, status(true), t0)
	assert.True(t, s.PlayerActive)
	assert.Contains(t, fx, StartPlayer{})
}

func TestOfflineDetectedForcesOffline(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, status(true), t0)
	s, fx := Reduce(s, OfflineDetected{}, t0)
	assert.False(t, s.Online)
	assert.False(t, s.PlayerActive)
	assert.Contains(t, fx, DeactivatePlayer{})

	s, _ = Reduce(s, NetworkError{Context: "viewer ping", Err: errors.New("refused")}, t0)
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, "viewer ping: refused", s.LastError)
}

func TestDurationTick(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, StatusUpdated{Status: api.Status{Online: true, LastConnectTime: ptr(t0)}}, t0)
	s, _ = Reduce(s, TimerFired{Name: TimerDuration}, t0.Add(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "Stream is online. 01:02:03", s.StatusMessage)
}

func TestTitleDecorationWhileBlurred(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, WindowBlurred{}, t0)
	s, _ = Reduce(s, status(true), t0)
	assert.Equal(t, " 🟢 Night Owls", s.PageTitle)
	s, _ = Reduce(s, status(false), t0)
	assert.Equal(t, " 🔴 Night Owls", s.PageTitle)
	s, _ = Reduce(s, WindowFocused{}, t0)
	assert.Equal(t, "Night Owls", s.PageTitle)

	s, _ = Reduce(s, status(true), t0)
	assert.Equal(t, "Night Owls", s.PageTitle, "focused windows are not decorated")
}

func TestOfflineStatusAfterForcedOfflineAppliesGrace(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, status(true), t0)
	s, _ = Reduce(s, OfflineDetected{}, t0.Add(time.Second))
	require.False(t, s.Online)
	require.True(t, s.ChatInputEnabled, "a failed fetch carries no disconnect time")

	now := t0.Add(time.Minute)
	s, fx := Reduce(s, StatusUpdated{Status: api.Status{Online: false, LastDisconnectTime: ptr(now.Add(-12 * time.Second))}}, now)
	assert.False(t, s.ChatInputEnabled, "chat input must close once the grace window has passed")
	assert.Contains(t, fx, CancelTimer{Name: TimerChatDisable})
}

func TestOfflineStatusAfterForcedOfflineArmsRemainingGrace(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, status(true), t0)
	s, _ = Reduce(s, OfflineDetected{}, t0)

	disconnect := t0.Add(time.Second)
	now := disconnect.Add(4 * time.Second)
	s, fx := Reduce(s, StatusUpdated{Status: api.Status{Online: false, LastDisconnectTime: ptr(disconnect)}}, now)
	assert.True(t, s.ChatInputEnabled)
	assert.Equal(t, []Effect{StartTimer{Name: TimerChatDisable, After: 6 * time.Second}}, fx)

	// Later polls with the same disconnect time do not restart the countdown.
	_, fx = Reduce(s, StatusUpdated{Status: api.Status{Online: false, LastDisconnectTime: ptr(disconnect)}}, now.Add(2*time.Second))
	assert.Empty(t, fx)
}

func TestChatSessionResultAfterDisableStaysDisconnected(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, ChatDisabled{Permanent: false}, t0)
	s, _ = Reduce(s, ChatSessionResult{}, t0)
	assert.False(t, s.CanChat)
	assert.False(t, s.ChatConnected)

	_, fx := Reduce(s, NameChangeRequested{Name: "zed"}, t0)
	assert.Empty(t, fx)
}

func TestChatEvents(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, ChatSessionResult{}, t0)
	assert.True(t, s.ChatConnected)

	id := chat.Identity{AccessToken: "tok", Username: "amy"}
	s, _ = Reduce(s, IdentityChanged{Identity: id}, t0)
	assert.Equal(t, id, s.Identity)

	s, fx := Reduce(s, RegistrationRequired{}, t0)
	assert.Equal(t, []Effect{EnsureChat{Force: true}}, fx)
	assert.False(t, s.ChatConnected)

	s, _ = Reduce(s, ChatDisabled{Permanent: false}, t0)
	assert.False(t, s.CanChat)
	assert.False(t, s.ChatBlocked)

	s, _ = Reduce(s, ChatDisabled{Permanent: true}, t0)
	assert.True(t, s.ChatBlocked)
}

func TestChatSessionBlockedResult(t *testing.T) {
	s := loaded()
	s, _ = Reduce(s, ChatSessionResult{Err: chat.ErrChatBlocked}, t0)
	assert.True(t, s.ChatBlocked)
	assert.False(t, s.CanChat)

	s = loaded()
	s, _ = Reduce(s, ChatSessionResult{Err: chat.ErrRegistrationInFlight}, t0)
	assert.Zero(t, s.ErrorCount)
}

func TestChatPanelToggleRetriesFailedSetup(t *testing.T) {
	s := loaded()
	s, fx := Reduce(s, ChatPanelToggled{}, t0)
	assert.False(t, s.DisplayChatPanel)
	assert.Equal(t, []Effect{Persist{Key: store.KeyChatPanelDisplayed, Value: "false"}}, fx)

	s, fx = Reduce(s, ChatPanelToggled{}, t0)
	assert.True(t, s.DisplayChatPanel)
	assert.Contains(t, fx, EnsureChat{}, "showing the panel without a session retries setup")

	s, _ = Reduce(s, ChatSessionResult{}, t0)
	s, _ = Reduce(s, ChatPanelToggled{}, t0)
	_, fx = Reduce(s, ChatPanelToggled{}, t0)
	assert.NotContains(t, fx, EnsureChat{})
}

func TestNameChangeNeedsSession(t *testing.T) {
	s := loaded()
	_, fx := Reduce(s, NameChangeRequested{Name: "zed"}, t0)
	assert.Empty(t, fx)
	s, _ = Reduce(s, ChatSessionResult{}, t0)
	_, fx = Reduce(s, NameChangeRequested{Name: "zed"}, t0)
	assert.Equal(t, []Effect{SendNameChange{Name: "zed"}}, fx)
}

func TestKeyboardShortcuts(t *testing.T) {
	tests := []struct {
		code string
		want []Effect
	}{
		{KeySpace, []Effect{TogglePlay{}}},
		{KeyP, []Effect{TogglePlay{}}},
		{KeyMediaPlayPause, []Effect{TogglePlay{}}},
		{KeyM, []Effect{ToggleMute{}}},
		{KeyC, []Effect{Persist{Key: store.KeyChatPanelDisplayed, Value: "false"}}},
		{KeyDigit9, []Effect{AdjustVolume{Delta: -0.1}}},
		{KeyDigit0, []Effect{AdjustVolume{Delta: 0.1}}},
		{"KeyZ", nil},
	}
	online, _ := Reduce(loaded(), status(true), t0)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, fx := Reduce(online, KeyPressed{Code: tt.code}, t0)
			assert.Equal(t, tt.want, fx)

			_, fx = Reduce(online, KeyPressed{Code: tt.code, InInput: true}, t0)
			assert.Empty(t, fx, "keys typed into inputs are ignored")

			_, fx = Reduce(loaded(), KeyPressed{Code: tt.code}, t0)
			assert.Empty(t, fx, "shortcuts only work while online")
		})
	}
}

func TestWindowResizeIsDebounced(t *testing.T) {
	s := loaded()
	s, fx := Reduce(s, WindowResized{Width: 800, Height: 600}, t0)
	assert.Equal(t, []Effect{StartTimer{Name: TimerResize, After: 250 * time.Millisecond}}, fx)
	s, _ = Reduce(s, WindowResized{Width: 400, Height: 900}, t0)
	assert.Zero(t, s.WindowWidth)

	s, _ = Reduce(s, TimerFired{Name: TimerResize}, t0)
	assert.Equal(t, 400, s.WindowWidth)
	assert.Equal(t, 900, s.WindowHeight)
	assert.Equal(t, OrientationPortrait, s.Orientation)
}

func TestExternalActions(t *testing.T) {
	s := loaded()
	s.Identity.Username = "amy"
	s.Config.ExternalActions = []api.ExternalAction{
		{URL: "https://tips.example.com/jar", Title: "Tip jar"},
		{URL: "https://shop.example.com/?ref=live", Title: "Shop", OpenExternally: true},
		{URL: "not a url", Title: "Broken"},
	}

	s, fx := Reduce(s, ActionRequested{Index: 0}, t0)
	assert.Empty(t, fx)
	require.NotNil(t, s.PendingAction)
	assert.Equal(t, "https://tips.example.com/jar?instance=https%3A%2F%2Flive.example.com&username=amy", s.PendingAction.URL)
	assert.Equal(t, "Tip jar", s.PendingAction.Title)

	s, _ = Reduce(s, ActionClosed{}, t0)
	assert.Nil(t, s.PendingAction)

	s, fx = Reduce(s, ActionRequested{Index: 1}, t0)
	assert.Nil(t, s.PendingAction)
	assert.Equal(t, []Effect{OpenExternal{URL: "https://shop.example.com/?instance=https%3A%2F%2Flive.example.com&ref=live&username=amy"}}, fx)

	s, fx = Reduce(s, ActionRequested{Index: 2}, t0)
	assert.Empty(t, fx)
	assert.Nil(t, s.PendingAction)
	assert.Equal(t, 1, s.ErrorCount)

	_, fx = Reduce(s, ActionRequested{Index: 9}, t0)
	assert.Empty(t, fx)
}
