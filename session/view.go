package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/livewatch/player"
)

// Fallback chat message limit and the room reserved for the socket envelope.
const (
	chatMaxMessageBytes  = 500
	socketPayloadReserve = 500
)

// View is what a presentation layer renders. It is derived from State and never stored.
type View struct {
	Online             bool             `json:"online"`
	PlayerActive       bool             `json:"playerActive"`
	Playing            bool             `json:"playing"`
	StatusMessage      string           `json:"statusMessage"`
	ViewerCountMessage string           `json:"viewerCountMessage"`
	Title              string           `json:"title"`
	PageTitle          string           `json:"pageTitle"`
	Summary            string           `json:"summary,omitempty"`
	Tags               string           `json:"tags,omitempty"`
	ChatInputEnabled   bool             `json:"chatInputEnabled"`
	CanChat            bool             `json:"canChat"`
	DisplayChatPanel   bool             `json:"displayChatPanel"`
	ChatHidden         bool             `json:"chatHidden"`
	ChatMaxBytes       int              `json:"chatMaxBytes"`
	Username           string           `json:"username"`
	IsModerator        bool             `json:"isModerator"`
	Qualities          []player.Quality `json:"qualities,omitempty"`
	PendingAction      *ExternalAction  `json:"pendingAction,omitempty"`
	WindowWidth        int              `json:"windowWidth"`
	WindowHeight       int              `json:"windowHeight"`
	Orientation        string           `json:"orientation,omitempty"`
}

// Derive computes the view for s at time now.
func Derive(s State, now time.Time) View {
	chatDisabled := s.Config.ChatDisabled
	v := View{
		Online:           s.Online,
		PlayerActive:     s.PlayerActive,
		Playing:          s.Playing,
		StatusMessage:    s.StatusMessage,
		Title:            s.Config.Name,
		PageTitle:        s.PageTitle,
		Summary:          s.Config.Summary,
		ChatInputEnabled: s.ChatInputEnabled && !chatDisabled,
		CanChat:          s.CanChat,
		DisplayChatPanel: s.DisplayChatPanel && s.CanChat && !chatDisabled,
		ChatHidden:       !s.DisplayChatPanel && s.CanChat && !chatDisabled,
		ChatMaxBytes:     chatMaxMessageBytes,
		Username:         s.Identity.Username,
		IsModerator:      s.Identity.IsModerator,
		Qualities:        s.Qualities,
		PendingAction:    s.PendingAction,
		WindowWidth:      s.WindowWidth,
		WindowHeight:     s.WindowHeight,
		Orientation:      s.Orientation,
	}
	if s.Online && s.StreamTitle != "" {
		v.Title = s.StreamTitle
	}
	if len(s.Config.Tags) > 0 {
		v.Tags = "#" + strings.Join(s.Config.Tags, " #")
	}
	if n := s.Config.MaxSocketPayloadSize; n > socketPayloadReserve {
		v.ChatMaxBytes = n - socketPayloadReserve
	}
	switch {
	case s.Online && s.ViewerCount > 0:
		v.ViewerCountMessage = ViewerCountMessage(s.ViewerCount)
	case s.LastDisconnectTime != nil:
		v.ViewerCountMessage = LastLiveMessage(*s.LastDisconnectTime, now)
	}
	return v
}

// ViewerCountMessage formats a live viewer count.
func ViewerCountMessage(n int) string {
	if n == 1 {
		return "1 viewer"
	}
	return fmt.Sprintf("%d viewers", n)
}

// LastLiveMessage describes when the stream was last live relative to now.
func LastLiveMessage(t, now time.Time) string {
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Last live: Today " + t.Format("15:04")
	}
	return "Last live: " + t.Format("Jan 2, 2006")
}

// FormatDuration renders d as "[N day(s) ][HH:]MM:SS". Hours appear once the
// duration reaches an hour or a day. Negative durations render as zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	hours := (secs / 3600) % 24
	mins := (secs / 60) % 60
	secs %= 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%d day", days)
		if days > 1 {
			b.WriteByte('s')
		}
		b.WriteByte(' ')
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%02d:", hours)
	}
	fmt.Fprintf(&b, "%02d:%02d", mins, secs)
	return b.String()
}
