package main

import (
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/onnwee/livewatch/session"
)

var (
	onlineColor  = color.New(color.FgGreen, color.Bold)
	offlineColor = color.New(color.FgRed, color.Bold)
	chatColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	errorColor   = color.New(color.FgRed)
)

// newPrinter returns an observer that writes one line per user-visible change.
func newPrinter(w io.Writer, now func() time.Time) session.Observer {
	return func(prev, next session.State) {
		v := session.Derive(next, now())
		if next.Online != prev.Online || (!prev.StatusKnown && next.StatusKnown) {
			if next.Online {
				onlineColor.Fprintf(w, "🟢 %s: %s\n", v.Title, v.StatusMessage)
			} else {
				offlineColor.Fprintf(w, "🔴 %s: %s\n", v.Title, v.StatusMessage)
			}
		}
		if next.Online && next.StreamTitle != prev.StreamTitle && next.StreamTitle != "" {
			infoColor.Fprintf(w, "📺 %s\n", next.StreamTitle)
		}
		if next.ViewerCount != prev.ViewerCount && v.ViewerCountMessage != "" {
			infoColor.Fprintf(w, "👀 %s\n", v.ViewerCountMessage)
		}
		if next.Identity.Username != prev.Identity.Username && next.Identity.Username != "" {
			chatColor.Fprintf(w, "💬 chatting as %s\n", next.Identity.Username)
		}
		if v.ChatInputEnabled != session.Derive(prev, now()).ChatInputEnabled {
			if v.ChatInputEnabled {
				chatColor.Fprintln(w, "💬 chat enabled")
			} else {
				chatColor.Fprintln(w, "💬 chat disabled")
			}
		}
		if next.ChatBlocked && !prev.ChatBlocked {
			errorColor.Fprintln(w, "⛔ chat access was revoked by the server")
		}
		if next.ErrorCount > prev.ErrorCount && next.LastError != "" {
			errorColor.Fprintf(w, "⚠ %s\n", next.LastError)
		}
	}
}
