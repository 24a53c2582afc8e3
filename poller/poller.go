// Package poller fetches stream status and sends the viewer keep-alive ping.
//
// Each Poll issues both requests independently: a failing ping never cancels or
// delays the status fetch. A poll is never pipelined behind another one; callers
// schedule the next poll from PollSettled.
package poller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/telemetry"
)

// Source is the subset of the API client the poller needs.
type Source interface {
	GetStatus(ctx context.Context) (api.Status, error)
	Ping(ctx context.Context) error
}

// Listener receives poll outcomes. Methods may be called from different goroutines.
type Listener interface {
	StatusUpdated(status api.Status)
	OfflineDetected()
	NetworkError(context string, err error)
	// PollSettled is called once per poll after the status fetch returns.
	PollSettled()
}

// Poller issues status polls against Source.
type Poller struct {
	Source  Source
	Timeout time.Duration

	inFlight atomic.Bool
}

// New returns a poller with a per-request timeout of 10s.
func New(src Source) *Poller {
	return &Poller{Source: src, Timeout: 10 * time.Second}
}

// InFlight reports whether a status fetch is outstanding.
func (p *Poller) InFlight() bool { return p.inFlight.Load() }

// Poll starts one status fetch and one keep-alive ping. It returns false without
// doing anything when the previous status fetch has not settled yet.
func (p *Poller) Poll(ctx context.Context, l Listener) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		slog.Debug("status poll skipped; previous fetch still in flight")
		return false
	}
	go p.ping(ctx, l)
	go p.fetchStatus(ctx, l)
	return true
}

func (p *Poller) fetchStatus(ctx context.Context, l Listener) {
	defer l.PollSettled()
	defer p.inFlight.Store(false)

	telemetry.Inc(telemetry.StatusPolls)
	rctx, cancel := p.requestContext(ctx)
	defer cancel()

	var (
		st  api.Status
		err error
	)
	telemetry.TimeFunc(telemetry.PollDuration, func() {
		st, err = p.Source.GetStatus(rctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		telemetry.Inc(telemetry.StatusPollFailures)
		l.OfflineDetected()
		l.NetworkError("stream status", err)
		return
	}
	telemetry.SetViewerCount(st.ViewerCount)
	l.StatusUpdated(st)
}

func (p *Poller) ping(ctx context.Context, l Listener) {
	rctx, cancel := p.requestContext(ctx)
	defer cancel()
	if err := p.Source.Ping(rctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		telemetry.Inc(telemetry.PingFailures)
		l.OfflineDetected()
		l.NetworkError("viewer ping", err)
	}
}

func (p *Poller) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Timeout)
}
