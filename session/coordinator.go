package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/chat"
	"github.com/onnwee/livewatch/player"
	"github.com/onnwee/livewatch/poller"
	"github.com/onnwee/livewatch/scheduler"
	"github.com/onnwee/livewatch/store"
	"github.com/onnwee/livewatch/telemetry"
)

// ConfigSource fetches the instance config.
type ConfigSource interface {
	GetConfig(ctx context.Context) (api.Config, error)
}

// StatusPoller starts one status poll; it returns false when one is still in flight.
type StatusPoller interface {
	Poll(ctx context.Context, l poller.Listener) bool
}

// Player is the player control surface the coordinator drives.
type Player interface {
	Init(ctx context.Context, l player.Listener) error
	StartPlayer(ctx context.Context) error
	Deactivate()
	TogglePlay()
	ToggleMute()
	AdjustVolume(delta float64)
	SelectQuality(index int)
}

// Chat is the chat session surface the coordinator drives.
type Chat interface {
	SetListener(l chat.Listener)
	EnsureSession(ctx context.Context, force bool) error
	SendNameChange(ctx context.Context, name string) error
	Close()
}

// Deps are the collaborators of a Coordinator. Open may be nil.
type Deps struct {
	Config    ConfigSource
	Poller    StatusPoller
	Player    Player
	Chat      Chat
	Store     store.Store
	Scheduler *scheduler.Scheduler
	Open      func(url string) error
}

// Observer is notified after every applied event. It runs on the loop goroutine
// and must not block.
type Observer func(prev, next State)

// ErrNotRunning is returned by requests made after the loop stopped.
var ErrNotRunning = errors.New("session: coordinator not running")

// Coordinator serializes all session events through one goroutine. Run may be
// called once.
type Coordinator struct {
	deps   Deps
	clock  scheduler.Clock
	events chan Event
	done   chan struct{}

	// loop-owned
	state     State
	timerSeq  map[string]uint64
	observers []Observer
	ctx       context.Context
	log       *slog.Logger
	wg        sync.WaitGroup

	mu      sync.RWMutex
	snap    State
	running bool
}

// New creates a coordinator. Observers must be added before Run.
func New(deps Deps, opts Options) *Coordinator {
	st := NewState(opts)
	return &Coordinator{
		deps:     deps,
		clock:    deps.Scheduler.Clock(),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		state:    st,
		snap:     st,
		timerSeq: make(map[string]uint64),
		log:      slog.Default(),
	}
}

// Observe adds an observer.
func (c *Coordinator) Observe(o Observer) { c.observers = append(c.observers, o) }

// Snapshot returns a copy of the latest state.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// View derives the current view.
func (c *Coordinator) View() View { return Derive(c.Snapshot(), c.clock.Now()) }

// Running reports whether the loop is active.
func (c *Coordinator) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Dispatch posts ev to the loop. It returns ErrNotRunning once the loop has stopped.
func (c *Coordinator) Dispatch(ev Event) error {
	select {
	case <-c.done:
		return ErrNotRunning
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrNotRunning
	}
}

// ChangeName requests a display-name change. It fails fast without a chat session.
func (c *Coordinator) ChangeName(name string) error {
	if !c.Snapshot().ChatConnected {
		return chat.ErrNoSession
	}
	return c.Dispatch(NameChangeRequested{Name: name})
}

// Run processes events until ctx is cancelled, then tears the session down.
func (c *Coordinator) Run(ctx context.Context) error {
	sessionID := uuid.NewString()
	ctx = telemetry.WithCorrelation(ctx, sessionID)
	c.ctx = ctx
	c.log = telemetry.LoggerWithCorr(ctx).With(slog.String("component", "session"))

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	sink := &sink{c: c}
	c.deps.Chat.SetListener(sink)

	blocked, err := store.GetBool(ctx, c.deps.Store, store.KeyChatBlocked, false)
	if err != nil {
		c.log.Warn("read chat blocked flag", slog.Any("err", err))
	}
	panel, err := store.GetBool(ctx, c.deps.Store, store.KeyChatPanelDisplayed, true)
	if err != nil {
		c.log.Warn("read chat panel flag", slog.Any("err", err))
	}
	c.log.Info("session started")
	c.apply(Started{ChatBlocked: blocked, ChatPanelDisplayed: panel})

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return nil
		case ev := <-c.events:
			c.apply(ev)
		}
	}
}

// teardown cancels every timer before releasing the socket and the player.
func (c *Coordinator) teardown() {
	close(c.done)
	c.deps.Scheduler.Close()
	c.wg.Wait()
	c.deps.Chat.Close()
	c.deps.Player.Deactivate()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.log.Info("session stopped")
}

func (c *Coordinator) apply(ev Event) {
	if tf, ok := ev.(TimerFired); ok && c.timerSeq[tf.Name] != tf.Seq {
		return
	}
	switch ev := ev.(type) {
	case NetworkError:
		c.log.Warn("network error", slog.String("context", ev.Context), slog.Any("err", ev.Err))
	case ConfigFailed:
		c.log.Warn("fetch config failed", slog.Any("err", ev.Err))
	case ChatSessionResult:
		if ev.Err != nil && !errors.Is(ev.Err, chat.ErrRegistrationInFlight) {
			c.log.Warn("chat session setup failed", slog.Any("err", ev.Err))
		}
	}

	prev := c.state
	next, effects := Reduce(prev, ev, c.clock.Now())
	c.state = next
	c.publish(prev, next)
	for _, eff := range effects {
		c.execute(eff)
	}
}

func (c *Coordinator) publish(prev, next State) {
	c.mu.Lock()
	c.snap = next
	c.mu.Unlock()

	if prev.Online != next.Online || prev.StatusKnown != next.StatusKnown {
		to := "offline"
		if next.Online {
			to = "online"
		}
		telemetry.IncTransition(to)
		c.log.Info("stream transition", slog.String("to", to))
	}
	telemetry.SetStreamOnline(next.Online)
	telemetry.SetChatInputEnabled(next.ChatInputEnabled && !next.Config.ChatDisabled)
	for _, o := range c.observers {
		o(prev, next)
	}
}

func (c *Coordinator) execute(eff Effect) {
	ctx := c.ctx
	switch eff := eff.(type) {
	case FetchConfig:
		c.async(func() {
			cfg, err := c.deps.Config.GetConfig(ctx)
			if err != nil {
				c.post(ConfigFailed{Err: err})
				return
			}
			c.post(ConfigLoaded{Config: cfg})
		})
	case InitPlayer:
		if err := c.deps.Player.Init(ctx, &sink{c: c}); err != nil {
			c.log.Error("player init failed", slog.Any("err", err))
		}
	case StartPlayer:
		if err := c.deps.Player.StartPlayer(ctx); err != nil {
			c.log.Warn("start player failed", slog.Any("err", err))
		}
	case DeactivatePlayer:
		c.deps.Player.Deactivate()
	case TogglePlay:
		c.deps.Player.TogglePlay()
	case ToggleMute:
		c.deps.Player.ToggleMute()
	case AdjustVolume:
		c.deps.Player.AdjustVolume(eff.Delta)
	case SelectQuality:
		c.deps.Player.SelectQuality(eff.Index)
	case Poll:
		c.deps.Poller.Poll(ctx, &sink{c: c})
	case StartTimer:
		c.startTimer(eff)
	case CancelTimer:
		c.timerSeq[eff.Name]++
		c.deps.Scheduler.Cancel(eff.Name)
	case EnsureChat:
		c.async(func() {
			c.post(ChatSessionResult{Err: c.deps.Chat.EnsureSession(ctx, eff.Force)})
		})
	case SendNameChange:
		c.async(func() {
			if err := c.deps.Chat.SendNameChange(ctx, eff.Name); err != nil {
				c.log.Warn("name change failed", slog.Any("err", err))
			}
		})
	case Persist:
		if err := c.deps.Store.Set(ctx, eff.Key, eff.Value); err != nil {
			c.log.Warn("persist failed", slog.String("key", eff.Key), slog.Any("err", err))
		}
	case OpenExternal:
		if c.deps.Open == nil {
			c.log.Info("external action", slog.String("url", eff.URL))
			return
		}
		c.async(func() {
			if err := c.deps.Open(eff.URL); err != nil {
				c.log.Warn("open external action failed", slog.Any("err", err))
			}
		})
	default:
		c.log.Error("unhandled effect", slog.String("type", typeName(eff)))
	}
}

func (c *Coordinator) startTimer(eff StartTimer) {
	c.timerSeq[eff.Name]++
	seq := c.timerSeq[eff.Name]
	fire := func() { c.post(TimerFired{Name: eff.Name, Seq: seq}) }
	if eff.Repeat {
		c.deps.Scheduler.Every(eff.Name, eff.After, fire)
		return
	}
	c.deps.Scheduler.After(eff.Name, eff.After, fire)
}

// async runs fn off the loop; teardown waits for it.
func (c *Coordinator) async(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// post delivers an event from a collaborator, dropping it after teardown.
func (c *Coordinator) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func typeName(v any) string { return strings.TrimPrefix(fmt.Sprintf("%T", v), "session.") }

// sink adapts collaborator listener interfaces into events.
type sink struct{ c *Coordinator }

func (s *sink) StatusUpdated(st api.Status) { s.c.post(StatusUpdated{Status: st}) }
func (s *sink) OfflineDetected()            { s.c.post(OfflineDetected{}) }
func (s *sink) NetworkError(context string, err error) {
	s.c.post(NetworkError{Context: context, Err: err})
}
func (s *sink) PollSettled()                          { s.c.post(PollSettled{}) }
func (s *sink) PlayerReady()                          { s.c.post(PlayerReady{}) }
func (s *sink) PlayerPlaying()                        { s.c.post(PlayerPlaying{}) }
func (s *sink) PlayerEnded()                          { s.c.post(PlayerEnded{}) }
func (s *sink) PlayerError(err error)                 { s.c.post(PlayerFailed{Err: err}) }
func (s *sink) QualitiesAvailable(m []player.Quality) { s.c.post(QualitiesLoaded{Menu: m}) }
func (s *sink) IdentityChanged(id chat.Identity)      { s.c.post(IdentityChanged{Identity: id}) }
func (s *sink) ChatDisabled(permanent bool)           { s.c.post(ChatDisabled{Permanent: permanent}) }
func (s *sink) RegistrationRequired()                 { s.c.post(RegistrationRequired{}) }
