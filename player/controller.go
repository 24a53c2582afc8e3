package player

import (
	"context"
	"log/slog"
	"sync"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/store"
)

// AutoQuality is the quality-menu index for automatic rendition selection.
const AutoQuality = -1

// Quality is one entry of the quality menu.
type Quality struct {
	Name  string
	Index int
}

// Listener receives player events on behalf of the session.
type Listener interface {
	PlayerReady()
	PlayerPlaying()
	PlayerEnded()
	PlayerError(err error)
	// QualitiesAvailable is only called when there is a real choice to make.
	QualitiesAvailable(menu []Quality)
}

// VariantSource lists the stream's renditions.
type VariantSource interface {
	GetVariants(ctx context.Context) ([]api.Variant, error)
}

// Controller wraps an Engine with volume persistence and the quality menu.
type Controller struct {
	engine    Engine
	store     store.Store
	variants  VariantSource
	streamURL string

	mu         sync.Mutex
	ctx        context.Context
	listener   Listener
	readyFired bool
}

// NewController creates a controller. variants may be nil to skip the quality menu.
func NewController(engine Engine, st store.Store, variants VariantSource, streamURL string) *Controller {
	return &Controller{engine: engine, store: st, variants: variants, streamURL: streamURL, ctx: context.Background()}
}

// Init attaches the engine and wires l. PlayerReady fires exactly once per Init.
func (c *Controller) Init(ctx context.Context, l Listener) error {
	c.mu.Lock()
	c.ctx = ctx
	c.listener = l
	c.readyFired = false
	c.mu.Unlock()

	if err := c.engine.Attach(ctx, c); err != nil {
		return err
	}
	if c.variants != nil {
		go c.loadQualities(ctx, l)
	}
	return nil
}

func (c *Controller) loadQualities(ctx context.Context, l Listener) {
	variants, err := c.variants.GetVariants(ctx)
	if err != nil {
		slog.Warn("player: fetch variants failed", slog.Any("err", err))
		return
	}
	menu := QualityMenu(variants)
	if menu == nil {
		return
	}
	l.QualitiesAvailable(menu)
}

// QualityMenu builds the menu for variants, or nil when fewer than two exist.
func QualityMenu(variants []api.Variant) []Quality {
	if len(variants) < 2 {
		return nil
	}
	menu := make([]Quality, 0, len(variants)+1)
	menu = append(menu, Quality{Name: "Auto", Index: AutoQuality})
	for _, v := range variants {
		menu = append(menu, Quality{Name: v.Name, Index: v.Index})
	}
	return menu
}

// StartPlayer restores the persisted volume and (re)attaches the stream source.
// Volume restore failures are logged and ignored.
func (c *Controller) StartPlayer(ctx context.Context) error {
	vol, err := store.GetFloat(ctx, c.store, store.KeyPlayerVolume, 1)
	if err != nil {
		slog.Warn("player: restore volume failed", slog.Any("err", err))
		vol = 1
	}
	c.engine.SetVolume(vol)
	if err := c.engine.Load(ctx, c.streamURL); err != nil {
		return err
	}
	c.engine.Play()
	return nil
}

// Playing reports whether the engine is currently playing.
func (c *Controller) Playing() bool { return c.engine.Playing() }

// TogglePlay pauses a playing engine and resumes a paused one.
func (c *Controller) TogglePlay() {
	if c.engine.Playing() {
		c.engine.Pause()
		return
	}
	c.engine.Play()
}

// ToggleMute flips the mute state.
func (c *Controller) ToggleMute() { c.engine.SetMuted(!c.engine.Muted()) }

// AdjustVolume changes the volume by delta, clamped to [0,1].
func (c *Controller) AdjustVolume(delta float64) {
	c.engine.SetVolume(clampVolume(c.engine.Volume() + delta))
}

// SelectQuality pins a rendition; AutoQuality restores automatic selection.
func (c *Controller) SelectQuality(index int) { c.engine.SelectVariant(index) }

// Deactivate detaches the stream so no stale frame lingers.
func (c *Controller) Deactivate() { c.engine.Stop() }

func (c *Controller) current() (context.Context, Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx, c.listener
}

// EngineReady implements EngineListener.
func (c *Controller) EngineReady() {
	c.mu.Lock()
	if c.readyFired || c.listener == nil {
		c.mu.Unlock()
		return
	}
	c.readyFired = true
	l := c.listener
	c.mu.Unlock()
	l.PlayerReady()
}

// EnginePlaying implements EngineListener.
func (c *Controller) EnginePlaying() {
	if _, l := c.current(); l != nil {
		l.PlayerPlaying()
	}
}

// EngineEnded implements EngineListener.
func (c *Controller) EngineEnded() {
	if _, l := c.current(); l != nil {
		l.PlayerEnded()
	}
}

// EngineError implements EngineListener.
func (c *Controller) EngineError(err error) {
	slog.Warn("player: engine error", slog.Any("err", err))
	if _, l := c.current(); l != nil {
		l.PlayerError(err)
	}
}

// EngineVolumeChanged persists the new volume; muted is stored as 0.
func (c *Controller) EngineVolumeChanged(volume float64, muted bool) {
	if muted {
		volume = 0
	}
	ctx, _ := c.current()
	if err := store.SetFloat(ctx, c.store, store.KeyPlayerVolume, volume); err != nil {
		slog.Warn("player: persist volume failed", slog.Any("err", err))
	}
}
