package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/grafov/m3u8"
)

// ErrTooManyFailures is reported when the playlist cannot be fetched MaxFailures times in a row.
var ErrTooManyFailures = errors.New("hls: too many consecutive playlist failures")

// HLSEngine is a headless Engine that follows an HLS stream's playlists.
// It selects the lowest-bandwidth rendition first unless one is pinned.
type HLSEngine struct {
	HTTPClient  *http.Client
	RetryDelay  time.Duration
	MaxFailures int

	mu       sync.Mutex
	listener EngineListener
	src      string
	playing  bool
	volume   float64
	muted    bool
	variant  int
	gen      uint64
	cancel   context.CancelFunc
	baseCtx  context.Context
	mediaSeq uint64
}

// NewHLSEngine returns an engine with a 2s retry delay and a 10 failure limit.
func NewHLSEngine(client *http.Client) *HLSEngine {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HLSEngine{HTTPClient: client, RetryDelay: 2 * time.Second, MaxFailures: 10, volume: 1, variant: AutoQuality}
}

// Attach implements Engine. The engine is ready immediately.
func (e *HLSEngine) Attach(ctx context.Context, l EngineListener) error {
	e.mu.Lock()
	e.listener = l
	e.baseCtx = ctx
	e.mu.Unlock()
	go l.EngineReady()
	return nil
}

// Load implements Engine.
func (e *HLSEngine) Load(ctx context.Context, src string) error {
	if _, err := url.Parse(src); err != nil {
		return fmt.Errorf("hls: invalid source %q: %w", src, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == src {
		return nil
	}
	e.stopLocked()
	e.src = src
	e.baseCtx = ctx
	return nil
}

// Play implements Engine.
func (e *HLSEngine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing || e.src == "" {
		return
	}
	e.startLocked()
}

// Pause implements Engine.
func (e *HLSEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltLocked()
}

// Playing implements Engine.
func (e *HLSEngine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Volume implements Engine.
func (e *HLSEngine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetVolume implements Engine.
func (e *HLSEngine) SetVolume(v float64) {
	e.mu.Lock()
	e.volume = clampVolume(v)
	vol, muted, l := e.volume, e.muted, e.listener
	e.mu.Unlock()
	if l != nil {
		l.EngineVolumeChanged(vol, muted)
	}
}

// Muted implements Engine.
func (e *HLSEngine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// SetMuted implements Engine.
func (e *HLSEngine) SetMuted(muted bool) {
	e.mu.Lock()
	e.muted = muted
	vol, l := e.volume, e.listener
	e.mu.Unlock()
	if l != nil {
		l.EngineVolumeChanged(vol, muted)
	}
}

// SelectVariant implements Engine. A running stream restarts on the new rendition.
func (e *HLSEngine) SelectVariant(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 {
		index = AutoQuality
	}
	if e.variant == index {
		return
	}
	e.variant = index
	if e.playing {
		e.haltLocked()
		e.startLocked()
	}
}

// Stop implements Engine.
func (e *HLSEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// MediaSequence returns the last media sequence number observed.
func (e *HLSEngine) MediaSequence() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mediaSeq
}

func (e *HLSEngine) stopLocked() {
	e.haltLocked()
	e.src = ""
	e.mediaSeq = 0
}

func (e *HLSEngine) haltLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.playing = false
	e.gen++
}

func (e *HLSEngine) startLocked() {
	parent := e.baseCtx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	e.playing = true
	e.gen++
	go e.follow(ctx, e.gen, e.src, e.variant, e.listener)
}

// live reports whether gen is still the current playback run.
func (e *HLSEngine) live(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}

func (e *HLSEngine) follow(ctx context.Context, gen uint64, src string, variant int, l EngineListener) {
	failures := 0
	started := false
	mediaURL := ""
	for ctx.Err() == nil {
		wait, done, err := e.step(ctx, gen, src, variant, &mediaURL)
		if ctx.Err() != nil || !e.live(gen) {
			return
		}
		if err != nil {
			failures++
			slog.Debug("hls: playlist fetch failed", slog.Int("failures", failures), slog.Any("err", err))
			if failures >= e.MaxFailures {
				e.endRun(gen)
				if l != nil {
					l.EngineError(fmt.Errorf("%w: %w", ErrTooManyFailures, err))
				}
				return
			}
			mediaURL = ""
			wait = e.RetryDelay
		} else {
			failures = 0
			if !started {
				started = true
				if l != nil {
					l.EnginePlaying()
				}
			}
			if done {
				e.endRun(gen)
				if l != nil {
					l.EngineEnded()
				}
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// endRun marks a run finished without clearing the source, so Play can restart it.
func (e *HLSEngine) endRun(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.playing = false
}

// step fetches one playlist. When mediaURL is empty it resolves it from src first.
func (e *HLSEngine) step(ctx context.Context, gen uint64, src string, variant int, mediaURL *string) (time.Duration, bool, error) {
	if *mediaURL == "" {
		pl, typ, base, err := e.fetch(ctx, src, true)
		if err != nil {
			return 0, false, err
		}
		switch typ {
		case m3u8.MASTER:
			u, err := pickVariant(pl.(*m3u8.MasterPlaylist), variant, base)
			if err != nil {
				return 0, false, err
			}
			*mediaURL = u
		case m3u8.MEDIA:
			*mediaURL = src
			return e.observe(gen, pl.(*m3u8.MediaPlaylist))
		}
	}
	pl, typ, _, err := e.fetch(ctx, *mediaURL, false)
	if err != nil {
		return 0, false, err
	}
	if typ != m3u8.MEDIA {
		return 0, false, fmt.Errorf("hls: expected media playlist at %s", *mediaURL)
	}
	return e.observe(gen, pl.(*m3u8.MediaPlaylist))
}

func (e *HLSEngine) observe(gen uint64, media *m3u8.MediaPlaylist) (time.Duration, bool, error) {
	e.mu.Lock()
	if e.gen == gen {
		e.mediaSeq = media.SeqNo + uint64(media.Count())
	}
	e.mu.Unlock()
	wait := time.Duration(media.TargetDuration * float64(time.Second))
	if wait <= 0 {
		wait = e.RetryDelay
	}
	return wait, media.Closed, nil
}

func (e *HLSEngine) fetch(ctx context.Context, rawURL string, bust bool) (m3u8.Playlist, m3u8.ListType, *url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, nil, err
	}
	reqURL := *u
	if bust {
		q := reqURL.Query()
		q.Set("t", strconv.FormatInt(time.Now().UnixNano(), 10))
		reqURL.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, 0, nil, err
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, nil, fmt.Errorf("hls: GET %s: status %d", u.Path, resp.StatusCode)
	}
	pl, typ, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("hls: decode %s: %w", u.Path, err)
	}
	return pl, typ, u, nil
}

func pickVariant(master *m3u8.MasterPlaylist, index int, base *url.URL) (string, error) {
	var chosen *m3u8.Variant
	if index >= 0 && index < len(master.Variants) {
		chosen = master.Variants[index]
	} else {
		for _, v := range master.Variants {
			if v == nil {
				continue
			}
			if chosen == nil || v.Bandwidth < chosen.Bandwidth {
				chosen = v
			}
		}
	}
	if chosen == nil {
		return "", errors.New("hls: master playlist has no variants")
	}
	ref, err := url.Parse(chosen.URI)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
