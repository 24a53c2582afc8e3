// Package player drives a video engine on behalf of the viewer session.
package player

import "context"

// Engine is the control surface of a video playback engine. Decoding and
// adaptive bitrate logic stay inside the engine.
type Engine interface {
	// Attach binds the engine to l. The engine reports Ready once it can accept a source.
	Attach(ctx context.Context, l EngineListener) error
	// Load (re)attaches the stream source. Loading the current source again is a no-op.
	Load(ctx context.Context, src string) error
	Play()
	Pause()
	Playing() bool
	Volume() float64
	SetVolume(v float64)
	Muted() bool
	SetMuted(muted bool)
	// SelectVariant pins a rendition by index; a negative index restores automatic selection.
	SelectVariant(index int)
	// Stop detaches the source and releases playback resources.
	Stop()
}

// EngineListener receives engine events. Calls may arrive on any goroutine.
type EngineListener interface {
	EngineReady()
	EnginePlaying()
	EngineEnded()
	EngineError(err error)
	EngineVolumeChanged(volume float64, muted bool)
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
