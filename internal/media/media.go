// ABOUTME: Playback backend interface definition
// ABOUTME: Abstracts the native audio primitive behind a small capability surface
package media

import (
	"context"
	"errors"
	"time"
)

// Common errors reported by backend implementations
var (
	// ErrPlaybackBlocked means the output device refused or is not ready to
	// start audio. Callers can prompt the user instead of showing a generic
	// error, mirroring a browser's autoplay-policy rejection.
	ErrPlaybackBlocked = errors.New("audio output blocked: device not ready")

	// ErrNotReady means the handle has not finished preparing its clip.
	ErrNotReady = errors.New("media not ready")
)

// Events carries the callbacks a handle fires over its lifetime.
// Callbacks are invoked from backend goroutines and must not be nil-checked
// by implementations; the backend guarantees nil callbacks are never called.
type Events struct {
	// OnReady fires once, when the clip duration is known.
	OnReady func(duration time.Duration)

	// OnTime fires periodically while playing with the current position.
	OnTime func(position time.Duration)

	// OnEnded fires when the clip plays to completion.
	OnEnded func()

	// OnError fires when preparation or playback fails.
	OnError func(err error)
}

// Backend instantiates playback handles for sample URLs.
type Backend interface {
	// NewHandle starts preparing a playable handle for the given URL.
	// Preparation is asynchronous: the returned handle is not playable
	// until ev.OnReady fires. ev.OnError reports preparation failures.
	NewHandle(ctx context.Context, url string, ev Events) (Handle, error)
}

// Handle is one playable instance of a sample. A handle is owned by exactly
// one caller, which must Close it to release the underlying output resources.
type Handle interface {
	// Play starts or resumes output. Blocks until output has actually
	// started or the attempt is rejected.
	Play(ctx context.Context) error

	// Pause stops output without moving the position.
	Pause()

	// Seek moves the playback position.
	Seek(pos time.Duration)

	// SetGain sets the output gain in [0,1], applied to subsequent output.
	SetGain(gain float64)

	// Close stops output and releases the handle. Safe to call twice.
	Close() error
}
