// ABOUTME: Observable playback state for loaded samples
// ABOUTME: Snapshots are value copies; callers never see live engine internals
package engine

import (
	"time"

	"github.com/wavedeck/wavedeck-go/internal/media"
)

// DefaultVolume is the per-sample gain a fresh entry starts with.
const DefaultVolume = 0.7

// Sample is a point-in-time snapshot of one loaded sample's state.
type Sample struct {
	ID          string
	SourceURL   string
	DisplayName string

	// Duration is zero until the media backend reports readiness.
	Duration time.Duration

	// Position advances while playing, survives Pause, resets on Stop.
	Position time.Duration

	Playing bool
	Loading bool

	// Volume is the per-sample gain in [0,1].
	Volume float64

	// LastError is the most recent failure, or nil. Cleared by a
	// successful load or play. May be set while Loading is still true.
	LastError *PlaybackError
}

// entry is the engine-owned live state behind a registry id. It exclusively
// owns one media handle (nil only in the window after a load failure).
type entry struct {
	id          string
	sourceURL   string
	displayName string

	handle   media.Handle
	duration time.Duration
	position time.Duration
	playing  bool
	loading  bool
	volume   float64
	lastErr  *PlaybackError

	// gen distinguishes this entry from any earlier entry under the same
	// id, so callbacks from a torn-down handle cannot touch its successor.
	gen uint64
}

// snapshot copies the observable fields
func (e *entry) snapshot() Sample {
	return Sample{
		ID:          e.id,
		SourceURL:   e.sourceURL,
		DisplayName: e.displayName,
		Duration:    e.duration,
		Position:    e.position,
		Playing:     e.playing,
		Loading:     e.loading,
		Volume:      e.volume,
		LastError:   e.lastErr,
	}
}
