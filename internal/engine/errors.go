// ABOUTME: Playback error taxonomy
// ABOUTME: Classifies load and playback failures for caller affordances
package engine

import (
	"errors"
	"fmt"

	"github.com/wavedeck/wavedeck-go/internal/media"
)

// ErrorKind classifies a playback failure
type ErrorKind int

const (
	// KindLoadFailed means the sample never reached a ready state:
	// bad URL, fetch failure, unsupported format, or ready timeout.
	KindLoadFailed ErrorKind = iota

	// KindBlocked means the output device refused to start audio.
	// UIs should prompt to enable sound rather than show an error icon.
	KindBlocked

	// KindPlaybackFailed covers any other failure to start or continue output.
	KindPlaybackFailed
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindLoadFailed:
		return "load failed"
	case KindBlocked:
		return "output blocked"
	case KindPlaybackFailed:
		return "playback failed"
	default:
		return "unknown"
	}
}

// PlaybackError is the failure recorded on a sample's state. It is also
// returned from Load and Play, but the state is always written first, so
// polling and return values report the same thing.
type PlaybackError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// loadError wraps err as a load failure
func loadError(err error) *PlaybackError {
	return &PlaybackError{Kind: KindLoadFailed, Err: err}
}

// playError classifies a playback start failure
func playError(err error) *PlaybackError {
	if errors.Is(err, media.ErrPlaybackBlocked) {
		return &PlaybackError{Kind: KindBlocked, Err: err}
	}
	return &PlaybackError{Kind: KindPlaybackFailed, Err: err}
}
