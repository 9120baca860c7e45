// ABOUTME: Concurrent sample playback engine
// ABOUTME: Registry of loaded samples with volume, mute, and lifecycle control
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wavedeck/wavedeck-go/internal/media"
)

// DefaultReadyTimeout bounds how long Load waits for the backend's
// readiness signal before failing the load.
const DefaultReadyTimeout = 10 * time.Second

// ErrClosed is returned by Load after the engine has been closed.
var ErrClosed = errors.New("engine closed")

// Notifier receives a best-effort notification for each successful play.
// Implementations must never block playback; the engine calls Played on
// its own goroutine and ignores everything about the outcome.
type Notifier interface {
	Played(sampleID string)
}

// Config holds engine configuration
type Config struct {
	// Backend instantiates playback handles. Required.
	Backend media.Backend

	// Notifier receives play notifications. Optional.
	Notifier Notifier

	// ReadyTimeout bounds Load's wait for readiness (default: 10s).
	ReadyTimeout time.Duration

	// GlobalVolume is the initial global gain. Nil means the default of
	// 0.7; an explicit zero starts silent.
	GlobalVolume *float64
}

// Engine owns every active playback handle in the process. Each loaded
// sample id maps to exactly one handle; removing an id tears its handle
// down before the registry entry disappears, and Close sweeps the rest.
//
// All methods are safe for concurrent use. Operations on one id are
// expected to be issued sequentially by the caller; operations on
// different ids are independent.
type Engine struct {
	backend  media.Backend
	notifier Notifier
	timeout  time.Duration

	mu           sync.Mutex
	entries      map[string]*entry
	globalVolume float64
	muted        bool
	closed       bool
	nextGen      uint64
}

// New creates an engine
func New(config Config) (*Engine, error) {
	if config.Backend == nil {
		return nil, fmt.Errorf("engine: backend is required")
	}
	if config.ReadyTimeout == 0 {
		config.ReadyTimeout = DefaultReadyTimeout
	}
	globalVolume := DefaultVolume
	if config.GlobalVolume != nil {
		globalVolume = clamp(*config.GlobalVolume)
	}

	return &Engine{
		backend:      config.Backend,
		notifier:     config.Notifier,
		timeout:      config.ReadyTimeout,
		entries:      make(map[string]*entry),
		globalVolume: globalVolume,
	}, nil
}

// Load registers a sample and prepares its playback handle, blocking until
// the backend reports readiness, an error, or the ready timeout expires.
//
// Loading an id that is already present with the same source URL is a
// no-op. Loading with a different source URL replaces the entry, tearing
// the old handle down first. On failure the entry stays in the registry
// with LastError set so callers can inspect it; calling Load again with
// the same arguments retries the failed load in place.
func (e *Engine) Load(ctx context.Context, id, sourceURL, displayName string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if old, ok := e.entries[id]; ok {
		// A settled load failure is retriable in place; a healthy or
		// still-loading entry under the same URL is not reloaded. Play
		// failures keep their handle and are retried with Play, not Load.
		retriable := old.lastErr != nil && old.lastErr.Kind == KindLoadFailed && !old.loading
		if old.sourceURL == sourceURL && !retriable {
			e.mu.Unlock()
			return nil
		}
		e.teardownLocked(old)
		delete(e.entries, id)
	}
	e.nextGen++
	gen := e.nextGen
	ent := &entry{
		id:          id,
		sourceURL:   sourceURL,
		displayName: displayName,
		loading:     true,
		volume:      DefaultVolume,
		gen:         gen,
	}
	e.entries[id] = ent
	e.mu.Unlock()

	ready := make(chan time.Duration, 1)
	failed := make(chan error, 1)

	ev := media.Events{
		OnReady: func(d time.Duration) {
			e.onReady(id, gen, d)
			select {
			case ready <- d:
			default:
			}
		},
		OnTime: func(pos time.Duration) {
			e.onTime(id, gen, pos)
		},
		OnEnded: func() {
			e.onEnded(id, gen)
		},
		OnError: func(err error) {
			e.onMediaError(id, gen, err)
			select {
			case failed <- err:
			default:
			}
		},
	}

	handle, err := e.backend.NewHandle(ctx, sourceURL, ev)
	if err != nil {
		perr := loadError(err)
		e.recordLoadFailure(id, gen, perr)
		return perr
	}

	// Attach the handle, unless the entry was removed while the backend
	// was instantiating. In that case the handle is ours to clean up.
	e.mu.Lock()
	cur, ok := e.entries[id]
	if !ok || cur.gen != gen {
		e.mu.Unlock()
		handle.Close()
		return nil
	}
	cur.handle = handle
	handle.SetGain(e.effectiveGainLocked(cur))
	e.mu.Unlock()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case <-ready:
		return nil
	case err := <-failed:
		// onMediaError already recorded the failure
		return loadError(err)
	case <-timer.C:
		perr := loadError(fmt.Errorf("no readiness signal within %v", e.timeout))
		e.recordLoadFailure(id, gen, perr)
		return perr
	case <-ctx.Done():
		perr := loadError(ctx.Err())
		e.recordLoadFailure(id, gen, perr)
		return perr
	}
}

// Play starts or resumes a sample, blocking until output has started or
// the attempt is rejected. A finished sample restarts from the beginning.
// No-op for unknown ids. The result is recorded on the sample state before
// Play returns, so snapshots and the returned error always agree.
func (e *Engine) Play(ctx context.Context, id string) error {
	e.mu.Lock()
	ent, ok := e.entries[id]
	if !ok || ent.handle == nil {
		e.mu.Unlock()
		return nil
	}
	if ent.duration > 0 && ent.position >= ent.duration {
		// Finished: rewind before restarting
		ent.handle.Seek(0)
		ent.position = 0
	}
	ent.handle.SetGain(e.effectiveGainLocked(ent))
	handle := ent.handle
	gen := ent.gen
	e.mu.Unlock()

	err := handle.Play(ctx)

	e.mu.Lock()
	cur, ok := e.entries[id]
	if ok && cur.gen == gen {
		if err != nil {
			cur.playing = false
			cur.lastErr = playError(err)
		} else {
			cur.playing = true
			cur.lastErr = nil
		}
	}
	e.mu.Unlock()

	if err != nil {
		return playError(err)
	}
	if e.notifier != nil {
		go e.notifier.Played(id)
	}
	return nil
}

// Pause stops output without moving the position. No-op for unknown ids.
func (e *Engine) Pause(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok || ent.handle == nil {
		return
	}
	ent.handle.Pause()
	ent.playing = false
}

// Stop stops output and resets the position to the start. No-op for
// unknown ids.
func (e *Engine) Stop(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.entries[id]; ok {
		e.stopLocked(ent)
	}
}

// StopAll applies Stop to every loaded sample.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.entries {
		e.stopLocked(ent)
	}
}

// SetVolume sets a sample's gain, clamped to [0,1], and pushes the new
// effective gain to its handle immediately. No-op for unknown ids.
func (e *Engine) SetVolume(id string, volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok {
		return
	}
	ent.volume = clamp(volume)
	if ent.handle != nil {
		ent.handle.SetGain(e.effectiveGainLocked(ent))
	}
}

// SetGlobalVolume sets the global gain multiplier, clamped to [0,1], and
// pushes the new effective gain to every handle.
func (e *Engine) SetGlobalVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.globalVolume = clamp(volume)
	e.reapplyGainsLocked()
}

// ToggleMute flips the mute state. Stored volumes are untouched, so
// unmuting restores the previous effective gain exactly.
func (e *Engine) ToggleMute() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.muted = !e.muted
	e.reapplyGainsLocked()
}

// Muted reports the mute state
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// GlobalVolume returns the global gain multiplier
func (e *Engine) GlobalVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.globalVolume
}

// Remove tears down a sample's handle and drops it from the registry.
// The handle is released before the entry disappears, so no handle can
// outlive its registry entry. No-op for unknown ids.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok {
		return
	}
	e.teardownLocked(ent)
	delete(e.entries, id)
}

// Close unconditionally tears down every handle in the registry. The engine
// is unusable afterwards; Load returns ErrClosed and everything else
// becomes a no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	for _, ent := range e.entries {
		e.teardownLocked(ent)
	}
	e.entries = make(map[string]*entry)
	e.closed = true
}

// Sample returns a snapshot of the sample's state, if loaded.
func (e *Engine) Sample(id string) (Sample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok {
		return Sample{}, false
	}
	return ent.snapshot(), true
}

// Samples returns snapshots of every loaded sample.
func (e *Engine) Samples() []Sample {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Sample, 0, len(e.entries))
	for _, ent := range e.entries {
		out = append(out, ent.snapshot())
	}
	return out
}

// AnyPlaying reports whether any sample is currently producing output.
func (e *Engine) AnyPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.entries {
		if ent.playing {
			return true
		}
	}
	return false
}

// PlayingSamples returns snapshots of the samples currently playing.
// Order is not meaningful.
func (e *Engine) PlayingSamples() []Sample {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Sample
	for _, ent := range e.entries {
		if ent.playing {
			out = append(out, ent.snapshot())
		}
	}
	return out
}

// stopLocked stops output and resets the position. Handle calls cannot
// fail, so a sweep over all entries never aborts partway.
func (e *Engine) stopLocked(ent *entry) {
	if ent.handle != nil {
		ent.handle.Pause()
		ent.handle.Seek(0)
	}
	ent.playing = false
	ent.position = 0
}

// teardownLocked releases an entry's handle
func (e *Engine) teardownLocked(ent *entry) {
	if ent.handle != nil {
		ent.handle.Pause()
		ent.handle.Close()
		ent.handle = nil
	}
	ent.playing = false
}

// reapplyGainsLocked pushes the current effective gain to every handle
func (e *Engine) reapplyGainsLocked() {
	for _, ent := range e.entries {
		if ent.handle != nil {
			ent.handle.SetGain(e.effectiveGainLocked(ent))
		}
	}
}

// effectiveGainLocked computes the gain actually applied to output:
// zero when muted, otherwise volume * globalVolume clamped to [0,1].
func (e *Engine) effectiveGainLocked(ent *entry) float64 {
	if e.muted {
		return 0
	}
	return clamp(ent.volume * e.globalVolume)
}

// recordLoadFailure marks an entry failed if it still exists and still
// belongs to the failed load attempt.
func (e *Engine) recordLoadFailure(id string, gen uint64, perr *PlaybackError) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok || ent.gen != gen {
		return
	}
	ent.loading = false
	ent.lastErr = perr
}

// onReady records the clip duration once the backend reports it
func (e *Engine) onReady(id string, gen uint64, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok || ent.gen != gen {
		return
	}
	if ent.lastErr != nil && !ent.loading {
		// The load already settled as failed (e.g. by timeout); a late
		// readiness signal must not resurrect it. Retry with a fresh Load.
		return
	}
	ent.duration = d
	ent.loading = false
	ent.lastErr = nil
}

// onTime advances the observed position. Stale ticks from a removed or
// replaced entry's handle are dropped by the generation check.
func (e *Engine) onTime(id string, gen uint64, pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok || ent.gen != gen {
		return
	}
	ent.position = pos
}

// onEnded treats natural end-of-clip like Stop
func (e *Engine) onEnded(id string, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok || ent.gen != gen {
		return
	}
	e.stopLocked(ent)
}

// onMediaError records a backend failure against the entry
func (e *Engine) onMediaError(id string, gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok || ent.gen != gen {
		return
	}
	if ent.loading {
		ent.loading = false
		ent.lastErr = loadError(err)
	} else {
		ent.playing = false
		ent.lastErr = playError(err)
	}
}

// clamp limits a gain to [0,1]
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
