// ABOUTME: Real playback backend on the oto audio library
// ABOUTME: Fetches, decodes, and plays samples through one shared output context
package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/wavedeck/wavedeck-go/internal/media/decode"
	"github.com/wavedeck/wavedeck-go/internal/media/resample"
)

const (
	// The device runs at one fixed format; clips are converted on load.
	// oto allows a single context per process.
	deviceSampleRate = 48000
	deviceChannels   = 2
	bytesPerFrame    = deviceChannels * 2

	deviceReadyWait  = 5 * time.Second
	timeTickInterval = 250 * time.Millisecond
)

// OtoBackend implements Backend on a process-wide oto context. The context
// is created lazily on the first Play so that a missing audio device fails
// playback (as ErrPlaybackBlocked), not loading.
type OtoBackend struct {
	fetch *fetcher

	initOnce sync.Once
	otoCtx   *oto.Context
	ready    chan struct{}
	initErr  error
}

// NewOtoBackend creates the real playback backend
func NewOtoBackend() *OtoBackend {
	return &OtoBackend{fetch: newFetcher()}
}

// NewHandle starts preparing a handle for the URL. Fetch and decode run in
// the background; readiness and failures arrive through ev.
func (b *OtoBackend) NewHandle(ctx context.Context, url string, ev Events) (Handle, error) {
	h := &otoHandle{
		backend: b,
		url:     url,
		ev:      ev,
		gain:    1.0,
	}
	go h.prepare(ctx)
	return h, nil
}

// playbackContext returns the shared oto context, waiting briefly for the
// device to come up. Failures map to ErrPlaybackBlocked so callers can
// distinguish "no output device" from a broken sample.
func (b *OtoBackend) playbackContext() (*oto.Context, error) {
	b.initOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   deviceSampleRate,
			ChannelCount: deviceChannels,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			b.initErr = err
			return
		}
		b.otoCtx = ctx
		b.ready = ready
	})

	if b.initErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlaybackBlocked, b.initErr)
	}

	select {
	case <-b.ready:
		return b.otoCtx, nil
	case <-time.After(deviceReadyWait):
		return nil, fmt.Errorf("%w: no device after %v", ErrPlaybackBlocked, deviceReadyWait)
	}
}

// otoHandle is one playable clip. It owns at most one oto player at a
// time; the player is dropped on Seek and recreated on the next Play.
type otoHandle struct {
	backend *OtoBackend
	url     string
	ev      Events

	mu        sync.Mutex
	pcm       []byte // device-format PCM, nil until prepared
	duration  time.Duration
	offset    int64 // resume point for the next player
	gain      float64
	player    *oto.Player
	reader    *gainReader
	monitorOn bool
	closed    bool
}

// prepare fetches and decodes the clip, then reports readiness
func (h *otoHandle) prepare(ctx context.Context) {
	data, name, err := h.backend.fetch.Fetch(ctx, h.url)
	if err != nil {
		h.fail(err)
		return
	}

	clip, err := decode.Decode(name, data)
	if err != nil {
		h.fail(err)
		return
	}

	samples := clip.Samples
	switch clip.Channels {
	case deviceChannels:
	case 1:
		samples = resample.MonoToStereo(samples)
	default:
		h.fail(fmt.Errorf("unsupported channel count %d", clip.Channels))
		return
	}
	samples = resample.Linear(samples, deviceChannels, clip.SampleRate, deviceSampleRate)

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	duration := time.Duration(len(pcm)/bytesPerFrame) * time.Second / deviceSampleRate

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.pcm = pcm
	h.duration = duration
	h.mu.Unlock()

	if h.ev.OnReady != nil {
		h.ev.OnReady(duration)
	}
}

// fail reports a preparation error unless the handle is already closed
func (h *otoHandle) fail(err error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if !closed && h.ev.OnError != nil {
		h.ev.OnError(err)
	}
}

// Play starts or resumes output. The first start creates the oto player
// over the clip's gain reader; a paused player resumes in place.
func (h *otoHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("media handle closed")
	}
	if h.pcm == nil {
		h.mu.Unlock()
		return ErrNotReady
	}
	h.mu.Unlock()

	otoCtx, err := h.backend.playbackContext()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("media handle closed")
	}
	if h.player == nil {
		h.reader = newGainReader(h.pcm, h.offset)
		h.reader.setGain(h.gain)
		h.player = otoCtx.NewPlayer(h.reader)
	}
	h.player.Play()

	if !h.monitorOn {
		h.monitorOn = true
		go h.monitor()
	}
	return nil
}

// Pause suspends output in place; the player keeps its position.
func (h *otoHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.player != nil {
		h.player.Pause()
	}
}

// Seek sets the playback position. Any existing player is dropped because
// its buffer holds audio from the old position; the next Play rebuilds it.
func (h *otoHandle) Seek(pos time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	offset := int64(pos.Seconds()*deviceSampleRate) * bytesPerFrame
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(h.pcm)) {
		offset = int64(len(h.pcm))
	}

	if h.player != nil {
		h.player.Close()
		h.player = nil
		h.reader = nil
	}
	h.offset = offset
}

// SetGain sets the output gain for subsequent audio
func (h *otoHandle) SetGain(gain float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.gain = gain
	if h.reader != nil {
		h.reader.setGain(gain)
	}
}

// Close stops output and releases the player. Safe to call twice.
func (h *otoHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if h.player != nil {
		h.player.Close()
		h.player = nil
		h.reader = nil
	}
	h.pcm = nil
	return nil
}

// monitor emits position ticks while a player exists and detects natural
// end of playback. Runs without holding the lock across event callbacks.
func (h *otoHandle) monitor() {
	ticker := time.NewTicker(timeTickInterval)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		if h.closed || h.player == nil {
			h.monitorOn = false
			h.mu.Unlock()
			return
		}

		consumed := h.reader.consumed()
		buffered := int64(h.player.BufferedSize())
		playing := h.player.IsPlaying()
		done := h.reader.exhausted() && !playing

		if done {
			h.player.Close()
			h.player = nil
			h.reader = nil
			h.offset = 0
			h.monitorOn = false
		}
		h.mu.Unlock()

		if done {
			if h.ev.OnEnded != nil {
				h.ev.OnEnded()
			}
			return
		}

		pos := consumed - buffered
		if pos < 0 {
			pos = 0
		}
		if h.ev.OnTime != nil && playing {
			h.ev.OnTime(time.Duration(pos/bytesPerFrame) * time.Second / deviceSampleRate)
		}
	}
}
