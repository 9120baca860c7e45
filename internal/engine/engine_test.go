// ABOUTME: Tests for the playback engine
// ABOUTME: Exercises registry lifecycle, gain model, and error classification
package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wavedeck/wavedeck-go/internal/media"
)

// fakeBackend scripts handle behavior per URL without touching a real
// audio device.
type fakeBackend struct {
	mu      sync.Mutex
	created int
	handles []*fakeHandle

	// durations maps URLs to the clip length reported on ready.
	durations map[string]time.Duration

	// failURLs makes preparation fail for the given URLs.
	failURLs map[string]error

	// silent suppresses the ready signal entirely (timeout testing).
	silent bool

	// playErr makes every handle's Play fail.
	playErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		durations: make(map[string]time.Duration),
		failURLs:  make(map[string]error),
	}
}

func (b *fakeBackend) NewHandle(ctx context.Context, url string, ev media.Events) (media.Handle, error) {
	b.mu.Lock()
	b.created++
	h := &fakeHandle{url: url, ev: ev, playErr: b.playErr}
	b.handles = append(b.handles, h)
	b.mu.Unlock()

	if err, ok := b.failURLs[url]; ok {
		ev.OnError(err)
		return h, nil
	}
	if !b.silent {
		d, ok := b.durations[url]
		if !ok {
			d = 5 * time.Second
		}
		h.duration = d
		ev.OnReady(d)
	}
	return h, nil
}

func (b *fakeBackend) lastHandle() *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

type fakeHandle struct {
	mu       sync.Mutex
	url      string
	ev       media.Events
	duration time.Duration
	gain     float64
	pos      time.Duration
	playing  bool
	closed   bool
	playErr  error
}

func (h *fakeHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playErr != nil {
		return h.playErr
	}
	h.playing = true
	return nil
}

func (h *fakeHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
}

func (h *fakeHandle) Seek(pos time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pos = pos
}

func (h *fakeHandle) SetGain(gain float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gain = gain
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.playing = false
	return nil
}

func (h *fakeHandle) currentGain() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gain
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func newTestEngine(t *testing.T, b *fakeBackend) *Engine {
	t.Helper()
	e, err := New(Config{Backend: b, ReadyTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func mustLoad(t *testing.T, e *Engine, id, url, name string) {
	t.Helper()
	if err := e.Load(context.Background(), id, url, name); err != nil {
		t.Fatalf("Load(%s) failed: %v", id, err)
	}
}

func TestLoadIdempotentSameURL(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")

	if b.created != 1 {
		t.Errorf("expected 1 handle created, got %d", b.created)
	}
}

func TestLoadReplacesOnNewURL(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/old.mp3", "Old")
	first := b.lastHandle()

	mustLoad(t, e, "a", "http://s/new.mp3", "New")

	if b.created != 2 {
		t.Errorf("expected 2 handles created, got %d", b.created)
	}
	if !first.isClosed() {
		t.Error("expected replaced handle to be closed")
	}
	s, ok := e.Sample("a")
	if !ok {
		t.Fatal("expected sample to exist")
	}
	if s.SourceURL != "http://s/new.mp3" {
		t.Errorf("expected new source URL, got %s", s.SourceURL)
	}
}

func TestLoadFailureKeepsEntry(t *testing.T) {
	b := newFakeBackend()
	b.failURLs["http://s/broken.mp3"] = errors.New("decode failed")
	e := newTestEngine(t, b)
	defer e.Close()

	err := e.Load(context.Background(), "a", "http://s/broken.mp3", "Broken")
	if err == nil {
		t.Fatal("expected load error")
	}

	s, ok := e.Sample("a")
	if !ok {
		t.Fatal("expected failed entry to stay in registry")
	}
	if s.Loading {
		t.Error("expected Loading=false after failure")
	}
	if s.LastError == nil {
		t.Fatal("expected LastError to be set")
	}
	if s.LastError.Kind != KindLoadFailed {
		t.Errorf("expected KindLoadFailed, got %v", s.LastError.Kind)
	}
}

func TestLoadRetriesAfterFailure(t *testing.T) {
	b := newFakeBackend()
	b.failURLs["http://s/horn.mp3"] = errors.New("transient decode failure")
	b.durations["http://s/horn.mp3"] = 3 * time.Second
	e := newTestEngine(t, b)
	defer e.Close()

	if err := e.Load(context.Background(), "a", "http://s/horn.mp3", "Horn"); err == nil {
		t.Fatal("expected load error")
	}

	// Same arguments again once the cause is gone: the failed entry is
	// replaced in place, no Remove needed
	delete(b.failURLs, "http://s/horn.mp3")
	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")

	if b.created != 2 {
		t.Errorf("expected retry to instantiate a new handle, created=%d", b.created)
	}
	s, ok := e.Sample("a")
	if !ok {
		t.Fatal("expected sample to exist")
	}
	if s.LastError != nil {
		t.Errorf("expected LastError cleared after retry, got %v", s.LastError)
	}
	if s.Duration != 3*time.Second {
		t.Errorf("expected duration 3s after retry, got %v", s.Duration)
	}
}

func TestLoadKeepsEntryAfterPlayFailure(t *testing.T) {
	b := newFakeBackend()
	b.playErr = errors.New("device hiccup")
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	if err := e.Play(context.Background(), "a"); err == nil {
		t.Fatal("expected play error")
	}

	// A play failure keeps a working handle; reloading the same URL must
	// stay a no-op rather than tear it down
	h := b.lastHandle()
	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")

	if b.created != 1 {
		t.Errorf("expected no new handle, created=%d", b.created)
	}
	if h.isClosed() {
		t.Error("expected existing handle to survive the reload")
	}
}

func TestLoadTimeout(t *testing.T) {
	b := newFakeBackend()
	b.silent = true
	e, err := New(Config{Backend: b, ReadyTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if err := e.Load(context.Background(), "a", "http://s/slow.mp3", "Slow"); err == nil {
		t.Fatal("expected timeout error")
	}

	s, _ := e.Sample("a")
	if s.LastError == nil || s.LastError.Kind != KindLoadFailed {
		t.Errorf("expected KindLoadFailed after timeout, got %+v", s.LastError)
	}
}

func TestLateReadyAfterTimeoutStaysFailed(t *testing.T) {
	b := newFakeBackend()
	b.silent = true
	e, err := New(Config{Backend: b, ReadyTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if err := e.Load(context.Background(), "a", "http://s/slow.mp3", "Slow"); err == nil {
		t.Fatal("expected timeout error")
	}

	// A readiness signal arriving after the failure settled must not
	// resurrect the entry
	b.lastHandle().ev.OnReady(3 * time.Second)

	s, _ := e.Sample("a")
	if s.LastError == nil || s.LastError.Kind != KindLoadFailed {
		t.Errorf("expected entry to stay failed, got %+v", s.LastError)
	}
	if s.Duration != 0 {
		t.Errorf("expected duration to stay 0, got %v", s.Duration)
	}
}

func TestLoadReportsDuration(t *testing.T) {
	b := newFakeBackend()
	b.durations["http://s/horn.mp3"] = 3 * time.Second
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")

	s, _ := e.Sample("a")
	if s.Duration != 3*time.Second {
		t.Errorf("expected duration 3s, got %v", s.Duration)
	}
	if s.Loading {
		t.Error("expected Loading=false after ready")
	}
	if s.Position != 0 {
		t.Errorf("expected position 0, got %v", s.Position)
	}
}

func TestPausePreservesStopResets(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	if err := e.Play(context.Background(), "a"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	h := b.lastHandle()
	h.ev.OnTime(2 * time.Second)

	e.Pause("a")
	s, _ := e.Sample("a")
	if s.Playing {
		t.Error("expected Playing=false after pause")
	}
	if s.Position != 2*time.Second {
		t.Errorf("expected pause to preserve position, got %v", s.Position)
	}

	if err := e.Play(context.Background(), "a"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	e.Stop("a")
	s, _ = e.Sample("a")
	if s.Playing {
		t.Error("expected Playing=false after stop")
	}
	if s.Position != 0 {
		t.Errorf("expected stop to reset position, got %v", s.Position)
	}
}

func TestPlayRewindsAfterEnd(t *testing.T) {
	b := newFakeBackend()
	b.durations["http://s/horn.mp3"] = 2 * time.Second
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	if err := e.Play(context.Background(), "a"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	h := b.lastHandle()
	h.ev.OnTime(2 * time.Second)
	e.Pause("a")

	if err := e.Play(context.Background(), "a"); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	s, _ := e.Sample("a")
	if s.Position != 0 {
		t.Errorf("expected position reset before replay, got %v", s.Position)
	}
}

func TestPlayAbsentIsNoop(t *testing.T) {
	e := newTestEngine(t, newFakeBackend())
	defer e.Close()

	if err := e.Play(context.Background(), "ghost"); err != nil {
		t.Errorf("expected nil for absent id, got %v", err)
	}
	e.Pause("ghost")
	e.Stop("ghost")
	e.SetVolume("ghost", 0.5)
	e.Remove("ghost")
}

func TestPlayBlockedClassification(t *testing.T) {
	b := newFakeBackend()
	b.playErr = media.ErrPlaybackBlocked
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	err := e.Play(context.Background(), "a")
	if err == nil {
		t.Fatal("expected play error")
	}
	var perr *PlaybackError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PlaybackError, got %T", err)
	}
	if perr.Kind != KindBlocked {
		t.Errorf("expected KindBlocked, got %v", perr.Kind)
	}

	s, _ := e.Sample("a")
	if s.Playing {
		t.Error("expected Playing=false after blocked start")
	}
	if s.LastError == nil || s.LastError.Kind != KindBlocked {
		t.Errorf("expected KindBlocked in state, got %+v", s.LastError)
	}
}

func TestPlayClearsLastError(t *testing.T) {
	b := newFakeBackend()
	b.playErr = errors.New("device hiccup")
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	if err := e.Play(context.Background(), "a"); err == nil {
		t.Fatal("expected play error")
	}

	b.lastHandle().playErr = nil
	if err := e.Play(context.Background(), "a"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	s, _ := e.Sample("a")
	if s.LastError != nil {
		t.Errorf("expected LastError cleared, got %v", s.LastError)
	}
	if !s.Playing {
		t.Error("expected Playing=true")
	}
}

func TestVolumeClamping(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{0.3, 0.3},
		{-0.5, 0.0},
		{1.5, 1.0},
		{0.0, 0.0},
		{1.0, 1.0},
	}

	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()
	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")

	for _, tt := range tests {
		e.SetVolume("a", tt.in)
		s, _ := e.Sample("a")
		if s.Volume != tt.expected {
			t.Errorf("SetVolume(%f): expected %f, got %f", tt.in, tt.expected, s.Volume)
		}
	}
}

func TestEffectiveGain(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	h := b.lastHandle()

	e.SetGlobalVolume(0.5)
	e.SetVolume("a", 0.8)

	if g := h.currentGain(); g != 0.4 {
		t.Errorf("expected effective gain 0.4, got %f", g)
	}

	e.ToggleMute()
	if g := h.currentGain(); g != 0 {
		t.Errorf("expected gain 0 while muted, got %f", g)
	}

	e.ToggleMute()
	if g := h.currentGain(); g != 0.4 {
		t.Errorf("expected gain restored to 0.4, got %f", g)
	}
}

func TestMuteIsNonDestructive(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/a.mp3", "A")
	mustLoad(t, e, "b", "http://s/b.mp3", "B")
	e.SetVolume("a", 0.9)
	e.SetVolume("b", 0.2)

	before := []float64{b.handles[0].currentGain(), b.handles[1].currentGain()}

	e.ToggleMute()
	e.ToggleMute()

	after := []float64{b.handles[0].currentGain(), b.handles[1].currentGain()}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("handle %d: gain %f changed to %f after double toggle", i, before[i], after[i])
		}
	}
}

func TestRemoveTearsDown(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	h := b.lastHandle()

	e.Remove("a")

	if !h.isClosed() {
		t.Error("expected handle closed on remove")
	}
	if _, ok := e.Sample("a"); ok {
		t.Error("expected sample gone after remove")
	}

	// Reload creates a brand-new entry
	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	s, ok := e.Sample("a")
	if !ok {
		t.Fatal("expected reloaded sample")
	}
	if s.Position != 0 || s.Playing {
		t.Errorf("expected fresh entry, got position=%v playing=%v", s.Position, s.Playing)
	}
}

func TestStaleCallbacksAfterRemove(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	old := b.lastHandle()

	e.Remove("a")
	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")

	// Events from the removed handle must not touch the new entry
	old.ev.OnTime(4 * time.Second)
	old.ev.OnEnded()
	old.ev.OnError(errors.New("stale"))

	s, _ := e.Sample("a")
	if s.Position != 0 {
		t.Errorf("stale time update leaked: position=%v", s.Position)
	}
	if s.LastError != nil {
		t.Errorf("stale error leaked: %v", s.LastError)
	}
}

func TestEndedBehavesLikeStop(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	if err := e.Play(context.Background(), "a"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	h := b.lastHandle()
	h.ev.OnTime(5 * time.Second)
	h.ev.OnEnded()

	s, _ := e.Sample("a")
	if s.Playing {
		t.Error("expected Playing=false after ended")
	}
	if s.Position != 0 {
		t.Errorf("expected position reset after ended, got %v", s.Position)
	}
}

func TestConcurrentPlaybackScenario(t *testing.T) {
	b := newFakeBackend()
	b.durations["http://s/a.mp3"] = 5 * time.Second
	b.durations["http://s/b.mp3"] = 3 * time.Second
	e := newTestEngine(t, b)
	defer e.Close()

	mustLoad(t, e, "a", "http://s/a.mp3", "A")
	mustLoad(t, e, "b", "http://s/b.mp3", "B")

	ctx := context.Background()
	if err := e.Play(ctx, "a"); err != nil {
		t.Fatalf("Play(a) failed: %v", err)
	}
	if err := e.Play(ctx, "b"); err != nil {
		t.Fatalf("Play(b) failed: %v", err)
	}

	playing := e.PlayingSamples()
	if len(playing) != 2 {
		t.Fatalf("expected 2 playing samples, got %d", len(playing))
	}
	if !e.AnyPlaying() {
		t.Error("expected AnyPlaying=true")
	}

	e.Pause("a")
	playing = e.PlayingSamples()
	if len(playing) != 1 || playing[0].ID != "b" {
		t.Errorf("expected only b playing, got %+v", playing)
	}

	e.StopAll()
	if e.AnyPlaying() {
		t.Error("expected AnyPlaying=false after StopAll")
	}
	for _, id := range []string{"a", "b"} {
		s, _ := e.Sample(id)
		if s.Position != 0 {
			t.Errorf("sample %s: expected position 0 after StopAll, got %v", id, s.Position)
		}
	}
}

func TestCloseSweepsAllHandles(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(t, b)

	mustLoad(t, e, "a", "http://s/a.mp3", "A")
	mustLoad(t, e, "b", "http://s/b.mp3", "B")
	if err := e.Play(context.Background(), "a"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	e.Close()

	for i, h := range b.handles {
		if !h.isClosed() {
			t.Errorf("handle %d not closed on engine Close", i)
		}
	}

	if err := e.Load(context.Background(), "c", "http://s/c.mp3", "C"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

type chanNotifier struct {
	played chan string
}

func (n *chanNotifier) Played(id string) {
	n.played <- id
}

func TestPlayNotifiesCounter(t *testing.T) {
	b := newFakeBackend()
	n := &chanNotifier{played: make(chan string, 1)}
	e, err := New(Config{Backend: b, Notifier: n})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	if err := e.Play(context.Background(), "a"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case id := <-n.played:
		if id != "a" {
			t.Errorf("expected notification for 'a', got %q", id)
		}
	case <-time.After(time.Second):
		t.Error("expected play notification")
	}
}

func TestNoNotificationOnFailedPlay(t *testing.T) {
	b := newFakeBackend()
	b.playErr = errors.New("nope")
	n := &chanNotifier{played: make(chan string, 1)}
	e, err := New(Config{Backend: b, Notifier: n})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	mustLoad(t, e, "a", "http://s/horn.mp3", "Horn")
	if err := e.Play(context.Background(), "a"); err == nil {
		t.Fatal("expected play error")
	}

	select {
	case id := <-n.played:
		t.Errorf("unexpected notification for %q after failed play", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing backend")
	}
}

func TestNewDefaults(t *testing.T) {
	e, err := New(Config{Backend: newFakeBackend()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if e.timeout != DefaultReadyTimeout {
		t.Errorf("expected default ready timeout, got %v", e.timeout)
	}
	if e.GlobalVolume() != DefaultVolume {
		t.Errorf("expected default global volume %f, got %f", DefaultVolume, e.GlobalVolume())
	}
}

func TestNewHonorsZeroGlobalVolume(t *testing.T) {
	zero := 0.0
	e, err := New(Config{Backend: newFakeBackend(), GlobalVolume: &zero})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if e.GlobalVolume() != 0 {
		t.Errorf("expected global volume 0, got %f", e.GlobalVolume())
	}
}
