// ABOUTME: Entry point for the Wavedeck soundboard player
// ABOUTME: Wires catalog, playback engine, play counter, and TUI together
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wavedeck/wavedeck-go/internal/catalog"
	"github.com/wavedeck/wavedeck-go/internal/counter"
	"github.com/wavedeck/wavedeck-go/internal/discovery"
	"github.com/wavedeck/wavedeck-go/internal/engine"
	"github.com/wavedeck/wavedeck-go/internal/media"
	"github.com/wavedeck/wavedeck-go/internal/ui"
	"github.com/wavedeck/wavedeck-go/internal/version"
)

var (
	serverAddr   = flag.String("server", "", "Catalog server address (skip mDNS)")
	logFile      = flag.String("log-file", "wavedeck-player.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	volume       = flag.Float64("volume", 0.7, "Initial global volume (0.0-1.0)")
	readyTimeout = flag.Duration("ready-timeout", engine.DefaultReadyTimeout, "How long a sample may take to become playable")
)

const statusInterval = 250 * time.Millisecond

// boardOrder tracks the catalog's sample ordering for display. The engine
// registry is unordered, so the board keeps its own list.
type boardOrder struct {
	mu  sync.Mutex
	ids []string
}

func (b *boardOrder) set(ids []string) {
	b.mu.Lock()
	b.ids = ids
	b.mu.Unlock()
}

func (b *boardOrder) get() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out
}

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: the board owns the terminal, log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	// Find a catalog server unless one was given
	serverAddress := *serverAddr
	if serverAddress == "" {
		log.Printf("Starting catalog server discovery...")
		disc := discovery.NewManager()
		disc.Browse()

		select {
		case server := <-disc.Servers():
			serverAddress = fmt.Sprintf("%s:%d", server.Host, server.Port)
			log.Printf("Discovered catalog server at %s", serverAddress)
		case <-time.After(10 * time.Second):
			disc.Stop()
			log.Fatalf("No catalog server found after 10 seconds")
		}
		disc.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat := catalog.NewClient(serverAddress)
	library, err := cat.Library(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch sample library: %v", err)
	}
	log.Printf("Library loaded: %d samples", len(library))

	tracker := counter.NewTracker(serverAddress)
	log.Printf("Play tracking session: %s", tracker.SessionID())

	eng, err := engine.New(engine.Config{
		Backend:      media.NewOtoBackend(),
		Notifier:     tracker,
		GlobalVolume: volume,
		ReadyTimeout: *readyTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create playback engine: %v", err)
	}

	order := &boardOrder{}
	order.set(loadLibrary(ctx, eng, library))

	var controls *ui.Controls
	var prog *tea.Program

	if useTUI {
		controls = ui.NewControls()
		prog, err = ui.Run(controls)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := prog.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		go statusLoop(ctx, eng, prog, order)
	}

	// Refresh when the server announces library changes
	go watchLibrary(ctx, cat, eng, order)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if controls != nil {
		running := true
		for running {
			select {
			case cmd := <-controls.Commands:
				handleCommand(ctx, eng, cmd)

			case <-controls.Quit:
				log.Printf("Quit requested from TUI")
				running = false

			case <-sigChan:
				log.Printf("Shutdown signal received")
				running = false
			}
		}
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	cancel()
	eng.Close()
	if prog != nil {
		prog.Quit()
	}
	log.Printf("Player stopped")
}

// loadLibrary loads every catalog sample concurrently and returns the
// display order. Loads block until ready, so each gets its own goroutine;
// failures stay visible on the board via the sample's error state.
func loadLibrary(ctx context.Context, eng *engine.Engine, library []catalog.Sample) []string {
	order := make([]string, 0, len(library))
	for _, s := range library {
		order = append(order, s.ID)
		go func(s catalog.Sample) {
			if err := eng.Load(ctx, s.ID, s.URL, s.Name); err != nil {
				log.Printf("Load %s (%s): %v", s.ID, s.Name, err)
			}
		}(s)
	}
	return order
}

// handleCommand applies one board command to the engine
func handleCommand(ctx context.Context, eng *engine.Engine, cmd ui.Command) {
	switch cmd.Action {
	case ui.ActionToggle:
		if s, ok := eng.Sample(cmd.SampleID); ok && s.Playing {
			eng.Pause(cmd.SampleID)
			return
		}
		// Play blocks until output starts; keep the command loop free
		go func() {
			if err := eng.Play(ctx, cmd.SampleID); err != nil {
				log.Printf("Play %s: %v", cmd.SampleID, err)
			}
		}()

	case ui.ActionStop:
		eng.Stop(cmd.SampleID)

	case ui.ActionStopAll:
		eng.StopAll()

	case ui.ActionVolumeUp:
		eng.SetGlobalVolume(eng.GlobalVolume() + 0.1)

	case ui.ActionVolumeDown:
		eng.SetGlobalVolume(eng.GlobalVolume() - 0.1)

	case ui.ActionMute:
		eng.ToggleMute()
	}
}

// statusLoop periodically sends engine snapshots to the TUI
func statusLoop(ctx context.Context, eng *engine.Engine, prog *tea.Program, order *boardOrder) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			prog.Send(buildStatus(eng, order.get()))
		case <-ctx.Done():
			return
		}
	}
}

// buildStatus assembles a board snapshot in catalog order
func buildStatus(eng *engine.Engine, order []string) ui.StatusMsg {
	msg := ui.StatusMsg{
		GlobalVolume: eng.GlobalVolume(),
		Muted:        eng.Muted(),
	}

	for _, id := range order {
		s, ok := eng.Sample(id)
		if !ok {
			continue
		}
		row := ui.SampleStatus{
			ID:       s.ID,
			Name:     s.DisplayName,
			Duration: s.Duration,
			Position: s.Position,
			Playing:  s.Playing,
			Loading:  s.Loading,
		}
		if s.LastError != nil {
			if s.LastError.Kind == engine.KindBlocked {
				row.Blocked = true
			} else {
				row.ErrorText = s.LastError.Kind.String()
			}
		}
		msg.Samples = append(msg.Samples, row)
	}

	return msg
}

// watchLibrary refreshes the board whenever the server announces changes
func watchLibrary(ctx context.Context, cat *catalog.Client, eng *engine.Engine, order *boardOrder) {
	for ctx.Err() == nil {
		updates, err := cat.Watch(ctx)
		if err != nil {
			log.Printf("Library watch unavailable: %v", err)
			return
		}

		for range updates {
			library, err := cat.Library(ctx)
			if err != nil {
				log.Printf("Library refresh failed: %v", err)
				continue
			}
			log.Printf("Library updated: %d samples", len(library))

			// Drop samples that left the catalog, then (re)load the rest
			current := make(map[string]bool, len(library))
			for _, s := range library {
				current[s.ID] = true
			}
			for _, id := range order.get() {
				if !current[id] {
					eng.Remove(id)
				}
			}
			order.set(loadLibrary(ctx, eng, library))
		}

		// Channel closed: reconnect unless shutting down
		if ctx.Err() == nil {
			time.Sleep(2 * time.Second)
		}
	}
}
