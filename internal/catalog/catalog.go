// ABOUTME: Catalog server client for sample descriptors
// ABOUTME: Fetches the sample library over HTTP and watches for changes over WebSocket
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Sample is a playable unit as described by the catalog server. The id is
// stable and unique for a playback session; the URL must be directly
// streamable with no extra auth handshake.
type Sample struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Client talks to one catalog server
type Client struct {
	serverAddr string
	httpClient *http.Client
}

// NewClient creates a catalog client for the given host:port
func NewClient(serverAddr string) *Client {
	return &Client{
		serverAddr: serverAddr,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Library fetches the current sample list
func (c *Client) Library(ctx context.Context) ([]Sample, error) {
	u := url.URL{Scheme: "http", Host: c.serverAddr, Path: "/api/samples"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("library request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("library fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("library fetch failed: HTTP %d", resp.StatusCode)
	}

	var samples []Sample
	if err := json.NewDecoder(resp.Body).Decode(&samples); err != nil {
		return nil, fmt.Errorf("library decode failed: %w", err)
	}

	return samples, nil
}

// libraryEvent is the server's change notification frame
type libraryEvent struct {
	Event string `json:"event"`
}

// Watch connects to the catalog server's event socket and delivers a tick
// whenever the library changes. The channel closes when the connection
// drops or ctx is cancelled; callers reconnect by calling Watch again.
func (c *Client) Watch(ctx context.Context) (<-chan struct{}, error) {
	u := url.URL{Scheme: "ws", Host: c.serverAddr, Path: "/ws"}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("watch dial failed: %w", err)
	}

	updates := make(chan struct{}, 1)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(updates)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("Catalog watch closed: %v", err)
				}
				return
			}

			var ev libraryEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("Catalog watch: bad frame: %v", err)
				continue
			}
			if ev.Event != "library_updated" {
				continue
			}

			// Coalesce: one pending tick is enough
			select {
			case updates <- struct{}{}:
			default:
			}
		}
	}()

	return updates, nil
}
