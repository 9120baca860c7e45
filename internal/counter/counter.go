// ABOUTME: Fire-and-forget play-count tracker client
// ABOUTME: Failures are logged and swallowed; playback never depends on this
package counter

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Tracker reports plays to the catalog server. It satisfies the engine's
// Notifier interface.
type Tracker struct {
	serverAddr string
	client     *http.Client
	session    string
}

// NewTracker creates a tracker with a fresh session id
func NewTracker(serverAddr string) *Tracker {
	return &Tracker{
		serverAddr: serverAddr,
		client:     &http.Client{Timeout: 5 * time.Second},
		session:    uuid.New().String(),
	}
}

// SessionID returns the per-process session identifier
func (t *Tracker) SessionID() string {
	return t.session
}

// Played reports one play of the sample. Every failure is swallowed here;
// a lost count must never affect playback.
func (t *Tracker) Played(sampleID string) {
	u := url.URL{
		Scheme: "http",
		Host:   t.serverAddr,
		Path:   "/api/samples/" + url.PathEscape(sampleID) + "/play",
	}

	req, err := http.NewRequest(http.MethodPost, u.String(), nil)
	if err != nil {
		log.Printf("Play count request for %s: %v", sampleID, err)
		return
	}
	req.Header.Set("X-Session-ID", t.session)

	resp, err := t.client.Do(req)
	if err != nil {
		log.Printf("Play count for %s not recorded: %v", sampleID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		log.Printf("Play count for %s not recorded: HTTP %d", sampleID, resp.StatusCode)
	}
}
