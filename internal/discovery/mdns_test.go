// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager lifecycle without touching the network
package discovery

import (
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager()
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	defer mgr.Stop()

	if mgr.Servers() == nil {
		t.Error("expected servers channel")
	}
}

func TestStopEndsBrowse(t *testing.T) {
	mgr := NewManager()
	mgr.Stop()

	// A stopped manager must deliver nothing
	select {
	case s := <-mgr.Servers():
		t.Errorf("unexpected server after stop: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}
