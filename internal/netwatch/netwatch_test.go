package netwatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitor_StartProbesSynchronously(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := New(srv.URL)
	m.Start(context.Background())
	defer m.Stop()

	// Start probes before returning, so this needs no waiting.
	if !m.IsOnline() {
		t.Error("IsOnline() = false with a reachable server")
	}
}

func TestMonitor_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	m := NewWithConfig(srv.URL, &Config{Timeout: 200 * time.Millisecond})
	m.Start(context.Background())
	defer m.Stop()

	if m.IsOnline() {
		t.Error("IsOnline() = true with an unreachable server")
	}
}

func TestMonitor_AnyResponseCountsAsOnline(t *testing.T) {
	// A 500 still proves the server is reachable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := New(srv.URL)
	m.Start(context.Background())
	defer m.Stop()

	if !m.IsOnline() {
		t.Error("IsOnline() = false on a 500 response")
	}
}

func TestMonitor_ProbeOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := New(srv.URL)
	if !m.ProbeOnce(context.Background()) {
		t.Error("ProbeOnce() = false with a reachable server")
	}
	if !m.IsOnline() {
		t.Error("IsOnline() = false after a successful ProbeOnce")
	}

	srv.Close()
	if m.ProbeOnce(context.Background()) {
		t.Error("ProbeOnce() = true after the server went away")
	}
	if m.IsOnline() {
		t.Error("IsOnline() = true after a failed ProbeOnce")
	}
}

func TestMonitor_OneNotificationPerTransition(t *testing.T) {
	m := New("http://localhost:1")
	ch := m.Transitions()

	m.SetOnline(true)
	m.SetOnline(true) // repeat observation, no transition
	m.SetOnline(false)

	select {
	case got := <-ch:
		if !got {
			t.Error("first notification = false, want true")
		}
	default:
		t.Fatal("no notification for offline-to-online")
	}
	select {
	case got := <-ch:
		if got {
			t.Error("second notification = true, want false")
		}
	default:
		t.Fatal("no notification for online-to-offline")
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected extra notification %v", got)
	default:
	}
}

func TestMonitor_WaitOnline(t *testing.T) {
	m := New("http://localhost:1")

	// Already online returns immediately.
	m.SetOnline(true)
	if err := m.WaitOnline(context.Background()); err != nil {
		t.Fatalf("WaitOnline() while online failed: %v", err)
	}

	m.SetOnline(false)
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.SetOnline(true)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.WaitOnline(ctx); err != nil {
		t.Fatalf("WaitOnline() failed: %v", err)
	}
}

func TestMonitor_WaitOnline_ContextCancelled(t *testing.T) {
	m := New("http://localhost:1")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := m.WaitOnline(ctx); err == nil {
		t.Error("WaitOnline() returned nil while offline forever")
	}
}

func TestMonitor_CustomProbe(t *testing.T) {
	var reachable atomic.Bool
	m := NewWithConfig("ignored", &Config{
		Interval: 10 * time.Millisecond,
		Probe:    func(ctx context.Context) bool { return reachable.Load() },
	})
	m.Start(context.Background())
	defer m.Stop()

	if m.IsOnline() {
		t.Fatal("IsOnline() = true before probe flips")
	}

	reachable.Store(true)
	deadline := time.After(2 * time.Second)
	for !m.IsOnline() {
		select {
		case <-deadline:
			t.Fatal("monitor never observed the probe flip")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
