package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tutordesk/tutorsync/internal/adapter"
	"github.com/tutordesk/tutorsync/internal/api"
	"github.com/tutordesk/tutorsync/internal/netwatch"
	"github.com/tutordesk/tutorsync/internal/store"
)

// fakeAdapter counts calls and can fail or block on demand.
type fakeAdapter struct {
	name      string
	syncErr   error
	syncCalls atomic.Int32

	importN     int
	importErr   error
	importCalls atomic.Int32

	// When set, Sync signals started and blocks until release closes.
	started chan struct{}
	release chan struct{}
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Sync(ctx context.Context) (*adapter.Report, error) {
	f.syncCalls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return &adapter.Report{Entity: f.name, Succeeded: 1}, nil
}

func (f *fakeAdapter) ImportFromServer(ctx context.Context) (int, error) {
	f.importCalls.Add(1)
	return f.importN, f.importErr
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSyncAll_OfflinePrecondition(t *testing.T) {
	mon := netwatch.New("http://localhost:1")
	// Never started, so the monitor reports offline.
	s := New([]adapter.Adapter{&fakeAdapter{name: "students"}}, testStore(t), mon, nil)

	_, err := s.SyncAll(context.Background())
	if !errors.Is(err, api.ErrOffline) {
		t.Errorf("SyncAll() error = %v, want ErrOffline", err)
	}
}

func TestSyncAll_AggregatesAndRecordsLastSync(t *testing.T) {
	st := testStore(t)
	a := &fakeAdapter{name: "students"}
	b := &fakeAdapter{name: "teachers"}
	s := New([]adapter.Adapter{a, b}, st, nil, nil)

	summary, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}
	if summary.Succeeded() != 2 {
		t.Errorf("Succeeded() = %d, want 2", summary.Succeeded())
	}
	if len(summary.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none", summary.Skipped)
	}

	last, err := st.LastSync(context.Background())
	if err != nil {
		t.Fatalf("LastSync() failed: %v", err)
	}
	if last.IsZero() {
		t.Error("clean pass did not record last sync time")
	}
}

func TestSyncAll_EntityErrorDoesNotBlockOthers(t *testing.T) {
	st := testStore(t)
	bad := &fakeAdapter{name: "students", syncErr: errors.New("db corrupt")}
	good := &fakeAdapter{name: "teachers"}
	s := New([]adapter.Adapter{bad, good}, st, nil, nil)

	summary, err := s.SyncAll(context.Background())
	if err == nil {
		t.Fatal("SyncAll() swallowed the entity error")
	}
	if good.syncCalls.Load() != 1 {
		t.Error("later entity never ran after an earlier failure")
	}
	if summary.Succeeded() != 1 {
		t.Errorf("Succeeded() = %d, want 1", summary.Succeeded())
	}

	// A pass with errors must not advance the last-sync marker.
	last, err := st.LastSync(context.Background())
	if err != nil {
		t.Fatalf("LastSync() failed: %v", err)
	}
	if !last.IsZero() {
		t.Error("failed pass recorded a last sync time")
	}
}

func TestSyncAll_SingleFlightSkips(t *testing.T) {
	st := testStore(t)
	slow := &fakeAdapter{
		name:    "students",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New([]adapter.Adapter{slow}, st, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.SyncAll(context.Background())
	}()
	<-slow.started // first pass is now holding the entity lock

	summary, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("concurrent SyncAll() failed: %v", err)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0] != "students" {
		t.Errorf("Skipped = %v, want the in-flight entity", summary.Skipped)
	}

	close(slow.release)
	<-done

	if slow.syncCalls.Load() != 1 {
		t.Errorf("Sync ran %d times, want exactly once", slow.syncCalls.Load())
	}
}

func TestImportAll(t *testing.T) {
	st := testStore(t)
	a := &fakeAdapter{name: "students", importN: 3}
	b := &fakeAdapter{name: "teachers", importErr: errors.New("boom")}
	c := &fakeAdapter{name: "subjects", importN: 2}
	s := New([]adapter.Adapter{a, b, c}, st, nil, nil)

	n, err := s.ImportAll(context.Background())
	if err == nil {
		t.Fatal("ImportAll() swallowed the collection error")
	}
	if n != 5 {
		t.Errorf("ImportAll() = %d, want the two clean collections counted", n)
	}
	if c.importCalls.Load() != 1 {
		t.Error("import stopped at the failing collection")
	}
}

func TestRun_SetIntervalResetsTicker(t *testing.T) {
	st := testStore(t)
	a := &fakeAdapter{name: "students"}
	s := New([]adapter.Adapter{a}, st, nil, &Config{
		SyncInterval: time.Hour, // no tick unless the reload shortens it
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = s.Run(ctx)
	}()

	// Wait out the startup pass, then shrink the interval.
	deadline := time.After(2 * time.Second)
	for a.syncCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("startup pass never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
	s.SetInterval(20 * time.Millisecond)

	deadline = time.After(2 * time.Second)
	for a.syncCalls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop never ticked at the reloaded interval")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-runDone
}

func TestRun_SyncsOnReconnect(t *testing.T) {
	st := testStore(t)
	a := &fakeAdapter{name: "students"}
	mon := netwatch.New("http://localhost:1")
	s := New([]adapter.Adapter{a}, st, mon, &Config{
		SyncInterval:      time.Hour, // keep the ticker out of this test
		ImportOnReconnect: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = s.Run(ctx)
	}()

	// Startup pass is skipped while offline.
	time.Sleep(50 * time.Millisecond)
	if a.syncCalls.Load() != 0 {
		t.Fatal("sync ran while offline")
	}

	mon.SetOnline(true)

	deadline := time.After(2 * time.Second)
	for a.syncCalls.Load() == 0 || a.importCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("reconnect did not trigger sync+import (sync=%d import=%d)",
				a.syncCalls.Load(), a.importCalls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-runDone
}
