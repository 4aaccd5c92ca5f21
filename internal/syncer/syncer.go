// Package syncer orchestrates the per-entity adapters.
//
// The syncer:
// 1. Runs every adapter's push pass in dependency order
// 2. Guards each entity with a single-flight lock so overlapping triggers
//    (timer tick plus reconnect) never double-push the same collection
// 3. In daemon mode, re-syncs on a timer and immediately after the
//    connection comes back
// 4. Handles graceful shutdown
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/adapter"
	"github.com/tutordesk/tutorsync/internal/api"
	"github.com/tutordesk/tutorsync/internal/netwatch"
	"github.com/tutordesk/tutorsync/internal/store"
)

// Config holds configuration for the syncer.
type Config struct {
	// SyncInterval is how often the daemon loop re-runs a full push pass.
	SyncInterval time.Duration

	// ImportOnReconnect refreshes local synced records from the server after
	// each successful reconnect push.
	ImportOnReconnect bool

	// Logger for sync activity.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:      time.Minute,
		ImportOnReconnect: true,
		Logger:            zap.NewNop(),
	}
}

// Summary aggregates one full pass over every entity.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Reports    []*adapter.Report
	// Skipped lists entities whose single-flight lock was held by a
	// concurrent pass.
	Skipped []string
}

// Succeeded reports the total records pushed across all entities.
func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Reports {
		n += r.Succeeded
	}
	return n
}

// Failed reports the total per-record failures across all entities.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Reports {
		n += r.Failed
	}
	return n
}

// Syncer drives the adapters, serializing work per entity.
type Syncer struct {
	adapters []adapter.Adapter
	store    *store.Store
	monitor  *netwatch.Monitor
	config   *Config

	// OnSummary, when set, receives every completed pass. Used by the
	// dashboard; must not block.
	OnSummary func(Summary)

	locks map[string]*sync.Mutex

	// intervalCh carries hot-reloaded intervals to the running daemon loop.
	intervalCh chan time.Duration

	wg sync.WaitGroup
}

// New builds a syncer over the given adapters. The monitor may be nil, in
// which case every pass assumes the server is reachable and lets the HTTP
// layer report otherwise.
func New(adapters []adapter.Adapter, st *store.Store, monitor *netwatch.Monitor, config *Config) *Syncer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	locks := make(map[string]*sync.Mutex, len(adapters))
	for _, a := range adapters {
		locks[a.Name()] = &sync.Mutex{}
	}
	return &Syncer{
		adapters:   adapters,
		store:      st,
		monitor:    monitor,
		config:     config,
		locks:      locks,
		intervalCh: make(chan time.Duration, 1),
	}
}

// SetInterval changes the periodic pass interval. A running daemon loop
// resets its ticker on the next iteration; non-positive values are ignored.
func (s *Syncer) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	// Keep only the latest value when updates arrive faster than the loop
	// drains them.
	select {
	case <-s.intervalCh:
	default:
	}
	select {
	case s.intervalCh <- d:
	default:
	}
}

// SyncAll runs one push pass over every entity in order. Entities whose lock
// is held by a concurrent pass are skipped, not queued; the periodic loop
// will reach them again. Returns api.ErrOffline without touching the network
// when the monitor says the server is unreachable.
func (s *Syncer) SyncAll(ctx context.Context) (*Summary, error) {
	if s.monitor != nil && !s.monitor.IsOnline() {
		return nil, api.ErrOffline
	}

	summary := &Summary{StartedAt: time.Now().UTC()}
	var errs []error
	for _, a := range s.adapters {
		lock := s.locks[a.Name()]
		if !lock.TryLock() {
			s.config.Logger.Debug("entity sync already in flight, skipping",
				zap.String("entity", a.Name()))
			summary.Skipped = append(summary.Skipped, a.Name())
			continue
		}
		report, err := a.Sync(ctx)
		lock.Unlock()
		if err != nil {
			if errors.Is(err, api.ErrOffline) {
				// Went offline mid-pass. Stop, the reconnect trigger will
				// resume from the first entity.
				summary.FinishedAt = time.Now().UTC()
				return summary, err
			}
			errs = append(errs, fmt.Errorf("sync %s: %w", a.Name(), err))
			continue
		}
		summary.Reports = append(summary.Reports, report)
	}
	summary.FinishedAt = time.Now().UTC()

	if len(errs) == 0 {
		if err := s.store.MarkLastSync(ctx, summary.FinishedAt); err != nil {
			s.config.Logger.Warn("failed to record last sync time", zap.Error(err))
		}
	}

	s.config.Logger.Info("sync pass complete",
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("failed", summary.Failed()),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int("errors", len(errs)))

	if s.OnSummary != nil {
		s.OnSummary(*summary)
	}
	return summary, errors.Join(errs...)
}

// ImportAll refreshes every collection from the server, in the same order as
// the push pass. Each collection's replacement is atomic on its own; a
// failing collection is reported and the rest still import.
func (s *Syncer) ImportAll(ctx context.Context) (int, error) {
	if s.monitor != nil && !s.monitor.IsOnline() {
		return 0, api.ErrOffline
	}

	total := 0
	var errs []error
	for _, a := range s.adapters {
		lock := s.locks[a.Name()]
		lock.Lock()
		n, err := a.ImportFromServer(ctx)
		lock.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("import %s: %w", a.Name(), err))
			continue
		}
		total += n
		s.config.Logger.Debug("imported collection",
			zap.String("entity", a.Name()), zap.Int("records", n))
	}
	return total, errors.Join(errs...)
}

// Run starts the daemon loop: an immediate pass, then periodic passes every
// SyncInterval, plus one pass each time the connection transitions from
// offline to online. Blocks until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	s.config.Logger.Info("sync daemon starting",
		zap.Duration("interval", s.config.SyncInterval))

	var transitions <-chan bool
	if s.monitor != nil {
		transitions = s.monitor.Transitions()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.pass(ctx, "startup")

		ticker := time.NewTicker(s.config.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pass(ctx, "interval")
			case d := <-s.intervalCh:
				s.config.Logger.Info("sync interval changed", zap.Duration("interval", d))
				ticker.Reset(d)
			case online, ok := <-transitions:
				if !ok {
					transitions = nil
					continue
				}
				if !online {
					s.config.Logger.Info("connection lost, queued changes will wait")
					continue
				}
				s.config.Logger.Info("connection restored, pushing queued changes")
				s.pass(ctx, "reconnect")
				if s.config.ImportOnReconnect {
					if n, err := s.ImportAll(ctx); err != nil {
						s.config.Logger.Warn("post-reconnect import failed", zap.Error(err))
					} else {
						s.config.Logger.Info("post-reconnect import complete", zap.Int("records", n))
					}
				}
			}
		}
	}()

	<-ctx.Done()
	s.wg.Wait()
	s.config.Logger.Info("sync daemon stopped")
	return nil
}

// pass runs one SyncAll and logs the outcome. Offline is expected, not an
// error.
func (s *Syncer) pass(ctx context.Context, trigger string) {
	if _, err := s.SyncAll(ctx); err != nil {
		if errors.Is(err, api.ErrOffline) {
			s.config.Logger.Debug("sync pass skipped, offline",
				zap.String("trigger", trigger))
			return
		}
		s.config.Logger.Warn("sync pass had errors",
			zap.String("trigger", trigger), zap.Error(err))
	}
}
