// Package netwatch is the connectivity oracle for the sync engine.
//
// It reports the current online/offline state, lets callers block until
// connectivity returns, and emits exactly one notification per state
// transition. The orchestrator wires the offline-to-online transition to a
// full sync; emitting per-transition rather than per-probe is what prevents
// a sync storm while the link stays up.
package netwatch

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Probe reports whether the remote API is reachable right now.
type Probe func(ctx context.Context) bool

// Config holds monitor configuration.
type Config struct {
	// Interval between reachability probes.
	Interval time.Duration

	// Timeout for a single probe request.
	Timeout time.Duration

	// Probe overrides the default HTTP reachability check when set.
	Probe Probe

	// Logger for monitor activity.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
		Logger:   zap.NewNop(),
	}
}

// Monitor tracks connectivity to one probe URL.
type Monitor struct {
	probeURL string
	config   *Config
	client   *http.Client

	online atomic.Bool

	mu      sync.Mutex
	subs    []chan bool
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor probing the given URL with default configuration.
func New(probeURL string) *Monitor {
	return NewWithConfig(probeURL, DefaultConfig())
}

// NewWithConfig creates a monitor with custom configuration.
func NewWithConfig(probeURL string, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Monitor{
		probeURL: probeURL,
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
	}
}

// Start begins background probing. It probes once synchronously so IsOnline
// reflects reality immediately, then keeps probing on the configured interval
// until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.SetOnline(m.probe(ctx))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SetOnline(m.probe(ctx))
			}
		}
	}()
}

// Stop shuts down background probing and waits for it to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// IsOnline reports the last observed connectivity state.
func (m *Monitor) IsOnline() bool { return m.online.Load() }

// ProbeOnce performs a single synchronous reachability check, records the
// observation, and returns it. One-shot commands use this instead of
// Start/Stop when they only need the current state.
func (m *Monitor) ProbeOnce(ctx context.Context) bool {
	online := m.probe(ctx)
	m.SetOnline(online)
	return online
}

// SetOnline records a connectivity observation. On a state change, every
// subscriber is notified exactly once.
func (m *Monitor) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}

	m.config.Logger.Info("connectivity changed", zap.Bool("online", online))

	m.mu.Lock()
	subs := make([]chan bool, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- online:
		default:
			// Subscriber is behind; it will observe the state on its next read.
		}
	}
}

// Transitions returns a channel receiving one value per connectivity change:
// true for offline-to-online, false for the reverse.
func (m *Monitor) Transitions() <-chan bool {
	ch := make(chan bool, 8)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// WaitOnline blocks until the monitor observes connectivity or ctx ends.
func (m *Monitor) WaitOnline(ctx context.Context) error {
	if m.IsOnline() {
		return nil
	}
	ch := m.Transitions()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online := <-ch:
			if online {
				return nil
			}
		}
	}
}

// probe performs the default reachability check: any HTTP response from the
// probe URL counts as online, a transport failure counts as offline.
func (m *Monitor) probe(ctx context.Context) bool {
	if m.config.Probe != nil {
		return m.config.Probe(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
