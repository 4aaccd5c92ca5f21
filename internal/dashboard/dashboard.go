// Package dashboard serves a local WebSocket feed of sync activity.
//
// The dashboard broadcasts sync pass results, connectivity transitions and
// per-collection status counts to connected clients, so a desk UI can show
// "3 receipts waiting to sync" without polling the database.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
	"github.com/tutordesk/tutorsync/internal/syncer"
)

// EventType discriminates dashboard messages.
type EventType string

const (
	// EventSyncPass reports a completed push pass.
	EventSyncPass EventType = "sync_pass"

	// EventConnectivity reports an online/offline transition.
	EventConnectivity EventType = "connectivity"

	// EventCounts reports per-collection pending work.
	EventCounts EventType = "counts"
)

// Event is one dashboard broadcast.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// PassData summarizes one sync pass for the wire.
type PassData struct {
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   []string       `json:"skipped,omitempty"`
	ByEntity  map[string]int `json:"byEntity,omitempty"` // entity -> succeeded
}

// ConnectivityData reports the probe result.
type ConnectivityData struct {
	Online bool `json:"online"`
}

// CountsData reports unpushed work per collection.
type CountsData struct {
	Waiting map[string]int `json:"waiting"`
	Pending map[string]int `json:"pendingDelete"`
}

// Server manages WebSocket clients and the /status endpoint.
type Server struct {
	addr     string
	store    *store.Store
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

// NewServer builds a dashboard bound to addr (e.g. "127.0.0.1:7630"). The
// store is queried for status counts on demand.
func NewServer(addr string, st *store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		store:   st,
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan Event, 100),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Start listens and serves until Stop. Returns once the listener is up.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(2)
	go s.broadcastLoop()
	go func() {
		defer s.wg.Done()
		s.logger.Info("dashboard listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("dashboard server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop closes all clients and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down dashboard: %w", err)
	}
	s.wg.Wait()
	return nil
}

// Addr returns the bound address, useful when addr was ":0".
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// PublishSummary converts a sync summary to a broadcast. Wire it to
// Syncer.OnSummary; it never blocks.
func (s *Server) PublishSummary(sum syncer.Summary) {
	byEntity := make(map[string]int, len(sum.Reports))
	for _, r := range sum.Reports {
		byEntity[r.Entity] = r.Succeeded
	}
	s.publish(EventSyncPass, PassData{
		StartedAt: sum.StartedAt,
		Duration:  sum.FinishedAt.Sub(sum.StartedAt),
		Succeeded: sum.Succeeded(),
		Failed:    sum.Failed(),
		Skipped:   sum.Skipped,
		ByEntity:  byEntity,
	})
	// Counts change after every pass; push the fresh ones too.
	if counts, err := s.collectCounts(s.ctx); err == nil {
		s.publish(EventCounts, counts)
	}
}

// PublishConnectivity broadcasts an online/offline transition. Wire it to
// the connectivity monitor's transition channel.
func (s *Server) PublishConnectivity(online bool) {
	s.publish(EventConnectivity, ConnectivityData{Online: online})
}

func (s *Server) publish(typ EventType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("failed to marshal dashboard event", zap.Error(err))
		return
	}
	ev := Event{Type: typ, Timestamp: time.Now().UTC(), Data: raw}
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("dashboard event queue full, dropping event",
			zap.String("type", string(typ)))
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}

			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // local-only listener
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug("dashboard client connected", zap.Int("clients", n))

	// New clients get the current counts immediately.
	if counts, err := s.collectCounts(r.Context()); err == nil {
		if raw, err := json.Marshal(counts); err == nil {
			ev := Event{Type: EventCounts, Timestamp: time.Now().UTC(), Data: raw}
			if data, err := json.Marshal(ev); err == nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, data)
				cancel()
			}
		}
	}

	go s.readLoop(conn)
}

// readLoop drains client frames so pings work; clients are listen-only.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, exists := s.clients[conn]
	if exists {
		delete(s.clients, conn)
	}
	n := len(s.clients)
	s.clientsMu.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Debug("dashboard client disconnected", zap.Int("clients", n))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.collectCounts(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(counts)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) collectCounts(ctx context.Context) (CountsData, error) {
	counts := CountsData{
		Waiting: make(map[string]int),
		Pending: make(map[string]int),
	}
	for name, count := range s.store.StatusCounts() {
		w, err := count(ctx, model.StatusWaiting)
		if err != nil {
			return counts, fmt.Errorf("failed to count %s: %w", name, err)
		}
		p, err := count(ctx, model.StatusPendingDelete)
		if err != nil {
			return counts, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts.Waiting[name] = w
		counts.Pending[name] = p
	}
	return counts, nil
}
