package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sshping/sshping/internal/probe"
	"github.com/sshping/sshping/internal/util"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// progressMessage mirrors probe.Progress on the wire.
type progressMessage struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Current int64  `json:"current"`
	Total   int64  `json:"total"`
	Detail  string `json:"detail,omitempty"`
}

type reportMessage struct {
	Type   string        `json:"type"`
	Report *probe.Report `json:"report"`
}

// Server exposes the state of a running measurement over HTTP. GET /status
// returns the latest progress as JSON; /live upgrades to a websocket that
// streams every update.
type Server struct {
	addr   string
	runID  string
	hub    *Hub
	logger util.Logger
	server *http.Server

	mu     sync.Mutex
	latest *progressMessage
	report *probe.Report
}

func NewServer(addr, runID string, hub *Hub, logger util.Logger) *Server {
	s := &Server{addr: addr, runID: runID, hub: hub, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/live", s.handleLive)
	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("status server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	}
}

// Observe is a probe.ProgressFunc that records and broadcasts each update.
func (s *Server) Observe(p probe.Progress) {
	msg := &progressMessage{
		Type:    "progress",
		RunID:   s.runID,
		Stage:   p.Stage.String(),
		Current: p.Current,
		Total:   p.Total,
		Detail:  p.Detail,
	}
	s.mu.Lock()
	s.latest = msg
	s.mu.Unlock()
	s.hub.Broadcast(msg)
}

// Publish records and broadcasts the final report.
func (s *Server) Publish(r *probe.Report) {
	s.mu.Lock()
	s.report = r
	s.mu.Unlock()
	s.hub.Broadcast(reportMessage{Type: "report", Report: r})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	var payload any
	switch {
	case s.report != nil:
		payload = reportMessage{Type: "report", Report: s.report}
	case s.latest != nil:
		payload = s.latest
	default:
		payload = progressMessage{Type: "progress", RunID: s.runID, Stage: "idle"}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	c := &client{send: make(chan []byte, 32)}
	s.hub.register(c)

	done := make(chan struct{})
	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			close(done)
			s.hub.unregister(c)
			_ = conn.Close()
		})
	}

	// Send the latest state so a late joiner is not blind until the next
	// update.
	s.mu.Lock()
	if s.latest != nil {
		if data, err := json.Marshal(s.latest); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}
	s.mu.Unlock()

	go func() {
		defer cleanup()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer cleanup()
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case data, ok := <-c.send:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		}
	}()
}
