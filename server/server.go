// Package server exposes tracked job state over websockets: every job
// update is broadcast to connected clients, and clients can list, inspect,
// and cancel jobs over the same connection.
package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/track"
)

// Server fans tracker events out to websocket clients.
type Server struct {
	cfg     config.ServerConfig
	tracker *track.Tracker
	log     *zap.SugaredLogger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan track.Job

	addr    string
	httpSrv *http.Server
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a server around the tracker. Start binds the listener.
func New(cfg config.ServerConfig, tracker *track.Tracker, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:        cfg,
		tracker:    tracker,
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Start binds the configured address and begins serving. Returns once the
// listener is bound; serving continues in the background until Stop.
func (s *Server) Start() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.events = s.tracker.Subscribe()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "bind %s", s.cfg.Addr)
	}
	s.addr = listener.Addr().String()
	s.httpSrv = &http.Server{Handler: mux}

	s.wg.Add(2)
	go s.run()
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("Websocket server stopped", "error", err)
		}
	}()

	s.log.Infow("Websocket server listening", "addr", s.addr)
	return nil
}

// Addr returns the bound address, for callers that configured port 0.
func (s *Server) Addr() string {
	if s.addr == "" {
		return s.cfg.Addr
	}
	return s.addr
}

// Stop shuts the server down: no new connections, existing clients closed.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.tracker.Unsubscribe(s.events)

	err := s.httpSrv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// run is the hub loop: client registration and event fan-out happen on one
// goroutine so the client set needs no lock.
func (s *Server) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			for client := range s.clients {
				client.close()
			}
			return

		case client := <-s.register:
			s.clients[client] = true
			s.log.Debugw("Client connected", "client_id", client.id, "clients", len(s.clients))

		case client := <-s.unregister:
			if s.clients[client] {
				delete(s.clients, client)
				client.close()
			}
			s.log.Debugw("Client disconnected", "client_id", client.id, "clients", len(s.clients))

		case job, ok := <-s.events:
			if !ok {
				return
			}
			s.broadcastJobUpdate(&job)
		}
	}
}

// broadcastJobUpdate sends a job update to every connected client. Slow
// clients drop updates rather than stall the hub.
func (s *Server) broadcastJobUpdate(job *track.Job) {
	msg := JobUpdateMessage{
		Type:      "job_update",
		Job:       job,
		Timestamp: time.Now().Unix(),
	}

	sent := 0
	for client := range s.clients {
		select {
		case client.send <- msg:
			sent++
		default:
			s.log.Warnw("Client send channel full, dropping job update",
				"client_id", client.id, "job_id", job.ID)
		}
	}
	s.log.Debugw("Broadcast job update",
		"job_id", job.ID, "status", job.Status, "clients", sent)
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("Websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan any, clientSendBuffer),
		id:     uuid.NewString()[:8],
	}
	s.register <- client

	go client.writePump()
	go client.readPump()
}

// checkOrigin validates the Origin header against the configured allow list.
// Requests without an Origin header (non-browser clients) are allowed, as is
// localhost when no origins are configured. Prefix matching covers any port.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
