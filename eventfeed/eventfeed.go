// Package eventfeed streams Domain Events to operator dashboards over
// WebSocket. The feed is one-way: clients receive a connection_ack on
// connect and event_notification frames after that; anything they send is
// discarded.
package eventfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/snere-rewrite/errors"
	"github.com/AaronLay10/snere-rewrite/event"
	"github.com/AaronLay10/snere-rewrite/metric"
	"github.com/AaronLay10/snere-rewrite/service"
)

const serviceName = "event-feed"

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Frame is the wire format sent to feed clients
type Frame struct {
	Type      string          `json:"type"`
	Event     json.RawMessage `json:"event,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Frame types
const (
	FrameConnectionAck     = "connection_ack"
	FrameEventNotification = "event_notification"
)

// Subscriber is the event bus surface the feed consumes
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, string, []byte)) error
}

// Service broadcasts domain events to connected WebSocket clients
type Service struct {
	*service.BaseService

	bus  Subscriber
	addr string

	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client is one connected dashboard. Writes are serialized per connection;
// gorilla/websocket allows at most one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(frame)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// New creates the feed service. An empty addr disables the built-in listener
// so the handler can be mounted elsewhere.
func New(bus Subscriber, addr string, metrics *metric.MetricsRegistry, baseOpts ...service.Option) *Service {
	opts := baseOpts
	if metrics != nil {
		opts = append(opts, service.WithMetrics(metrics))
	}

	return &Service{
		BaseService: service.NewBaseService(serviceName, opts...),
		bus:         bus,
		addr:        addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboards connect from arbitrary origins on the LAN
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Start subscribes to the domain subject and, when configured, serves the
// WebSocket endpoint
func (s *Service) Start(ctx context.Context) error {
	if err := s.BaseService.Start(ctx); err != nil {
		return err
	}

	if err := s.bus.Subscribe(ctx, event.DomainSubject, s.onEvent); err != nil {
		return errors.Wrap(err, "EventFeed", "Start", "subscribe "+event.DomainSubject)
	}

	if s.addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", s.Handler())
		s.server = &http.Server{Addr: s.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			s.Logger().Info("feed listening", "addr", s.addr)
			if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.Logger().Error("feed listener failed", "error", err)
			}
		}()
	}

	return nil
}

// Stop disconnects all clients and stops the listener
func (s *Service) Stop(timeout time.Duration) error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}

	s.mu.Lock()
	for c := range s.clients {
		_ = c.conn.Close()
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	return s.BaseService.Stop(timeout)
}

// Handler returns the WebSocket upgrade handler
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

// ClientCount returns the number of connected clients
func (s *Service) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Service) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger().Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn}
	if err := c.send(Frame{Type: FrameConnectionAck, Timestamp: time.Now().UTC()}); err != nil {
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.Logger().Info("feed client connected", "remote", r.RemoteAddr)

	go s.readLoop(c)
	go s.pingLoop(c)
}

// readLoop discards inbound frames and notices when the peer goes away
func (s *Service) readLoop(c *client) {
	defer s.evict(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	c.conn.SetReadLimit(1024)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Service) pingLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !s.connected(c) {
			return
		}
		if err := c.ping(); err != nil {
			s.evict(c)
			return
		}
	}
}

func (s *Service) connected(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clients[c]
	return ok
}

// evict closes a client and removes it from the broadcast set
func (s *Service) evict(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()

	if ok {
		_ = c.conn.Close()
		s.Logger().Info("feed client disconnected")
	}
}

// onEvent fans one domain event out to every connected client. Clients that
// fail a write are evicted rather than allowed to stall the feed.
func (s *Service) onEvent(_ context.Context, _ string, data []byte) {
	if !json.Valid(data) {
		return
	}

	frame := Frame{
		Type:      FrameEventNotification,
		Event:     json.RawMessage(data),
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.send(frame); err != nil {
			s.Logger().Warn("feed write failed, evicting client", "error", err)
			s.evict(c)
		}
	}
	if len(targets) > 0 {
		s.RecordActivity()
	}
}
