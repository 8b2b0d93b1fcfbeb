// Package bridge serves engine responses to websocket clients as JSON text
// messages.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/qrtctl/internal/observability"
	"github.com/danmuck/qrtctl/internal/qrt"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	OpHello  = "hello"
	OpFilter = "filter"

	writeWait = 5 * time.Second
)

// HelloMsg is the first message on every connection.
type HelloMsg struct {
	Op      string   `json:"op"`
	Name    string   `json:"name"`
	Session string   `json:"session,omitempty"`
	Kinds   []string `json:"kinds"`
}

// FilterMsg narrows which response kinds a client receives. An empty list
// restores everything.
type FilterMsg struct {
	Op    string   `json:"op"`
	Kinds []string `json:"kinds"`
}

type Config struct {
	Name    string
	SendBuf int
	// Session reports the current engine session id for HelloMsg.
	Session func() string
}

func DefaultConfig() Config {
	return Config{Name: "qrtctl", SendBuf: 64}
}

type Server struct {
	cfg      Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
	clients  map[*client]struct{}
	mu       sync.RWMutex
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	kinds  map[string]bool
	closed bool
	mu     sync.RWMutex
	once   sync.Once
}

func NewServer(cfg Config, log zerolog.Logger) *Server {
	defaults := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = defaults.SendBuf
	}
	return &Server{
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Run broadcasts responses from sub until it closes or ctx ends, then
// disconnects every client.
func (s *Server) Run(ctx context.Context, sub <-chan qrt.Response) {
	defer s.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-sub:
			if !ok {
				return
			}
			s.Broadcast(r)
		}
	}
}

func (s *Server) Broadcast(r qrt.Response) {
	msg, err := json.Marshal(r)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", r.Kind()).Msg("bridge encode failed")
		return
	}
	kind := r.Kind()
	for _, c := range s.snapshotClients() {
		if !c.wants(kind) {
			continue
		}
		if !c.trySend(msg) {
			observability.RecordStreamDropped()
		}
	}
}

func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := newClient(conn, s.cfg.SendBuf)
	hello := HelloMsg{Op: OpHello, Name: s.cfg.Name, Kinds: kindNames()}
	if s.cfg.Session != nil {
		hello.Session = s.cfg.Session()
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		c.close()
		return
	}
	s.addClient(c)
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("stream client connected")

	go c.writeLoop()
	c.readLoop()
	c.close()
	s.removeClient(c)
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("stream client disconnected")
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	observability.RecordStreamClients(n)
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	observability.RecordStreamClients(n)
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}

func (s *Server) closeAll() {
	for _, c := range s.snapshotClients() {
		c.close()
	}
}

func kindNames() []string {
	return []string{"greeting", "command", "xml", "error", "event", "data"}
}

func newClient(conn *websocket.Conn, sendBuf int) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuf),
	}
}

func (c *client) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg FilterMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Op != OpFilter {
			continue
		}
		c.setKinds(msg.Kinds)
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

// trySend queues msg without blocking. It reports false when the message
// was dropped.
func (c *client) trySend(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) setKinds(kinds []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(kinds) == 0 {
		c.kinds = nil
		return
	}
	c.kinds = make(map[string]bool, len(kinds))
	for _, k := range kinds {
		c.kinds[k] = true
	}
}

func (c *client) wants(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kinds == nil || c.kinds[kind]
}

func (c *client) close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}
