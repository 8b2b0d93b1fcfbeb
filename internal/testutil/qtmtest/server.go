// Package qtmtest runs an in-process fake capture server for client tests.
package qtmtest

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/protocol/frame"
)

// Greeting is the text real servers send right after accept.
const Greeting = "QTM RT Interface connected"

const ioTimeout = 2 * time.Second

// Server listens on 127.0.0.1 with an ephemeral port. It is closed by t.Cleanup.
type Server struct {
	t  testing.TB
	ln net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

func Start(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{t: t, ln: ln}
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Accept waits for one client. When greet is true the peer sends Greeting
// as a Command frame first.
func (s *Server) Accept(greet bool) *Peer {
	s.t.Helper()
	if tl, ok := s.ln.(*net.TCPListener); ok {
		_ = tl.SetDeadline(time.Now().Add(ioTimeout))
	}
	conn, err := s.ln.Accept()
	if err != nil {
		s.t.Fatalf("accept: %v", err)
	}
	p := s.track(conn)
	if greet {
		p.WriteText(protocol.PacketCommand, Greeting)
	}
	return p
}

// AcceptAsync accepts in the background; the returned channel yields the peer.
// Use it when the client blocks in Connect until the greeting arrives.
func (s *Server) AcceptAsync(greet bool) <-chan *Peer {
	var first []byte
	if greet {
		first, _ = frame.EncodeText(protocol.PacketCommand, Greeting)
	}
	return s.AcceptAsyncWith(first)
}

// AcceptAsyncWith is AcceptAsync with arbitrary first bytes, e.g. an Error
// frame refusing the client.
func (s *Server) AcceptAsyncWith(first []byte) <-chan *Peer {
	ch := make(chan *Peer, 1)
	go func() {
		conn, err := s.ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		p := s.track(conn)
		if len(first) > 0 {
			_, _ = conn.Write(first)
		}
		ch <- p
	}()
	return ch
}

func (s *Server) track(conn net.Conn) *Peer {
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	return &Peer{t: s.t, conn: conn, r: bufio.NewReader(conn)}
}

// Close stops listening and closes every accepted connection.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
}

// Peer is the server side of one accepted connection.
type Peer struct {
	t    testing.TB
	conn net.Conn
	r    *bufio.Reader
}

// ReadFrame reads one client frame or fails the test.
func (p *Peer) ReadFrame() frame.Frame {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	f, err := frame.ReadFrame(p.r, frame.DefaultLimits())
	if err != nil {
		p.t.Fatalf("peer read frame: %v", err)
	}
	return f
}

// ReadText reads one frame and returns its text body.
func (p *Peer) ReadText() (protocol.PacketType, string) {
	p.t.Helper()
	f := p.ReadFrame()
	return f.Type, frame.Text(f.Body)
}

func (p *Peer) WriteText(t protocol.PacketType, text string) {
	p.t.Helper()
	raw, err := frame.EncodeText(t, text)
	if err != nil {
		p.t.Fatalf("encode text: %v", err)
	}
	p.WriteRaw(raw)
}

func (p *Peer) WriteEvent(code protocol.EventCode) {
	p.t.Helper()
	raw, err := frame.Encode(protocol.PacketEvent, frame.EncodeEvent(code))
	if err != nil {
		p.t.Fatalf("encode event: %v", err)
	}
	p.WriteRaw(raw)
}

func (p *Peer) WriteData(body []byte) {
	p.t.Helper()
	raw, err := frame.Encode(protocol.PacketData, body)
	if err != nil {
		p.t.Fatalf("encode data: %v", err)
	}
	p.WriteRaw(raw)
}

// WriteRaw writes bytes as-is, for split and corrupt stream cases.
func (p *Peer) WriteRaw(raw []byte) {
	p.t.Helper()
	_ = p.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	if _, err := p.conn.Write(raw); err != nil {
		p.t.Fatalf("peer write: %v", err)
	}
}

func (p *Peer) Close() { _ = p.conn.Close() }
