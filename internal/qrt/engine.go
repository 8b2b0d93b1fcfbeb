package qrt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/protocol/frame"
	"github.com/danmuck/qrtctl/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

type Option func(*Engine)

func WithConfig(cfg session.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func WithSink(s Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// Engine is safe for concurrent use. It may be reconnected after a
// disconnect; each connection gets a fresh queue, waiter and session id.
type Engine struct {
	cfg      session.Config
	log      zerolog.Logger
	observer Observer
	sink     Sink

	mu      sync.Mutex
	state   State
	conn    *conn
	lastErr error
}

// conn is one live connection. It is never reused after teardown.
type conn struct {
	id     uuid.UUID
	nc     net.Conn
	reader *frame.Reader
	queue  session.CorrelationQueue[Response]
	waiter session.EventWaiter
	disp   dispatcher

	// sendMu makes enqueue and write one step.
	sendMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		cfg:      session.DefaultConfig(),
		log:      zerolog.Nop(),
		observer: nopObserver{},
		sink:     discardSink{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.WithDefaults()
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionID identifies the current connection, or is empty when there is none.
func (e *Engine) SessionID() string {
	if c := e.active(); c != nil {
		return c.id.String()
	}
	return ""
}

func (e *Engine) RemoteAddr() string {
	if c := e.active(); c != nil {
		return c.nc.RemoteAddr().String()
	}
	return ""
}

// Pending returns outstanding correlated requests and event waits.
func (e *Engine) Pending() (requests, waiters int) {
	if c := e.active(); c != nil {
		return c.queue.Len(), c.waiter.Len()
	}
	return 0, 0
}

// Done is closed when the current connection ends. With no connection it
// returns a closed channel.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return e.conn.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Err reports why the last connection ended. It is nil after a local
// Disconnect.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Connect dials host:port and reads the server greeting. A port of 0 uses
// the configured default.
func (e *Engine) Connect(ctx context.Context, host string, port int) error {
	if port <= 0 {
		port = e.cfg.Port
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	e.mu.Lock()
	if e.state != StateDisconnected {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: state=%s", protocol.ErrAlreadyConnected, state)
	}
	e.state = StateConnecting
	e.mu.Unlock()
	e.observer.StateChanged(StateConnecting)

	c, pending, err := e.open(ctx, addr)
	if err != nil {
		e.setState(StateDisconnected)
		e.log.Warn().Err(err).Str("addr", addr).Msg("connect failed")
		return err
	}

	e.mu.Lock()
	e.conn = c
	e.state = StateConnected
	e.lastErr = nil
	e.mu.Unlock()
	e.observer.StateChanged(StateConnected)
	e.log.Info().Str("addr", addr).Str("session", c.id.String()).Msg("connected")

	go e.readLoop(c, pending)
	return nil
}

// open dials and consumes the greeting. Frames that arrived behind the
// greeting are returned for normal dispatch.
func (e *Engine) open(ctx context.Context, addr string) (*conn, []frame.Frame, error) {
	dialer := net.Dialer{Timeout: e.cfg.ConnectTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %w", protocol.ErrTransport, addr, err)
	}

	c := &conn{
		id:     uuid.New(),
		nc:     nc,
		reader: frame.NewReader(e.cfg.Limits),
		done:   make(chan struct{}),
	}
	c.disp = dispatcher{
		queue:    &c.queue,
		waiter:   &c.waiter,
		sink:     e.sink,
		observer: e.observer,
		log:      e.log.With().Str("session", c.id.String()).Logger(),
		now:      time.Now,
	}

	frames, err := e.readGreeting(ctx, c)
	if err != nil {
		_ = nc.Close()
		return nil, nil, err
	}
	if len(frames) == 0 {
		e.log.Debug().Str("addr", addr).Msg("no greeting before timeout")
		return c, nil, nil
	}

	first := frames[0]
	e.observer.FrameReceived(first.Type, int(first.Size))
	text := frame.Text(first.Body)
	if first.Type == protocol.PacketError {
		_ = nc.Close()
		return nil, nil, fmt.Errorf("%w: %s", protocol.ErrServer, text)
	}
	e.sink.Deliver(Response{Type: first.Type, Text: text, Greeting: true, Received: time.Now()})
	return c, frames[1:], nil
}

func (e *Engine) readGreeting(ctx context.Context, c *conn) ([]frame.Frame, error) {
	deadline := time.Now().Add(e.cfg.GreetingTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.nc.SetReadDeadline(deadline)
	defer c.nc.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { _ = c.nc.SetReadDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, e.cfg.ReadBufferSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			c.reader.Feed(buf[:n])
			frames, ferr := c.reader.Extract()
			if ferr != nil {
				return nil, ferr
			}
			if len(frames) > 0 {
				if !stop() {
					return nil, ctx.Err()
				}
				return frames, nil
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() && stop() {
				return nil, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: read greeting: %w", protocol.ErrTransport, err)
		}
	}
}

func (e *Engine) readLoop(c *conn, pending []frame.Frame) {
	for _, f := range pending {
		c.disp.handle(f)
	}

	buf := make([]byte, e.cfg.ReadBufferSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			c.reader.Feed(buf[:n])
			frames, ferr := c.reader.Extract()
			for _, f := range frames {
				c.disp.handle(f)
			}
			if ferr != nil {
				e.teardown(c, ferr)
				return
			}
		}
		if err != nil {
			e.teardown(c, fmt.Errorf("%w: read: %w", protocol.ErrTransport, err))
			return
		}
	}
}

// teardown ends c once. Every pending request and event wait completes
// with ErrConnectionClosed, wrapping cause when there is one.
func (e *Engine) teardown(c *conn, cause error) {
	c.closeOnce.Do(func() {
		_ = c.nc.Close()

		closed := protocol.ErrConnectionClosed
		if cause != nil {
			closed = fmt.Errorf("%w: %w", protocol.ErrConnectionClosed, cause)
		}
		requests := c.queue.Drain(Response{Err: closed, Received: time.Now()})
		waiters := c.waiter.Close(closed)

		e.mu.Lock()
		local := e.conn != c
		if !local {
			e.conn = nil
			e.state = StateDisconnected
			e.lastErr = cause
		}
		e.mu.Unlock()
		close(c.done)

		evt := e.log.Info()
		if cause != nil {
			evt = e.log.Warn().Err(cause).Stringer("kind", protocol.Classify(cause))
		}
		evt.Str("session", c.id.String()).
			Int("drained_requests", requests).
			Int("drained_waiters", waiters).
			Msg("disconnected")
		e.observer.PendingChanged(0, 0)
		e.observer.Disconnected(cause)
		e.observer.StateChanged(StateDisconnected)
	})
}

// Disconnect closes the current connection. Pending requests and waits
// complete with ErrConnectionClosed. It is a no-op when not connected.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	c := e.conn
	if c != nil {
		e.conn = nil
		e.state = StateDisconnected
		e.lastErr = nil
	}
	e.mu.Unlock()
	if c == nil {
		return nil
	}
	e.teardown(c, nil)
	return nil
}

// SendCommand writes a Command frame. fn receives the correlated response;
// with a nil fn the response goes to the sink.
func (e *Engine) SendCommand(text string, fn func(Response)) error {
	return e.send(protocol.PacketCommand, text, fn)
}

// SendXML writes an XML frame. Correlation is shared with SendCommand.
func (e *Engine) SendXML(text string, fn func(Response)) error {
	return e.send(protocol.PacketXML, text, fn)
}

func (e *Engine) send(t protocol.PacketType, text string, fn func(Response)) error {
	c := e.active()
	if c == nil {
		return fmt.Errorf("%w: send %s", protocol.ErrNotConnected, t)
	}
	raw, err := frame.EncodeText(t, text)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	if !c.queue.Enqueue(fn) {
		c.sendMu.Unlock()
		return fmt.Errorf("%w: send %s", protocol.ErrNotConnected, t)
	}
	_ = c.nc.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
	if _, err := c.nc.Write(raw); err != nil {
		c.queue.DropTail()
		c.sendMu.Unlock()
		// teardown runs drained callbacks, which may send.
		werr := fmt.Errorf("%w: write %s: %w", protocol.ErrTransport, t, err)
		e.teardown(c, werr)
		return werr
	}
	c.sendMu.Unlock()
	e.log.Debug().Stringer("type", t).Int("size", len(raw)).Msg("sent")
	e.observer.PendingChanged(c.queue.Len(), c.waiter.Len())
	return nil
}

// Command sends text and waits for its correlated response. A server Error
// frame is returned as an error wrapping protocol.ErrServer.
func (e *Engine) Command(ctx context.Context, text string) (Response, error) {
	return e.roundTrip(ctx, protocol.PacketCommand, text)
}

func (e *Engine) XML(ctx context.Context, text string) (Response, error) {
	return e.roundTrip(ctx, protocol.PacketXML, text)
}

func (e *Engine) roundTrip(ctx context.Context, t protocol.PacketType, text string) (Response, error) {
	ch := make(chan Response, 1)
	if err := e.send(t, text, func(r Response) { ch <- r }); err != nil {
		return Response{}, err
	}
	select {
	case r := <-ch:
		return r, r.Err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// WaitEvent registers an event wait without blocking. wanted may be
// protocol.AnyEvent. A non-positive timeout uses the configured default.
func (e *Engine) WaitEvent(wanted protocol.EventCode, timeout time.Duration) *session.EventWait {
	c := e.active()
	if c == nil {
		return session.FailedWait(wanted, fmt.Errorf("%w: await %s", protocol.ErrNotConnected, wanted))
	}
	if timeout <= 0 {
		timeout = e.cfg.EventTimeout
	}
	w := c.waiter.Register(wanted, timeout)
	e.observer.PendingChanged(c.queue.Len(), c.waiter.Len())
	return w
}

// AwaitEvent blocks until a matching event, the timeout, or ctx ends.
func (e *Engine) AwaitEvent(ctx context.Context, wanted protocol.EventCode, timeout time.Duration) (protocol.EventCode, error) {
	w := e.WaitEvent(wanted, timeout)
	select {
	case res := <-w.Done():
		return res.Event, res.Err
	case <-ctx.Done():
		if w.Cancel(ctx.Err()) {
			return 0, ctx.Err()
		}
		res := w.Result()
		return res.Event, res.Err
	}
}

func (e *Engine) active() *conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateConnected {
		return nil
	}
	return e.conn
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.observer.StateChanged(s)
}
