package qrt

import (
	"fmt"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/protocol/frame"
	"github.com/danmuck/qrtctl/internal/protocol/packet"
	"github.com/danmuck/qrtctl/internal/protocol/session"
	"github.com/rs/zerolog"
)

type route int

const (
	routeIgnore route = iota
	routeCorrelated
	routeEvent
	routeData
)

func routeFor(t protocol.PacketType) route {
	switch {
	case t.IsResponse():
		return routeCorrelated
	case t == protocol.PacketEvent:
		return routeEvent
	case t == protocol.PacketData:
		return routeData
	default:
		return routeIgnore
	}
}

// dispatcher routes frames for one connection. handle is only called from
// that connection's reader goroutine.
type dispatcher struct {
	queue    *session.CorrelationQueue[Response]
	waiter   *session.EventWaiter
	sink     Sink
	observer Observer
	log      zerolog.Logger
	now      func() time.Time
}

func (d *dispatcher) handle(f frame.Frame) {
	d.observer.FrameReceived(f.Type, int(f.Size))

	switch routeFor(f.Type) {
	case routeCorrelated:
		d.correlated(f)
	case routeEvent:
		d.event(f)
	case routeData:
		d.data(f)
	default:
		d.log.Debug().Stringer("type", f.Type).Uint32("size", f.Size).Msg("ignoring frame")
	}
}

func (d *dispatcher) correlated(f frame.Frame) {
	resp := Response{Type: f.Type, Text: frame.Text(f.Body), Received: d.now()}
	if f.Type == protocol.PacketError {
		resp.Err = fmt.Errorf("%w: %s", protocol.ErrServer, resp.Text)
	}
	if !d.queue.Deliver(resp) {
		d.sink.Deliver(resp)
	}
	d.observer.PendingChanged(d.queue.Len(), d.waiter.Len())
}

func (d *dispatcher) event(f frame.Frame) {
	code, err := frame.Event(f.Body)
	if err != nil {
		d.log.Warn().Err(err).Msg("bad event frame")
		d.observer.DecodeFailed(err)
		d.sink.Deliver(Response{Type: f.Type, Err: err, Received: d.now()})
		return
	}
	claimed := d.waiter.Resolve(code)
	d.observer.EventObserved(code, claimed)
	d.log.Debug().Stringer("event", code).Int("claimed", claimed).Msg("event")
	if claimed == 0 {
		d.sink.Deliver(Response{Type: f.Type, Event: code, Received: d.now()})
	}
	d.observer.PendingChanged(d.queue.Len(), d.waiter.Len())
}

func (d *dispatcher) data(f frame.Frame) {
	pkt, err := packet.Decode(f.Body)
	if err != nil {
		d.log.Warn().Err(err).Uint32("size", f.Size).Msg("dropping data frame")
		d.observer.DecodeFailed(err)
		d.sink.Deliver(Response{Type: f.Type, Err: err, Received: d.now()})
		return
	}
	for _, b := range pkt.Blocks {
		if !b.Kind().Known() {
			d.log.Debug().Stringer("component", b.Kind()).Uint32("frame", pkt.FrameNumber).Msg("untyped component kept raw")
		}
	}
	d.sink.Deliver(Response{Type: f.Type, Packet: pkt, Received: d.now()})
}
