package qrt

import (
	"encoding/json"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/protocol/packet"
)

// Response is one inbound frame after dispatch. Exactly one of Text, Event
// or Packet is meaningful for a given Type. Err is set for server Error
// frames, undecodable frames and connection teardown.
type Response struct {
	Type     protocol.PacketType
	Text     string
	Event    protocol.EventCode
	Packet   *packet.Packet
	Greeting bool
	Err      error
	Received time.Time
}

// Kind is the discriminator used in JSON output.
func (r Response) Kind() string {
	if r.Greeting {
		return "greeting"
	}
	return r.Type.String()
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind     string         `json:"kind"`
		Received time.Time      `json:"received"`
		Text     string         `json:"text,omitempty"`
		Event    string         `json:"event,omitempty"`
		Packet   *packet.Packet `json:"packet,omitempty"`
		Error    string         `json:"error,omitempty"`
	}{
		Kind:     r.Kind(),
		Received: r.Received,
		Text:     r.Text,
		Packet:   r.Packet,
	}
	if r.Type == protocol.PacketEvent && r.Err == nil {
		out.Event = r.Event.String()
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Sink receives unsolicited responses. Deliver is called from the engine's
// reader goroutine and must not block.
type Sink interface {
	Deliver(Response)
}

type SinkFunc func(Response)

func (f SinkFunc) Deliver(r Response) { f(r) }

type discardSink struct{}

func (discardSink) Deliver(Response) {}
