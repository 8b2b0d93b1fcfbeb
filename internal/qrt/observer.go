package qrt

import "github.com/danmuck/qrtctl/internal/protocol"

// Observer receives engine telemetry. Calls are synchronous on the engine's
// goroutines, so implementations must be cheap and safe for concurrent use.
type Observer interface {
	FrameReceived(t protocol.PacketType, size int)
	DecodeFailed(err error)
	EventObserved(code protocol.EventCode, claimed int)
	StateChanged(s State)
	PendingChanged(requests, waiters int)
	// Disconnected reports why a connection ended; cause is nil for a
	// local Disconnect.
	Disconnected(cause error)
}

type nopObserver struct{}

func (nopObserver) FrameReceived(protocol.PacketType, int) {}
func (nopObserver) DecodeFailed(error)                     {}
func (nopObserver) EventObserved(protocol.EventCode, int)  {}
func (nopObserver) StateChanged(State)                     {}
func (nopObserver) PendingChanged(int, int)                {}
func (nopObserver) Disconnected(error)                     {}
