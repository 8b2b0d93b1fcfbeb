package protocol

import (
	"context"
	"errors"
)

var (
	// ErrTransport covers dial, refuse and reset failures. Fatal to the connection.
	ErrTransport = errors.New("protocol: transport failure")
	// ErrFraming marks an impossible frame header. Fatal to the connection.
	ErrFraming = errors.New("protocol: stream framing corrupted")
	// ErrDecode marks a malformed Data frame. Only that frame is dropped.
	ErrDecode = errors.New("protocol: malformed data frame")
	// ErrNotConnected is returned synchronously for sends outside the Connected state.
	ErrNotConnected = errors.New("protocol: not connected")
	// ErrAlreadyConnected is returned by connect outside the Disconnected state.
	ErrAlreadyConnected = errors.New("protocol: already connected")
	// ErrTimeout resolves a single event wait whose deadline passed.
	ErrTimeout = errors.New("protocol: event wait timed out")
	// ErrConnectionClosed resolves every pending request and wait on teardown.
	ErrConnectionClosed = errors.New("protocol: connection closed")
	// ErrServer wraps the text of a server Error frame.
	ErrServer = errors.New("protocol: server error")
)

// ErrorKind classifies errors for handling and metrics labels.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransport
	KindFraming
	KindDecode
	KindProtocolState
	KindTimeout
	KindClosed
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindDecode:
		return "decode"
	case KindProtocolState:
		return "protocol_state"
	case KindTimeout:
		return "timeout"
	case KindClosed:
		return "closed"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Classify maps err onto the taxonomy. An expired context counts as a
// timeout. Framing is checked before transport
// because a framing failure is reported through the same teardown path.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrFraming):
		return KindFraming
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrAlreadyConnected):
		return KindProtocolState
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrConnectionClosed):
		return KindClosed
	case errors.Is(err, ErrServer):
		return KindServer
	default:
		return KindUnknown
	}
}

// IsFatal reports whether err tears down the connection.
func IsFatal(err error) bool {
	switch Classify(err) {
	case KindTransport, KindFraming:
		return true
	default:
		return false
	}
}
