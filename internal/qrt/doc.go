// Package qrt is the protocol engine for a capture server's real-time
// interface.
//
// One Engine owns one connection at a time. Its reader goroutine extracts
// frames, routes request/response frames through the correlation queue,
// resolves event waits and decodes Data frames. Everything the caller did
// not ask for (greeting, streamed frames, unclaimed events) goes to a Sink.
package qrt
