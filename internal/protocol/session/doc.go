// Package session owns per-connection request/response bookkeeping.
//
// Ownership boundary:
// - FIFO correlation of responses to sent requests
// - event wait registry with per-entry deadlines
// - connection timing and backoff configuration
//
// Nothing here touches the socket. The engine in internal/qrt drives both
// structures from its read loop and its senders.
package session
