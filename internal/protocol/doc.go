// Package protocol owns the RT wire contract shared by every layer.
//
// Ownership boundary:
// - packet type and event code enumerations
// - error taxonomy (transport, framing, decode, state, timeout)
//
// Subpackages:
// - frame: header codec and stream reassembly
// - packet: Data-frame component decoding
// - session: request correlation and event waits
package protocol
