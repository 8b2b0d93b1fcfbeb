// Package packet decodes Data-frame bodies into typed component records.
//
// A body is a 16-byte metadata block followed by component blocks. Each
// block is walked by its declared size, so unknown kinds are skipped intact
// and a malformed block never reads past its own boundary. Decoded records
// copy every byte they keep; nothing aliases the input slice.
package packet
