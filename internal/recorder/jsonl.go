// Package recorder writes streamed responses to JSON Lines files.
package recorder

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/danmuck/qrtctl/internal/observability"
	"github.com/danmuck/qrtctl/internal/qrt"
)

type JSONLWriter struct {
	enc      *json.Encoder
	onlyData bool
	written  int
}

type jsonRecord struct {
	TS       string       `json:"ts"`
	Session  string       `json:"session,omitempty"`
	Response qrt.Response `json:"response"`
}

type Option func(*JSONLWriter)

// DataOnly skips everything except decoded Data frames.
func DataOnly() Option {
	return func(j *JSONLWriter) { j.onlyData = true }
}

func NewJSONLWriter(w io.Writer, opts ...Option) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	j := &JSONLWriter{enc: enc}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Write encodes one response as a line.
func (j *JSONLWriter) Write(session string, r qrt.Response) error {
	if j.onlyData && r.Packet == nil {
		return nil
	}
	ts := r.Received
	if ts.IsZero() {
		ts = time.Now()
	}
	if err := j.enc.Encode(jsonRecord{
		TS:       ts.UTC().Format(time.RFC3339Nano),
		Session:  session,
		Response: r,
	}); err != nil {
		return err
	}
	j.written++
	observability.RecordRecordedFrame()
	return nil
}

// Consume writes responses from in until it closes, ctx ends or a write
// fails. session is asked for the id on every line so records follow
// reconnects; it may be nil.
func (j *JSONLWriter) Consume(ctx context.Context, session func() string, in <-chan qrt.Response) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				return nil
			}
			id := ""
			if session != nil {
				id = session()
			}
			if err := j.Write(id, r); err != nil {
				return err
			}
		}
	}
}

// Written counts lines written so far.
func (j *JSONLWriter) Written() int { return j.written }
