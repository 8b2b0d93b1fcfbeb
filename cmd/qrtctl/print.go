package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/danmuck/qrtctl/internal/qrt"
)

// printer writes unsolicited responses as one line each. It is safe to call
// from the engine's reader goroutine.
func printer(out io.Writer) qrt.Sink {
	var mu sync.Mutex
	return qrt.SinkFunc(func(r qrt.Response) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, formatResponse(r))
	})
}

func formatResponse(r qrt.Response) string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("[%s] error: %v", r.Kind(), r.Err)
	case r.Packet != nil:
		return fmt.Sprintf("[data] frame=%d ts=%d components=%s",
			r.Packet.FrameNumber, r.Packet.Timestamp, r.Packet.Components)
	case r.Kind() == "event":
		return fmt.Sprintf("[event] %s", r.Event)
	default:
		return fmt.Sprintf("[%s] %s", r.Kind(), r.Text)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
