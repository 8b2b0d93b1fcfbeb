package qrt

import (
	"encoding/json"
	"testing"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	testlog.Start(t)

	h := NewHub()
	a, cancelA := h.Subscribe()
	b, cancelB := h.SubscribeWithBuffer(1)
	defer cancelA()
	defer cancelB()
	require.Equal(t, 2, h.Subscribers())

	h.Deliver(Response{Type: protocol.PacketCommand, Text: "one"})
	require.Equal(t, "one", (<-a).Text)
	require.Equal(t, "one", (<-b).Text)
	require.Equal(t, uint64(2), h.Delivered())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	testlog.Start(t)

	h := NewHub(WithClientBuffer(1))
	ch, cancel := h.Subscribe()
	h.Deliver(Response{Text: "kept"})
	h.Deliver(Response{Text: "dropped"})
	require.Equal(t, uint64(1), h.Dropped())
	require.Equal(t, "kept", (<-ch).Text)

	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)
	require.Zero(t, h.Subscribers())
}

func TestHubClose(t *testing.T) {
	testlog.Start(t)

	h := NewHub()
	ch, cancel := h.Subscribe()
	h.Close()
	cancel()
	_, open := <-ch
	require.False(t, open)

	late, _ := h.Subscribe()
	_, open = <-late
	require.False(t, open)
	h.Deliver(Response{Text: "nobody"})
}

func TestResponseJSON(t *testing.T) {
	raw, err := json.Marshal(Response{Type: protocol.PacketEvent, Event: protocol.EventCaptureStarted})
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "event", out["kind"])
	require.Equal(t, "capture_started", out["event"])

	raw, err = json.Marshal(Response{Type: protocol.PacketCommand, Text: "hi", Greeting: true})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "greeting", out["kind"])
}
