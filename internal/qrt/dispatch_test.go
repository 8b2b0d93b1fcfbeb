package qrt

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/protocol/frame"
	"github.com/danmuck/qrtctl/internal/protocol/packet"
	"github.com/danmuck/qrtctl/internal/protocol/session"
	"github.com/danmuck/qrtctl/internal/testutil/qtmtest"
	"github.com/danmuck/qrtctl/internal/testutil/testlog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	nopObserver
	frames  map[protocol.PacketType]int
	failed  int
	claimed []int
}

func (o *countingObserver) FrameReceived(t protocol.PacketType, _ int) { o.frames[t]++ }
func (o *countingObserver) DecodeFailed(error)                         { o.failed++ }
func (o *countingObserver) EventObserved(_ protocol.EventCode, n int)  { o.claimed = append(o.claimed, n) }

type dispatchFixture struct {
	d     *dispatcher
	queue *session.CorrelationQueue[Response]
	wait  *session.EventWaiter
	sink  *[]Response
	obs   *countingObserver
}

func newDispatchFixture() dispatchFixture {
	var got []Response
	f := dispatchFixture{
		queue: &session.CorrelationQueue[Response]{},
		wait:  &session.EventWaiter{},
		sink:  &got,
		obs:   &countingObserver{frames: map[protocol.PacketType]int{}},
	}
	f.d = &dispatcher{
		queue:    f.queue,
		waiter:   f.wait,
		sink:     SinkFunc(func(r Response) { *f.sink = append(*f.sink, r) }),
		observer: f.obs,
		log:      zerolog.Nop(),
		now:      func() time.Time { return time.Unix(0, 0) },
	}
	return f
}

func textFrame(t *testing.T, typ protocol.PacketType, text string) frame.Frame {
	t.Helper()
	body := append([]byte(text), 0)
	return frame.Frame{Header: frame.Header{Size: uint32(frame.HeaderLen + len(body)), Type: typ}, Body: body}
}

func rawFrame(typ protocol.PacketType, body []byte) frame.Frame {
	return frame.Frame{Header: frame.Header{Size: uint32(frame.HeaderLen + len(body)), Type: typ}, Body: body}
}

func TestRouteFor(t *testing.T) {
	cases := map[protocol.PacketType]route{
		protocol.PacketError:      routeCorrelated,
		protocol.PacketCommand:    routeCorrelated,
		protocol.PacketXML:        routeCorrelated,
		protocol.PacketEvent:      routeEvent,
		protocol.PacketData:       routeData,
		protocol.PacketNoMoreData: routeIgnore,
		protocol.PacketC3DFile:    routeIgnore,
		protocol.PacketQTMFile:    routeIgnore,
		protocol.PacketType(77):   routeIgnore,
	}
	for typ, want := range cases {
		require.Equal(t, want, routeFor(typ), typ.String())
	}
}

func TestDispatchCorrelatedConsumesOneSlotEach(t *testing.T) {
	testlog.Start(t)

	f := newDispatchFixture()
	var got []Response
	f.queue.Enqueue(func(r Response) { got = append(got, r) })
	f.queue.Enqueue(func(r Response) { got = append(got, r) })

	f.d.handle(textFrame(t, protocol.PacketError, "Parse error"))
	f.d.handle(textFrame(t, protocol.PacketXML, "<QTM_Parameters/>"))
	f.d.handle(textFrame(t, protocol.PacketCommand, "unsolicited"))

	require.Len(t, got, 2)
	require.ErrorIs(t, got[0].Err, protocol.ErrServer)
	require.Equal(t, "Parse error", got[0].Text)
	require.Equal(t, "<QTM_Parameters/>", got[1].Text)
	require.NoError(t, got[1].Err)

	require.Len(t, *f.sink, 1)
	require.Equal(t, "unsolicited", (*f.sink)[0].Text)
	require.Equal(t, 1, f.obs.frames[protocol.PacketError])
}

func TestDispatchEventNeverTouchesQueue(t *testing.T) {
	testlog.Start(t)

	f := newDispatchFixture()
	f.queue.Enqueue(func(Response) { t.Fatalf("event consumed a queue slot") })
	w := f.wait.Register(protocol.EventCaptureStarted, time.Second)

	f.d.handle(rawFrame(protocol.PacketEvent, frame.EncodeEvent(protocol.EventCaptureStarted)))
	f.d.handle(rawFrame(protocol.PacketEvent, frame.EncodeEvent(protocol.EventTrigger)))

	require.Equal(t, protocol.EventCaptureStarted, w.Result().Event)
	require.Equal(t, 1, f.queue.Len())
	require.Equal(t, []int{1, 0}, f.obs.claimed)
	require.Len(t, *f.sink, 1)
	require.Equal(t, protocol.EventTrigger, (*f.sink)[0].Event)
}

func TestDispatchEmptyEventBody(t *testing.T) {
	testlog.Start(t)

	f := newDispatchFixture()
	f.d.handle(rawFrame(protocol.PacketEvent, nil))
	require.Len(t, *f.sink, 1)
	require.ErrorIs(t, (*f.sink)[0].Err, protocol.ErrDecode)
	require.Equal(t, 1, f.obs.failed)
}

func TestDispatchDataBypassesQueueAndWaiter(t *testing.T) {
	testlog.Start(t)

	f := newDispatchFixture()
	f.queue.Enqueue(func(Response) { t.Fatalf("data consumed a queue slot") })
	w := f.wait.Register(protocol.AnyEvent, time.Second)
	defer w.Cancel(nil)

	f.d.handle(rawFrame(protocol.PacketData, qtmtest.Markers3DBody(5, 6, [3]float32{1, 2, 3})))
	f.d.handle(rawFrame(protocol.PacketData, []byte{1, 2, 3}))

	require.Len(t, *f.sink, 2)
	require.NotNil(t, (*f.sink)[0].Packet)
	require.Equal(t, uint32(6), (*f.sink)[0].Packet.FrameNumber)
	require.ErrorIs(t, (*f.sink)[1].Err, protocol.ErrDecode)
	require.Equal(t, 1, f.obs.failed)
	require.Equal(t, 1, f.queue.Len())
	require.Equal(t, 1, f.wait.Len())
}

func TestDispatchDataKeepsUntypedComponents(t *testing.T) {
	testlog.Start(t)

	f := newDispatchFixture()
	var logs bytes.Buffer
	f.d.log = zerolog.New(&logs)

	body := binary.LittleEndian.AppendUint64(nil, 1)
	body = binary.LittleEndian.AppendUint32(body, 8)
	body = binary.LittleEndian.AppendUint32(body, 1)
	body = binary.LittleEndian.AppendUint32(body, 8+3)
	body = binary.LittleEndian.AppendUint32(body, 99)
	body = append(body, 7, 7, 7)
	f.d.handle(rawFrame(protocol.PacketData, body))

	require.Len(t, *f.sink, 1)
	pkt := (*f.sink)[0].Packet
	require.NotNil(t, pkt)
	unknown, ok := pkt.Component(packet.ComponentType(99))
	require.True(t, ok)
	require.Equal(t, []byte{7, 7, 7}, unknown.(*packet.Unknown).Raw)
	require.Contains(t, logs.String(), `"component":"component(99)"`)
	require.Zero(t, f.obs.failed)
}

func TestDispatchIgnoresUnknownTypes(t *testing.T) {
	testlog.Start(t)

	f := newDispatchFixture()
	f.queue.Enqueue(func(Response) { t.Fatalf("unknown type consumed a queue slot") })
	f.d.handle(rawFrame(protocol.PacketNoMoreData, nil))
	f.d.handle(rawFrame(protocol.PacketType(200), []byte("x")))

	require.Empty(t, *f.sink)
	require.Equal(t, 1, f.queue.Len())
	require.Equal(t, 1, f.obs.frames[protocol.PacketType(200)])
}
