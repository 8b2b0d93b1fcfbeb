package protocol

import (
	"context"
	"fmt"
	"testing"
)

func TestPacketTypeResponseKinds(t *testing.T) {
	for _, pt := range []PacketType{PacketError, PacketCommand, PacketXML} {
		if !pt.IsResponse() {
			t.Fatalf("%s should consume a correlation slot", pt)
		}
	}
	for _, pt := range []PacketType{PacketData, PacketEvent, PacketNoMoreData, PacketType(42)} {
		if pt.IsResponse() {
			t.Fatalf("%s should not consume a correlation slot", pt)
		}
	}
	if got := PacketType(42).String(); got != "unknown(42)" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestEventCodeMatches(t *testing.T) {
	if !AnyEvent.Matches(EventCaptureStarted) {
		t.Fatalf("any filter must match every event")
	}
	if !EventCaptureStarted.Matches(EventCaptureStarted) {
		t.Fatalf("specific filter must match its own code")
	}
	if EventCaptureStarted.Matches(EventCaptureStopped) {
		t.Fatalf("specific filter matched a different code")
	}
}

func TestParseEventCode(t *testing.T) {
	code, err := ParseEventCode("capture_started")
	if err != nil || code != EventCaptureStarted {
		t.Fatalf("by name: code=%v err=%v", code, err)
	}
	code, err = ParseEventCode("16")
	if err != nil || code != EventTrigger {
		t.Fatalf("by number: code=%v err=%v", code, err)
	}
	if _, err := ParseEventCode("bogus"); err == nil {
		t.Fatalf("expected error for unknown event name")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err   error
		kind  ErrorKind
		fatal bool
	}{
		{fmt.Errorf("%w: dial tcp: refused", ErrTransport), KindTransport, true},
		{fmt.Errorf("frame: too small: %w", ErrFraming), KindFraming, true},
		{fmt.Errorf("%w: short 3d block", ErrDecode), KindDecode, false},
		{ErrNotConnected, KindProtocolState, false},
		{ErrTimeout, KindTimeout, false},
		{fmt.Errorf("reply: %w", context.DeadlineExceeded), KindTimeout, false},
		{fmt.Errorf("%w: peer reset", ErrConnectionClosed), KindClosed, false},
		{fmt.Errorf("%w: Parse error", ErrServer), KindServer, false},
		{nil, KindUnknown, false},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.kind {
			t.Fatalf("classify(%v)=%s want %s", tc.err, got, tc.kind)
		}
		if got := IsFatal(tc.err); got != tc.fatal {
			t.Fatalf("fatal(%v)=%v want %v", tc.err, got, tc.fatal)
		}
	}
}
