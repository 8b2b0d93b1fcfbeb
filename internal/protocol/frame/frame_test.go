package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/qrtctl/internal/protocol"
)

func TestEncodeTextCountsTerminator(t *testing.T) {
	out, err := EncodeText(protocol.PacketCommand, "qtmversion")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	h, err := DecodeHeader(out)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if int(h.Size) != HeaderLen+len("qtmversion")+1 {
		t.Fatalf("unexpected size=%d", h.Size)
	}
	if h.Type != protocol.PacketCommand {
		t.Fatalf("unexpected type=%s", h.Type)
	}
	if out[len(out)-1] != 0 {
		t.Fatalf("missing NUL terminator")
	}
	want := []byte{19, 0, 0, 0, 1, 0, 0, 0}
	if !bytes.Equal(out[:HeaderLen], want) {
		t.Fatalf("header bytes=%v want=%v", out[:HeaderLen], want)
	}
}

func TestEncodeTextRejectsEmbeddedNUL(t *testing.T) {
	if _, err := EncodeText(protocol.PacketXML, "a\x00b"); !errors.Is(err, ErrTextHasNUL) {
		t.Fatalf("expected ErrTextHasNUL, got %v", err)
	}
}

func TestTextStripsTerminators(t *testing.T) {
	if got := Text([]byte("Ok\x00\x00")); got != "Ok" {
		t.Fatalf("got %q", got)
	}
	if got := Text(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestEventBody(t *testing.T) {
	code, err := Event([]byte{byte(protocol.EventCaptureStarted)})
	if err != nil || code != protocol.EventCaptureStarted {
		t.Fatalf("code=%v err=%v", code, err)
	}
	if _, err := Event(nil); !errors.Is(err, ErrShortEventBody) {
		t.Fatalf("expected ErrShortEventBody, got %v", err)
	}
}

func TestReadWriteFrameRoundTrip(t *testing.T) {
	in := Frame{Header: Header{Type: protocol.PacketXML}, Body: []byte("<QTM_Settings/>\x00")}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Type != protocol.PacketXML || int(out.Header.Size) != HeaderLen+len(in.Body) {
		t.Fatalf("header mismatch: %+v", out.Header)
	}
	if !bytes.Equal(out.Body, in.Body) {
		t.Fatalf("body mismatch")
	}
}

func TestReadFrameMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameSizeTooSmall(t *testing.T) {
	buf := EncodeHeader(Header{Size: 4, Type: protocol.PacketCommand})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrFrameTooSmall) || !errors.Is(err, protocol.ErrFraming) {
		t.Fatalf("expected framing error, got %v", err)
	}
}
