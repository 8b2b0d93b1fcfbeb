package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/qrtctl/internal/protocol"
)

// HeaderLen is the fixed header: u32 total size (header included) + u32 type.
const HeaderLen = 8

var (
	ErrShortHeader    = errors.New("frame: short header")
	ErrFrameTooSmall  = fmt.Errorf("frame: declared size smaller than header: %w", protocol.ErrFraming)
	ErrFrameTooLarge  = fmt.Errorf("frame: declared size exceeds limit: %w", protocol.ErrFraming)
	ErrBodyTooLarge   = errors.New("frame: body too large to encode")
	ErrTextHasNUL     = errors.New("frame: text body contains NUL")
	ErrShortEventBody = fmt.Errorf("frame: empty event body: %w", protocol.ErrDecode)
)

// Header is the fixed wire header.
type Header struct {
	Size uint32
	Type protocol.PacketType
}

// BodyLen is the number of body bytes the header declares.
func (h Header) BodyLen() int {
	return int(h.Size) - HeaderLen
}

// Frame is one complete wire message. Body never aliases a read buffer.
type Frame struct {
	Header
	Body []byte
}

// Limits constrains decode memory use.
type Limits struct {
	MaxFrameBytes uint32
}

// DefaultLimits allows uncompressed camera images inside Data frames.
func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 64 * 1024 * 1024,
	}
}

func (l Limits) check(h Header) error {
	if h.Size < HeaderLen {
		return fmt.Errorf("%w (size=%d type=%s)", ErrFrameTooSmall, h.Size, h.Type)
	}
	if l.MaxFrameBytes > 0 && h.Size > l.MaxFrameBytes {
		return fmt.Errorf("%w (size=%d max=%d)", ErrFrameTooLarge, h.Size, l.MaxFrameBytes)
	}
	return nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], h.Size)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Type))
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	return Header{
		Size: binary.LittleEndian.Uint32(b[0:4]),
		Type: protocol.PacketType(binary.LittleEndian.Uint32(b[4:8])),
	}, nil
}

// Encode returns header+body for a frame of type t.
func Encode(t protocol.PacketType, body []byte) ([]byte, error) {
	if uint64(len(body))+HeaderLen > uint64(^uint32(0)) {
		return nil, ErrBodyTooLarge
	}
	out := make([]byte, 0, HeaderLen+len(body))
	out = append(out, EncodeHeader(Header{Size: uint32(HeaderLen + len(body)), Type: t})...)
	return append(out, body...), nil
}

// EncodeText encodes a NUL-terminated text frame (Command, XML or Error).
// The terminator is counted in the declared size.
func EncodeText(t protocol.PacketType, text string) ([]byte, error) {
	if strings.IndexByte(text, 0) >= 0 {
		return nil, ErrTextHasNUL
	}
	body := make([]byte, 0, len(text)+1)
	body = append(body, text...)
	body = append(body, 0)
	return Encode(t, body)
}

// EncodeEvent encodes a single-byte Event frame.
func EncodeEvent(code protocol.EventCode) []byte {
	out, _ := Encode(protocol.PacketEvent, []byte{byte(code)})
	return out
}

// Text decodes a text body, dropping trailing NUL terminators.
func Text(body []byte) string {
	return string(bytes.TrimRight(body, "\x00"))
}

// Event decodes the event code of an Event body.
func Event(body []byte) (protocol.EventCode, error) {
	if len(body) < 1 {
		return 0, ErrShortEventBody
	}
	return protocol.EventCode(body[0]), nil
}

// ReadFrame reads exactly one frame from a blocking reader.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if err := limits.check(h); err != nil {
		return Frame{}, err
	}

	body := make([]byte, h.BodyLen())
	if len(body) > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Header: h, Body: body}, nil
}

// WriteFrame writes f, recomputing the declared size from the body.
func WriteFrame(w io.Writer, f Frame) error {
	out, err := Encode(f.Header.Type, f.Body)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
