package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/qrtctl/internal/protocol"
)

const (
	// MetadataLen is u64 timestamp + u32 frame number + u32 component count.
	MetadataLen = 16
	// ComponentHeaderLen is u32 size (header included) + u32 type.
	ComponentHeaderLen = 8
)

var (
	ErrShortMetadata        = fmt.Errorf("packet: short metadata block: %w", protocol.ErrDecode)
	ErrShortComponentHeader = fmt.Errorf("packet: short component header: %w", protocol.ErrDecode)
	ErrComponentSize        = fmt.Errorf("packet: component size out of range: %w", protocol.ErrDecode)
	ErrShortComponent       = fmt.Errorf("packet: component shorter than its counts: %w", protocol.ErrDecode)
)

// Packet is one decoded Data frame.
type Packet struct {
	// Timestamp is in microseconds, as reported by the server.
	Timestamp   uint64
	FrameNumber uint32
	Components  ComponentSet
	Blocks      []Component
}

// Component returns the first block of kind t.
func (p *Packet) Component(t ComponentType) (Component, bool) {
	for _, b := range p.Blocks {
		if b.Kind() == t {
			return b, true
		}
	}
	return nil, false
}

// Markers3D returns the labeled 3D block, with or without residuals.
func (p *Packet) Markers3D() (*Markers3D, bool) {
	for _, b := range p.Blocks {
		if m, ok := b.(*Markers3D); ok {
			return m, true
		}
	}
	return nil, false
}

// Bodies6D returns the rotation-matrix 6DOF block, with or without residuals.
func (p *Packet) Bodies6D() (*Bodies6D, bool) {
	for _, b := range p.Blocks {
		if m, ok := b.(*Bodies6D); ok {
			return m, true
		}
	}
	return nil, false
}

// Decode parses a Data frame body (the bytes after the frame header).
// Blocks are walked strictly by declared size. Any failure aborts the whole
// frame with an error wrapping protocol.ErrDecode.
func Decode(body []byte) (*Packet, error) {
	if len(body) < MetadataLen {
		return nil, fmt.Errorf("%w: have %d bytes", ErrShortMetadata, len(body))
	}
	p := &Packet{
		Timestamp:   binary.LittleEndian.Uint64(body[0:8]),
		FrameNumber: binary.LittleEndian.Uint32(body[8:12]),
	}
	count := binary.LittleEndian.Uint32(body[12:16])

	i := MetadataLen
	for n := uint32(0); n < count; n++ {
		if len(body)-i < ComponentHeaderLen {
			return nil, fmt.Errorf("%w: component %d/%d at offset %d", ErrShortComponentHeader, n+1, count, i)
		}
		size := binary.LittleEndian.Uint32(body[i : i+4])
		kind := ComponentType(binary.LittleEndian.Uint32(body[i+4 : i+8]))
		if size < ComponentHeaderLen || uint64(size) > uint64(len(body)-i) {
			return nil, fmt.Errorf("%w: %s size=%d left=%d", ErrComponentSize, kind, size, len(body)-i)
		}
		payload := body[i+ComponentHeaderLen : i+int(size)]
		block, err := decodeComponent(kind, payload)
		if err != nil {
			return nil, err
		}
		p.Blocks = append(p.Blocks, block)
		p.Components = p.Components.With(kind)
		i += int(size)
	}
	return p, nil
}

func decodeComponent(kind ComponentType, payload []byte) (Component, error) {
	c := newCursor(payload, kind)
	var out Component
	switch kind {
	case Component3D, Component3DRes:
		out = decode3D(c, kind)
	case Component3DNoLabels, Component3DNoLabelsRes:
		out = decode3DNoLabels(c, kind)
	case Component6D, Component6DRes:
		out = decode6D(c, kind)
	case Component6DEuler, Component6DEulerRes:
		out = decode6DEuler(c, kind)
	case Component2D, Component2DLin:
		out = decode2D(c, kind)
	case ComponentAnalog:
		out = decodeAnalog(c)
	case ComponentAnalogSingle:
		out = decodeAnalogSingle(c)
	case ComponentForce:
		out = decodeForce(c)
	case ComponentForceSingle:
		out = decodeForceSingle(c)
	case ComponentImage:
		out = decodeImages(c)
	case ComponentGazeVector:
		out = decodeGazeVectors(c)
	case ComponentEyeTracker:
		out = decodeEyeTrackers(c)
	case ComponentTimecode:
		out = decodeTimecodes(c)
	case ComponentSkeleton:
		out = decodeSkeletons(c)
	default:
		out = &Unknown{Type: kind, Raw: c.bytes(len(payload), "raw")}
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}
