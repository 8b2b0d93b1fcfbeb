package packet

import (
	"encoding/binary"
	"fmt"
	"math"
)

// cursor is a bounds-checked little-endian reader over one block.
type cursor struct {
	buf   []byte
	off   int
	block ComponentType
	err   error
}

func newCursor(buf []byte, block ComponentType) *cursor {
	return &cursor{buf: buf, block: block}
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

// need fails the cursor when fewer than n bytes remain. Later reads return
// zero values, so decoders check c.err once per record.
func (c *cursor) need(n int, what string) bool {
	if c.err != nil {
		return false
	}
	if n < 0 || c.remaining() < n {
		c.err = fmt.Errorf("%w: %s: %s needs %d bytes, %d left", ErrShortComponent, c.block, what, n, c.remaining())
		return false
	}
	return true
}

// fits checks that count records of stride bytes fit before reading them,
// so a corrupt count cannot drive a huge allocation.
func (c *cursor) fits(count uint32, stride int, what string) bool {
	return c.need(int(min(uint64(count)*uint64(stride), math.MaxInt32)), what)
}

func (c *cursor) u8(what string) uint8 {
	if !c.need(1, what) {
		return 0
	}
	v := c.buf[c.off]
	c.off++
	return v
}

func (c *cursor) u16(what string) uint16 {
	if !c.need(2, what) {
		return 0
	}
	v := binary.LittleEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v
}

func (c *cursor) u32(what string) uint32 {
	if !c.need(4, what) {
		return 0
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v
}

func (c *cursor) u64(what string) uint64 {
	if !c.need(8, what) {
		return 0
	}
	v := binary.LittleEndian.Uint64(c.buf[c.off:])
	c.off += 8
	return v
}

func (c *cursor) f32(what string) float32 {
	return math.Float32frombits(c.u32(what))
}

func (c *cursor) vec3(what string) [3]float32 {
	return [3]float32{c.f32(what), c.f32(what), c.f32(what)}
}

func (c *cursor) f32s(n int, what string) []float32 {
	if !c.need(n*4, what) {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = c.f32(what)
	}
	return out
}

func (c *cursor) bytes(n int, what string) []byte {
	if !c.need(n, what) {
		return nil
	}
	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	c.off += n
	return out
}
