package frame

// Reader reassembles frames from arbitrarily split stream chunks. A Reader is
// owned by one goroutine; it is not safe for concurrent use.
type Reader struct {
	limits Limits
	buf    []byte
	err    error
}

func NewReader(limits Limits) *Reader {
	return &Reader{limits: limits}
}

// Feed appends raw stream bytes. The slice is copied.
func (r *Reader) Feed(p []byte) {
	r.buf = append(r.buf, p...)
}

// Buffered reports bytes held that do not yet form a complete frame.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// Extract returns every complete frame currently buffered, in stream order.
// A partial remainder stays buffered. An impossible header is fatal: the
// frames decoded before it are still returned, the error is returned with
// them and every later call returns the same error.
func (r *Reader) Extract() ([]Frame, error) {
	if r.err != nil {
		return nil, r.err
	}

	var out []Frame
	off := 0
	for len(r.buf)-off >= HeaderLen {
		h, _ := DecodeHeader(r.buf[off : off+HeaderLen])
		if err := r.limits.check(h); err != nil {
			r.err = err
			break
		}
		if len(r.buf)-off < int(h.Size) {
			break
		}
		body := make([]byte, h.BodyLen())
		copy(body, r.buf[off+HeaderLen:off+int(h.Size)])
		out = append(out, Frame{Header: h, Body: body})
		off += int(h.Size)
	}

	if off > 0 {
		n := copy(r.buf, r.buf[off:])
		r.buf = r.buf[:n]
	}
	return out, r.err
}
