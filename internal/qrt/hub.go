package qrt

import (
	"sync"
	"sync/atomic"
)

// Hub fans unsolicited responses out to subscribers. It is a Sink: Deliver
// never blocks, and a subscriber whose buffer is full misses the response.
type Hub struct {
	mu        sync.RWMutex
	subs      map[chan Response]struct{}
	clientBuf int
	closed    bool
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

type HubOption func(*Hub)

func WithClientBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:      make(map[chan Response]struct{}),
		clientBuf: 256,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Deliver(r Response) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- r:
			h.delivered.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) Subscribe() (<-chan Response, func()) {
	return h.SubscribeWithBuffer(h.clientBuf)
}

// SubscribeWithBuffer registers a subscriber. The returned func removes it
// and closes the channel; calling it twice is safe. Subscribing to a closed
// hub yields a closed channel.
func (h *Hub) SubscribeWithBuffer(size int) (<-chan Response, func()) {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan Response, size)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Close closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	clear(h.subs)
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Delivered() uint64 { return h.delivered.Load() }

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
