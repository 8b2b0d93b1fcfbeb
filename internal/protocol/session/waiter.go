package session

import (
	"sync"
	"time"

	"github.com/danmuck/qrtctl/internal/protocol"
)

// EventResult is the outcome of one event wait.
type EventResult struct {
	Event protocol.EventCode
	Err   error
}

// EventWait is a single registered wait. Exactly one result is ever sent on
// the channel returned by Done.
type EventWait struct {
	id     uint64
	wanted protocol.EventCode
	owner  *EventWaiter
	timer  *time.Timer
	done   chan EventResult
}

func (w *EventWait) Wanted() protocol.EventCode { return w.wanted }

func (w *EventWait) Done() <-chan EventResult { return w.done }

// Result blocks until the wait completes.
func (w *EventWait) Result() EventResult { return <-w.done }

// Cancel removes the wait and completes it with err. It reports false when
// the wait already completed.
func (w *EventWait) Cancel(err error) bool {
	if w.owner == nil || !w.owner.remove(w.id) {
		return false
	}
	w.finish(EventResult{Err: err})
	return true
}

// FailedWait returns a wait that has already completed with err.
func FailedWait(wanted protocol.EventCode, err error) *EventWait {
	w := &EventWait{wanted: wanted, done: make(chan EventResult, 1)}
	w.done <- EventResult{Err: err}
	return w
}

func (w *EventWait) finish(res EventResult) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.done <- res
}

// EventWaiter holds pending event waits in registration order. Resolve,
// timeout and cancel each remove the entry under mu before completing it,
// so every wait completes once.
type EventWaiter struct {
	mu      sync.Mutex
	nextID  uint64
	waits   []*EventWait
	closed  bool
	closeBy error
}

// Register adds a wait for wanted (protocol.AnyEvent matches every event).
// A positive timeout completes the wait with protocol.ErrTimeout on expiry.
// After Close the returned wait is already complete with the close error.
func (e *EventWaiter) Register(wanted protocol.EventCode, timeout time.Duration) *EventWait {
	w := &EventWait{wanted: wanted, owner: e, done: make(chan EventResult, 1)}

	e.mu.Lock()
	if e.closed {
		err := e.closeBy
		e.mu.Unlock()
		w.done <- EventResult{Err: err}
		return w
	}
	e.nextID++
	w.id = e.nextID
	e.waits = append(e.waits, w)
	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, func() {
			if e.remove(w.id) {
				w.done <- EventResult{Err: protocol.ErrTimeout}
			}
		})
	}
	e.mu.Unlock()
	return w
}

// Resolve completes every wait whose filter matches code and returns how
// many were completed.
func (e *EventWaiter) Resolve(code protocol.EventCode) int {
	e.mu.Lock()
	var hit []*EventWait
	kept := e.waits[:0]
	for _, w := range e.waits {
		if w.wanted.Matches(code) {
			hit = append(hit, w)
			continue
		}
		kept = append(kept, w)
	}
	clear(e.waits[len(kept):])
	e.waits = kept
	e.mu.Unlock()

	for _, w := range hit {
		w.finish(EventResult{Event: code})
	}
	return len(hit)
}

// Close completes all pending waits with err and rejects later registrations.
func (e *EventWaiter) Close(err error) int {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0
	}
	e.closed = true
	e.closeBy = err
	pending := e.waits
	e.waits = nil
	e.mu.Unlock()

	for _, w := range pending {
		w.finish(EventResult{Err: err})
	}
	return len(pending)
}

func (e *EventWaiter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.waits)
}

func (e *EventWaiter) remove(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, w := range e.waits {
		if w.id == id {
			copy(e.waits[i:], e.waits[i+1:])
			e.waits[len(e.waits)-1] = nil
			e.waits = e.waits[:len(e.waits)-1]
			return true
		}
	}
	return false
}
