package session

import "sync"

// CorrelationQueue matches responses to requests in send order. An entry is
// either a callback or a placeholder that keeps position for a request sent
// without one.
type CorrelationQueue[T any] struct {
	mu      sync.Mutex
	entries []func(T)
	closed  bool
}

// Enqueue appends an entry. A nil fn reserves a placeholder slot.
// Returns false after Drain.
func (q *CorrelationQueue[T]) Enqueue(fn func(T)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.entries = append(q.entries, fn)
	return true
}

// Deliver pops the oldest entry and hands it v. It reports false when the
// queue was empty or the popped entry was a placeholder; the caller owns v
// in that case. Callbacks run outside the lock.
func (q *CorrelationQueue[T]) Deliver(v T) bool {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return false
	}
	fn := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	q.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(v)
	return true
}

// DropTail removes the newest entry. Used when the write that followed an
// Enqueue failed.
func (q *CorrelationQueue[T]) DropTail() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.entries); n > 0 {
		q.entries[n-1] = nil
		q.entries = q.entries[:n-1]
	}
}

// Drain closes the queue and hands v to every pending callback, oldest first.
// It returns the number of entries removed, placeholders included.
func (q *CorrelationQueue[T]) Drain(v T) int {
	q.mu.Lock()
	pending := q.entries
	q.entries = nil
	q.closed = true
	q.mu.Unlock()

	for _, fn := range pending {
		if fn != nil {
			fn(v)
		}
	}
	return len(pending)
}

func (q *CorrelationQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
