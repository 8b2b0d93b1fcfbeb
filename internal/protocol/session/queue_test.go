package session

import (
	"testing"

	"github.com/danmuck/qrtctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationQueueDeliversInSendOrder(t *testing.T) {
	testlog.Start(t)

	var q CorrelationQueue[string]
	var got []string
	require.True(t, q.Enqueue(func(v string) { got = append(got, "A:"+v) }))
	require.True(t, q.Enqueue(func(v string) { got = append(got, "B:"+v) }))
	require.Equal(t, 2, q.Len())

	require.True(t, q.Deliver("first"))
	require.True(t, q.Deliver("second"))
	require.Equal(t, []string{"A:first", "B:second"}, got)
	require.Zero(t, q.Len())
}

func TestCorrelationQueuePlaceholderKeepsPosition(t *testing.T) {
	testlog.Start(t)

	var q CorrelationQueue[int]
	var got []int
	q.Enqueue(nil)
	q.Enqueue(func(v int) { got = append(got, v) })

	require.False(t, q.Deliver(1), "placeholder hands the value back to the caller")
	require.True(t, q.Deliver(2))
	require.Equal(t, []int{2}, got)
}

func TestCorrelationQueueEmptyDeliver(t *testing.T) {
	testlog.Start(t)

	var q CorrelationQueue[int]
	require.False(t, q.Deliver(7))
}

func TestCorrelationQueueDropTail(t *testing.T) {
	testlog.Start(t)

	var q CorrelationQueue[int]
	var got []int
	q.Enqueue(func(v int) { got = append(got, v) })
	q.Enqueue(func(int) { t.Fatalf("dropped entry invoked") })
	q.DropTail()
	require.Equal(t, 1, q.Len())

	q.Deliver(5)
	require.Equal(t, []int{5}, got)
	q.DropTail()
}

func TestCorrelationQueueDrain(t *testing.T) {
	testlog.Start(t)

	var q CorrelationQueue[string]
	var got []string
	q.Enqueue(func(v string) { got = append(got, "a:"+v) })
	q.Enqueue(nil)
	q.Enqueue(func(v string) { got = append(got, "b:"+v) })

	require.Equal(t, 3, q.Drain("closed"))
	require.Equal(t, []string{"a:closed", "b:closed"}, got)
	require.False(t, q.Enqueue(func(string) {}), "drained queue rejects new entries")
	require.Zero(t, q.Drain("again"))
}
