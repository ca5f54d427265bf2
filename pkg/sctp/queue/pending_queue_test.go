package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
)

func pendingEntry(unordered bool, n int) *Entry {
	return &Entry{Data: chunk.Data{Unordered: unordered, UserData: make([]byte, n)}}
}

func TestPendingQueueFavorsOrderedOnTie(t *testing.T) {
	q := NewPendingQueue()
	q.Push(pendingEntry(true, 1))
	q.Push(pendingEntry(false, 1))

	assert.False(t, q.Peek().Data.Unordered)
	e := q.Pop()
	assert.False(t, e.Data.Unordered)
	e = q.Pop()
	assert.True(t, e.Data.Unordered)
	assert.Nil(t, q.Pop())
}

func TestPendingQueueFIFOWithinLane(t *testing.T) {
	q := NewPendingQueue()
	first := pendingEntry(false, 1)
	second := pendingEntry(false, 1)
	q.Push(first)
	q.Push(second)

	assert.Same(t, first, q.Pop())
	assert.Same(t, second, q.Pop())
}

func TestPendingQueueByteAccounting(t *testing.T) {
	q := NewPendingQueue()
	q.Push(pendingEntry(false, 10))
	q.Push(pendingEntry(true, 5))
	assert.Equal(t, 15, q.NumBytes())
	assert.Equal(t, 2, q.Len())

	q.Pop()
	assert.Equal(t, 5, q.NumBytes())
	assert.Equal(t, 1, q.Len())
}
