package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
)

func entryAt(tsn uint32, n int) *Entry {
	return &Entry{Data: chunk.Data{TSN: tsn, UserData: make([]byte, n)}, Since: time.Now()}
}

func TestPayloadQueuePushPopOrdering(t *testing.T) {
	q := NewPayloadQueue()
	assert.True(t, q.Push(entryAt(5, 10), 4))
	assert.True(t, q.Push(entryAt(6, 10), 4))
	assert.Equal(t, 20, q.NumBytes())

	// Pop only succeeds on the lowest TSN.
	assert.Nil(t, q.Pop(6))
	e := q.Pop(5)
	assert.NotNil(t, e)
	assert.Equal(t, 10, q.NumBytes())
}

func TestPayloadQueueRejectsDuplicateAndStale(t *testing.T) {
	q := NewPayloadQueue()
	assert.True(t, q.Push(entryAt(5, 10), 4))
	assert.False(t, q.Push(entryAt(5, 10), 4)) // duplicate
	assert.False(t, q.Push(entryAt(3, 10), 4)) // at/below cumulative TSN

	dups := q.PopDuplicates()
	assert.Equal(t, []uint32{5, 3}, dups)
	assert.Empty(t, q.PopDuplicates())
}

func TestPayloadQueueMarkAsAckedFreesBytes(t *testing.T) {
	q := NewPayloadQueue()
	q.PushNoCheck(entryAt(1, 100))
	assert.Equal(t, 100, q.NumBytes())

	freed := q.MarkAsAcked(1)
	assert.Equal(t, 100, freed)
	assert.Equal(t, 0, q.NumBytes())
	assert.True(t, q.Get(1).Acked)
	assert.Nil(t, q.Get(1).Data.UserData)
}

func TestPayloadQueueGapAckBlocks(t *testing.T) {
	q := NewPayloadQueue()
	// cumulative TSN is 10; 11,12 contiguous, 15 a separate gap.
	q.PushNoCheck(entryAt(11, 1))
	q.PushNoCheck(entryAt(12, 1))
	q.PushNoCheck(entryAt(15, 1))

	blocks := q.GapAckBlocks(10)
	assert.Equal(t, []GapAckBlock{{Start: 1, End: 2}, {Start: 5, End: 5}}, blocks)
}

func TestPayloadQueueMarkAllForRetransmitSkipsAckedAndAbandoned(t *testing.T) {
	q := NewPayloadQueue()
	q.PushNoCheck(entryAt(1, 1))
	q.PushNoCheck(entryAt(2, 1))
	q.PushNoCheck(entryAt(3, 1))
	q.Get(2).Acked = true
	q.Get(3).Abandoned = true

	q.MarkAllForRetransmit()
	assert.True(t, q.Get(1).Retransmit)
	assert.False(t, q.Get(2).Retransmit)
	assert.False(t, q.Get(3).Retransmit)
}

func TestPayloadQueueLastTSNReceived(t *testing.T) {
	q := NewPayloadQueue()
	_, ok := q.LastTSNReceived()
	assert.False(t, ok)

	q.PushNoCheck(entryAt(7, 1))
	q.PushNoCheck(entryAt(9, 1))
	last, ok := q.LastTSNReceived()
	assert.True(t, ok)
	assert.Equal(t, uint32(9), last)
}
