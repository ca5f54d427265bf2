package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
)

func fragment(tsn uint32, ssn uint16, unordered, begin, end bool, data string) *Entry {
	return &Entry{Data: chunk.Data{
		TSN:               tsn,
		StreamSequence:    ssn,
		Unordered:         unordered,
		BeginningFragment: begin,
		EndingFragment:    end,
		UserData:          []byte(data),
	}}
}

func TestReassemblyOrderedSingleFragmentMessage(t *testing.T) {
	r := NewReassemblyQueue()
	r.Push(fragment(1, 0, false, true, true, "hello"))

	msg, ok := r.Pop()
	assert.True(t, ok)
	assert.Equal(t, "hello", string(msg.UserData))
	assert.Equal(t, 0, r.BufferedBytes())
}

func TestReassemblyOrderedWaitsForInOrderSSN(t *testing.T) {
	r := NewReassemblyQueue()
	// SSN 1 arrives complete before SSN 0 -- must not be delivered yet.
	r.Push(fragment(2, 1, false, true, true, "second"))
	_, ok := r.Pop()
	assert.False(t, ok)

	r.Push(fragment(1, 0, false, true, true, "first"))
	msg, ok := r.Pop()
	assert.True(t, ok)
	assert.Equal(t, "first", string(msg.UserData))

	msg, ok = r.Pop()
	assert.True(t, ok)
	assert.Equal(t, "second", string(msg.UserData))
}

func TestReassemblyOrderedMultiFragmentMessage(t *testing.T) {
	r := NewReassemblyQueue()
	r.Push(fragment(1, 0, false, true, false, "he"))
	_, ok := r.Pop()
	assert.False(t, ok) // incomplete, missing end fragment

	r.Push(fragment(2, 0, false, false, true, "llo"))
	msg, ok := r.Pop()
	assert.True(t, ok)
	assert.Equal(t, "hello", string(msg.UserData))
}

func TestReassemblyUnorderedDeliveredImmediately(t *testing.T) {
	r := NewReassemblyQueue()
	r.Push(fragment(5, 0, true, true, true, "out-of-order"))
	msg, ok := r.Pop()
	assert.True(t, ok)
	assert.Equal(t, "out-of-order", string(msg.UserData))
}

func TestForwardOrderedSkipsAbandonedSSN(t *testing.T) {
	r := NewReassemblyQueue()
	r.Push(fragment(1, 0, false, true, false, "partial")) // never completes

	r.ForwardOrdered(0)
	r.Push(fragment(10, 1, false, true, true, "next"))

	msg, ok := r.Pop()
	assert.True(t, ok)
	assert.Equal(t, "next", string(msg.UserData))
	assert.Equal(t, 0, r.BufferedBytes())
}

func TestForwardUnorderedDropsAtOrBelowTSN(t *testing.T) {
	r := NewReassemblyQueue()
	r.Push(fragment(1, 0, true, true, true, "old"))
	r.ForwardUnordered(1)

	_, ok := r.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, r.BufferedBytes())
}
