package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStreamDefaultsToReliable(t *testing.T) {
	s := New(7, 42)
	assert.Equal(t, uint16(7), s.ID)
	assert.Equal(t, uint32(42), s.DefaultPayloadProtocolID)
	assert.Equal(t, Reliable, s.Reliability)
	assert.False(t, s.IsAbandoned(100, time.Now().Add(-time.Hour), time.Now()))
}

func TestRexmitAbandonsAfterNSent(t *testing.T) {
	s := New(1, 0)
	s.Reliability = Rexmit
	s.ReliabilityValue = 3

	now := time.Now()
	assert.False(t, s.IsAbandoned(2, now, now))
	assert.True(t, s.IsAbandoned(3, now, now))
	assert.True(t, s.IsAbandoned(4, now, now))
}

func TestTimedAbandonsAfterDuration(t *testing.T) {
	s := New(1, 0)
	s.Reliability = Timed
	s.ReliabilityValue = 100 // ms

	sent := time.Unix(0, 0)
	assert.False(t, s.IsAbandoned(1, sent, sent.Add(50*time.Millisecond)))
	assert.True(t, s.IsAbandoned(1, sent, sent.Add(150*time.Millisecond)))
}

func TestClosedBothSides(t *testing.T) {
	s := New(1, 0)
	assert.False(t, s.ClosedBothSides())
	s.SendState = Closed
	assert.False(t, s.ClosedBothSides())
	s.RecvState = Closed
	assert.True(t, s.ClosedBothSides())
}
