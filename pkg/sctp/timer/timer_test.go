package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerStartAndExpire(t *testing.T) {
	tm := NewTimer(T1Init)
	now := time.Unix(0, 0)
	tm.Start(now, time.Second)

	expired, failed := tm.IsExpired(now, time.Second)
	assert.False(t, expired)
	assert.False(t, failed)

	expired, failed = tm.IsExpired(now.Add(time.Second), time.Second)
	assert.True(t, expired)
	assert.False(t, failed)
	assert.Equal(t, 1, tm.NRTOs())
}

func TestTimerArmOnlyWhenStopped(t *testing.T) {
	tm := NewTimer(T3RTX)
	now := time.Unix(0, 0)
	tm.Start(now, time.Second)
	d1, _ := tm.Deadline()

	tm.Arm(now.Add(time.Millisecond), time.Second) // already running, no-op
	d2, _ := tm.Deadline()
	assert.Equal(t, d1, d2)

	tm.Stop()
	tm.Arm(now.Add(2*time.Second), time.Second)
	d3, running := tm.Deadline()
	assert.True(t, running)
	assert.NotEqual(t, d1, d3)
}

func TestTimerExhaustsRetryBudget(t *testing.T) {
	tm := NewTimer(Ack) // maxRetries[Ack] == 1
	now := time.Unix(0, 0)
	tm.Start(now, time.Millisecond)

	_, failed := tm.IsExpired(now.Add(time.Millisecond), time.Millisecond)
	assert.True(t, failed)
	assert.False(t, tm.IsRunning())
}

func TestTimerUnlimitedRetriesNeverFail(t *testing.T) {
	tm := NewTimer(T3RTX) // maxRetries[T3RTX] == 0 (unlimited)
	now := time.Unix(0, 0)
	tm.Start(now, time.Millisecond)

	deadline := now
	for i := 0; i < 50; i++ {
		deadline, _ = tm.Deadline()
		expired, failed := tm.IsExpired(deadline, time.Millisecond)
		assert.True(t, expired)
		assert.False(t, failed)
	}
}

func TestBackoffCapsAtRTOMax(t *testing.T) {
	d := backoff(time.Second, 20)
	assert.Equal(t, RTOMax, d)
}

func TestTableNextDeadlinePicksEarliest(t *testing.T) {
	table := NewTable()
	now := time.Unix(100, 0)

	table.Get(T3RTX).Start(now, 5*time.Second)
	table.Get(Ack).Start(now, time.Second)

	deadline, ok := table.NextDeadline()
	assert.True(t, ok)
	assert.Equal(t, now.Add(time.Second), deadline)
}

func TestTableNextDeadlineEmpty(t *testing.T) {
	table := NewTable()
	_, ok := table.NextDeadline()
	assert.False(t, ok)
}
