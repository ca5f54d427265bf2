package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRTOManagerInitialEstimate(t *testing.T) {
	m := NewRTOManager()
	assert.False(t, m.HasSample())
	assert.Equal(t, RTOInitial, m.RTO())
}

func TestRTOManagerFirstSampleSeedsSRTT(t *testing.T) {
	m := NewRTOManager()
	m.SetNewRTT(200 * time.Millisecond)
	assert.True(t, m.HasSample())
	assert.Equal(t, 200*time.Millisecond, m.SRTT())
	assert.Equal(t, 100*time.Millisecond, m.RTTVAR())
}

func TestRTOManagerClampsToMinAndMax(t *testing.T) {
	m := NewRTOManager()
	m.SetNewRTT(time.Microsecond)
	assert.GreaterOrEqual(t, m.RTO(), RTOMin)

	m2 := NewRTOManager()
	m2.SetNewRTT(time.Hour)
	assert.LessOrEqual(t, m2.RTO(), RTOMax)
}

func TestRTOManagerConverges(t *testing.T) {
	m := NewRTOManager()
	for i := 0; i < 50; i++ {
		m.SetNewRTT(100 * time.Millisecond)
	}
	// after many identical samples SRTT should settle near the sample and
	// RTTVAR should shrink toward zero.
	assert.InDelta(t, float64(100*time.Millisecond), float64(m.SRTT()), float64(2*time.Millisecond))
	assert.Less(t, m.RTTVAR(), 5*time.Millisecond)
}
