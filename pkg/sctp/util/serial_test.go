package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSna32Ordering(t *testing.T) {
	assert.True(t, Sna32LT(1, 2))
	assert.False(t, Sna32LT(2, 1))
	assert.True(t, Sna32LTE(2, 2))
	assert.True(t, Sna32GT(2, 1))
	assert.True(t, Sna32GTE(2, 2))
}

func TestSna32Wraparound(t *testing.T) {
	max := uint32(math.MaxUint32)
	// max is "just before" 0 in serial-number space.
	assert.True(t, Sna32LT(max, 0))
	assert.True(t, Sna32GT(0, max))
	assert.False(t, Sna32LT(0, max))
}

func TestSna32MaxMin(t *testing.T) {
	assert.Equal(t, uint32(5), Sna32Max(5, 3))
	assert.Equal(t, uint32(3), Sna32Min(5, 3))
	// wraparound: 0 is logically after max.
	assert.Equal(t, uint32(0), Sna32Max(0, math.MaxUint32))
}

func TestSna16Ordering(t *testing.T) {
	assert.True(t, Sna16LT(1, 2))
	assert.True(t, Sna16LTE(2, 2))
	assert.True(t, Sna16GT(2, 1))
	assert.True(t, Sna16GTE(2, 2))
}

func TestSna16Wraparound(t *testing.T) {
	max := uint16(math.MaxUint16)
	assert.True(t, Sna16LT(max, 0))
	assert.True(t, Sna16GT(0, max))
}
