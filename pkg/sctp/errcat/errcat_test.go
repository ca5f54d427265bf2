package errcat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCategoryRoundTrips(t *testing.T) {
	err := New(Transport, errors.New("boom"))
	assert.Equal(t, Transport, GetCategory(err))
	assert.Equal(t, "boom", err.Error())
}

func TestGetCategoryDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, GetCategory(errors.New("uncategorized")))
}

func TestGetCategoryUnwrapsThroughWrapping(t *testing.T) {
	inner := New(User, errors.New("bad request"))
	outer := fmt.Errorf("while doing X: %w", inner)
	assert.Equal(t, User, GetCategory(outer))
}

func TestNewPanicsOnNilErr(t *testing.T) {
	assert.Panics(t, func() { New(Internal, nil) })
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "internal", Internal.String())
	assert.Equal(t, "user", User.String())
	assert.Equal(t, "transport", Transport.String())
}
