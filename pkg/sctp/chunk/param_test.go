package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupportedExtensionsRoundTrip(t *testing.T) {
	p := MarshalSupportedExtensions()
	assert.True(t, HasForwardTSNSupport([]Param{p}))
	assert.False(t, HasForwardTSNSupport(nil))
	assert.False(t, HasForwardTSNSupport([]Param{{Type: ParamForwardTSNSupported}}))
}

func TestParseParamsRoundTripsThroughInit(t *testing.T) {
	in := &Init{
		InitiateTag:        1,
		AdvertisedRwnd:     2,
		NumOutboundStreams: 3,
		NumInboundStreams:  4,
		InitialTSN:         5,
		Params:             []Param{MarshalSupportedExtensions()},
	}
	raw, err := in.Marshal()
	assert.NoError(t, err)

	out := &Init{}
	assert.NoError(t, out.Unmarshal(raw))
	assert.True(t, HasForwardTSNSupport(out.Params))
}

func TestParseParamsRejectsTruncatedHeader(t *testing.T) {
	_, err := ParseParams([]byte{0x80})
	assert.Error(t, err)
}
