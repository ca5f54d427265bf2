package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconfigRoundTripsOutgoingResetRequest(t *testing.T) {
	in := &Reconfig{OutgoingReset: &OutgoingResetRequest{
		ReconfigRequestSequence: 1,
		SenderLastTSN:           99,
		StreamIdentifiers:       []uint16{3, 5, 7},
	}}
	raw, err := in.Marshal()
	require.NoError(t, err)

	out := &Reconfig{}
	require.NoError(t, out.Unmarshal(raw))
	require.NotNil(t, out.OutgoingReset)
	assert.Equal(t, uint32(1), out.OutgoingReset.ReconfigRequestSequence)
	assert.Equal(t, uint32(99), out.OutgoingReset.SenderLastTSN)
	assert.Equal(t, []uint16{3, 5, 7}, out.OutgoingReset.StreamIdentifiers)
	assert.Nil(t, out.Response)
}

func TestReconfigRoundTripsBothRequestAndResponse(t *testing.T) {
	in := &Reconfig{
		OutgoingReset: &OutgoingResetRequest{ReconfigRequestSequence: 2, StreamIdentifiers: []uint16{1}},
		Response:      &ReconfigResponse{ReconfigResponseSequence: 9, Result: ReconfigResultSuccessPerformed},
	}
	raw, err := in.Marshal()
	require.NoError(t, err)

	out := &Reconfig{}
	require.NoError(t, out.Unmarshal(raw))
	require.NotNil(t, out.Response)
	assert.Equal(t, uint32(9), out.Response.ReconfigResponseSequence)
	assert.Equal(t, ReconfigResultSuccessPerformed, out.Response.Result)
}

func TestForwardTSNRoundTrip(t *testing.T) {
	in := &ForwardTSN{
		NewCumulativeTSN: 42,
		Streams: []ForwardTSNStream{
			{Identifier: 1, Sequence: 10},
			{Identifier: 2, Sequence: 20},
		},
	}
	raw, err := in.Marshal()
	require.NoError(t, err)

	out := &ForwardTSN{}
	require.NoError(t, out.Unmarshal(raw))
	assert.Equal(t, uint32(42), out.NewCumulativeTSN)
	assert.Equal(t, in.Streams, out.Streams)
}
