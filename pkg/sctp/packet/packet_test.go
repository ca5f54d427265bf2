package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
)

func marshalValid(t *testing.T, p *Packet) []byte {
	t.Helper()
	raw, err := Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestDecodeFinishRoundTripsDataChunk(t *testing.T) {
	p := &Packet{
		CommonHeader: CommonHeader{SourcePort: 5000, DestinationPort: 5001, VerificationTag: 42},
		Chunks: []chunk.Chunk{&chunk.Data{
			TSN: 1, StreamID: 2, UserData: []byte("hi"), BeginningFragment: true, EndingFragment: true,
		}},
	}
	raw := marshalValid(t, p)

	pd, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, chunk.CTData, pd.FirstChunkType)
	assert.Equal(t, uint32(42), pd.CommonHeader.VerificationTag)

	out, err := pd.Finish()
	require.NoError(t, err)
	require.Len(t, out.Chunks, 1)
	d := out.Chunks[0].(*chunk.Data)
	assert.Equal(t, uint32(1), d.TSN)
	assert.Equal(t, "hi", string(d.UserData))
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	p := &Packet{
		CommonHeader: CommonHeader{SourcePort: 1, DestinationPort: 2},
		Chunks:       []chunk.Chunk{&chunk.CookieAck{}},
	}
	raw := marshalValid(t, p)
	raw[len(raw)-1] ^= 0xff

	_, err := Decode(raw)
	assert.Equal(t, ErrChecksumMismatch, err)
}

func TestDecodeRejectsZeroPorts(t *testing.T) {
	p := &Packet{
		CommonHeader: CommonHeader{SourcePort: 0, DestinationPort: 1},
		Chunks:       []chunk.Chunk{&chunk.CookieAck{}},
	}
	raw := marshalValid(t, p)

	_, err := Decode(raw)
	assert.Equal(t, ErrPortZero, err)
}

func TestDecodeRejectsNonZeroInitVerificationTag(t *testing.T) {
	p := &Packet{
		CommonHeader: CommonHeader{SourcePort: 1, DestinationPort: 2, VerificationTag: 7},
		Chunks:       []chunk.Chunk{&chunk.Init{InitiateTag: 99}},
	}
	raw := marshalValid(t, p)

	_, err := Decode(raw)
	assert.Equal(t, ErrInitVerificationTagNonZero, err)
}

func TestDecodePeeksInitiateTagWithoutFullParse(t *testing.T) {
	p := &Packet{
		CommonHeader: CommonHeader{SourcePort: 1, DestinationPort: 2},
		Chunks:       []chunk.Chunk{&chunk.Init{InitiateTag: 12345}},
	}
	raw := marshalValid(t, p)

	pd, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, pd.InitiateTag)
	assert.Equal(t, uint32(12345), *pd.InitiateTag)
}

func TestFinishRejectsInitBundledWithOtherChunks(t *testing.T) {
	p := &Packet{
		CommonHeader: CommonHeader{SourcePort: 1, DestinationPort: 2},
		Chunks: []chunk.Chunk{
			&chunk.Init{InitiateTag: 1},
			&chunk.CookieAck{},
		},
	}
	raw := marshalValid(t, p)

	// Decode only classifies the first chunk; bundling is rejected by
	// Finish once every chunk has been parsed.
	pd, err := Decode(raw)
	require.NoError(t, err)
	_, err = pd.Finish()
	assert.Equal(t, ErrInitMustNotBeBundled, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.Equal(t, ErrRawTooSmall, err)
}
