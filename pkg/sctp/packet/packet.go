// Package packet turns a raw datagram into chunks: the common header
// plus a two-phase decode (PartialDecode then Finish), so a demuxer can
// peek the verification tag and first chunk type before committing to a
// full parse.
package packet

import (
	"encoding/binary"
	"errors"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/crc32c"
)

// HeaderLen is the 12-byte SCTP common header (RFC 4960 §3.1).
const HeaderLen = 12

var (
	ErrRawTooSmall              = errors.New("packet: raw data too small for a common header")
	ErrChecksumMismatch         = errors.New("packet: checksum mismatch")
	ErrNotEnoughDataForChunk    = errors.New("packet: not enough data for a chunk header")
	ErrPortZero                 = errors.New("packet: source or destination port is zero")
	ErrInitMustNotBeBundled     = errors.New("packet: INIT/INIT-ACK must not be bundled with other chunks")
	ErrInitVerificationTagNonZero = errors.New("packet: INIT carries a non-zero verification tag")
)

// CommonHeader is the fixed 12-byte SCTP packet header.
type CommonHeader struct {
	SourcePort      uint16
	DestinationPort uint16
	VerificationTag uint32
}

// PartialDecode is the first phase of decoding: enough to route the
// datagram to an association (by verification tag) and to special-case
// INIT/INIT-ACK/COOKIE-ECHO, without paying for a full chunk parse.
type PartialDecode struct {
	CommonHeader   CommonHeader
	remaining      []byte
	FirstChunkType chunk.Type
	InitiateTag    *uint32
	Cookie         []byte
}

// Decode validates the checksum and common header, and classifies the
// first chunk without fully parsing the chunk list.
func Decode(raw []byte) (*PartialDecode, error) {
	if len(raw) < HeaderLen {
		return nil, ErrRawTooSmall
	}
	if !crc32c.Verify(raw, 8) {
		return nil, ErrChecksumMismatch
	}
	sourcePort := binary.BigEndian.Uint16(raw[0:2])
	destPort := binary.BigEndian.Uint16(raw[2:4])
	if sourcePort == 0 || destPort == 0 {
		return nil, ErrPortZero
	}
	verificationTag := binary.BigEndian.Uint32(raw[4:8])

	rest := raw[HeaderLen:]
	if len(rest) < chunk.HeaderLen {
		return nil, ErrNotEnoughDataForChunk
	}
	h, err := chunk.UnmarshalHeader(rest)
	if err != nil {
		return nil, err
	}

	pd := &PartialDecode{
		CommonHeader:   CommonHeader{SourcePort: sourcePort, DestinationPort: destPort, VerificationTag: verificationTag},
		remaining:      rest,
		FirstChunkType: h.Type,
	}
	switch h.Type {
	case chunk.CTInit, chunk.CTInitAck:
		if len(rest) < chunk.HeaderLen+4 {
			return nil, ErrNotEnoughDataForChunk
		}
		tag := binary.BigEndian.Uint32(rest[chunk.HeaderLen:])
		pd.InitiateTag = &tag
		if h.Type == chunk.CTInit && verificationTag != 0 {
			return nil, ErrInitVerificationTagNonZero
		}
	case chunk.CTCookieEcho:
		end := int(h.Length)
		if end > len(rest) {
			return nil, ErrNotEnoughDataForChunk
		}
		pd.Cookie = rest[chunk.HeaderLen:end]
	}
	return pd, nil
}

// Packet is a fully decoded SCTP packet: a common header plus its chunks
// in wire order.
type Packet struct {
	CommonHeader CommonHeader
	Chunks       []chunk.Chunk
}

// Finish completes decoding every chunk in the packet. §6 requires
// INIT/INIT-ACK never be bundled with other chunks.
func (pd *PartialDecode) Finish() (*Packet, error) {
	var chunks []chunk.Chunk
	raw := pd.remaining
	offset := 0
	for offset != len(raw) {
		if offset+chunk.HeaderLen > len(raw) {
			return nil, ErrNotEnoughDataForChunk
		}
		h, err := chunk.UnmarshalHeader(raw[offset:])
		if err != nil {
			return nil, err
		}
		end := offset + int(h.Length)
		if end > len(raw) {
			return nil, ErrNotEnoughDataForChunk
		}
		c, err := decodeChunk(h.Type, raw[offset:end])
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
		offset += chunk.PadTo4(int(h.Length))
	}
	if len(chunks) > 1 {
		for _, c := range chunks {
			if c.Type() == chunk.CTInit || c.Type() == chunk.CTInitAck {
				return nil, ErrInitMustNotBeBundled
			}
		}
	}
	return &Packet{CommonHeader: pd.CommonHeader, Chunks: chunks}, nil
}

// decodeChunk dispatches on the tagged type, per §9's exhaustive-match
// guidance, rather than introspecting a boxed interface at runtime.
func decodeChunk(t chunk.Type, raw []byte) (chunk.Chunk, error) {
	var c chunk.Chunk
	switch t {
	case chunk.CTData:
		c = &chunk.Data{}
	case chunk.CTInit, chunk.CTInitAck:
		c = &chunk.Init{}
	case chunk.CTSack:
		c = &chunk.Sack{}
	case chunk.CTHeartbeat, chunk.CTHeartbeatAck:
		c = &chunk.Heartbeat{}
	case chunk.CTAbort:
		c = &chunk.Abort{}
	case chunk.CTShutdown:
		c = &chunk.Shutdown{}
	case chunk.CTShutdownAck:
		c = &chunk.ShutdownAck{}
	case chunk.CTError:
		c = &chunk.Error{}
	case chunk.CTCookieEcho:
		c = &chunk.CookieEcho{}
	case chunk.CTCookieAck:
		c = &chunk.CookieAck{}
	case chunk.CTShutdownComplete:
		c = &chunk.ShutdownComplete{}
	case chunk.CTReconfig:
		c = &chunk.Reconfig{}
	case chunk.CTForwardTSN:
		c = &chunk.ForwardTSN{}
	default:
		return nil, ErrUnrecognizedChunkType{T: t}
	}
	if err := c.Unmarshal(raw); err != nil {
		return nil, err
	}
	return c, nil
}

// ErrUnrecognizedChunkType is returned by Finish when a chunk type this
// codec does not know is encountered. The association state machine turns
// this into an ERROR chunk carrying UnrecognizedChunkType per §4.1.
type ErrUnrecognizedChunkType struct {
	T chunk.Type
}

func (e ErrUnrecognizedChunkType) Error() string {
	return "packet: unrecognized chunk type " + e.T.String()
}

// Marshal serializes a packet, computing and installing the CRC32c
// checksum over the whole datagram.
func Marshal(p *Packet) ([]byte, error) {
	body := make([][]byte, len(p.Chunks))
	total := HeaderLen
	for i, c := range p.Chunks {
		raw, err := c.Marshal()
		if err != nil {
			return nil, err
		}
		body[i] = raw
		total += len(raw)
	}
	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], p.CommonHeader.SourcePort)
	binary.BigEndian.PutUint16(buf[2:4], p.CommonHeader.DestinationPort)
	binary.BigEndian.PutUint32(buf[4:8], p.CommonHeader.VerificationTag)
	off := HeaderLen
	for _, raw := range body {
		copy(buf[off:], raw)
		off += len(raw)
	}
	crc32c.PutChecksum(buf, 8)
	return buf, nil
}
