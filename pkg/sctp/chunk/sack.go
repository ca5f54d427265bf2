package chunk

import "encoding/binary"

// sackFixedLen: CumulativeTSNAck(4) + ARwnd(4) + NumGapBlocks(2) + NumDupTSN(2).
const sackFixedLen = 12

// GapAckBlock is one gap ack block of a SACK (RFC 4960 §3.3.4), expressed
// as an offset from the chunk's cumulative TSN ack.
type GapAckBlock struct {
	Start uint16
	End   uint16
}

// Sack is the wire representation of a SACK chunk.
type Sack struct {
	CumulativeTSNAck uint32
	ARwnd            uint32
	GapAckBlocks     []GapAckBlock
	DuplicateTSN     []uint32
}

func (s *Sack) Type() Type { return CTSack }

func (s *Sack) ValueLength() int {
	return sackFixedLen + 4*len(s.GapAckBlocks) + 4*len(s.DuplicateTSN)
}

func (s *Sack) Marshal() ([]byte, error) {
	vl := s.ValueLength()
	hdr := Header{Type: CTSack, Length: uint16(HeaderLen + vl)}
	buf := make([]byte, PadTo4(HeaderLen+vl))
	copy(buf, hdr.Marshal())
	off := HeaderLen
	binary.BigEndian.PutUint32(buf[off:], s.CumulativeTSNAck)
	binary.BigEndian.PutUint32(buf[off+4:], s.ARwnd)
	binary.BigEndian.PutUint16(buf[off+8:], uint16(len(s.GapAckBlocks)))
	binary.BigEndian.PutUint16(buf[off+10:], uint16(len(s.DuplicateTSN)))
	off += sackFixedLen
	for _, g := range s.GapAckBlocks {
		binary.BigEndian.PutUint16(buf[off:], g.Start)
		binary.BigEndian.PutUint16(buf[off+2:], g.End)
		off += 4
	}
	for _, d := range s.DuplicateTSN {
		binary.BigEndian.PutUint32(buf[off:], d)
		off += 4
	}
	return buf, nil
}

func (s *Sack) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTSack {
		return ErrChunkTypeMismatch
	}
	if len(raw) < HeaderLen+sackFixedLen {
		return ErrChunkValueTooSmall
	}
	v := raw[HeaderLen:]
	s.CumulativeTSNAck = binary.BigEndian.Uint32(v[0:4])
	s.ARwnd = binary.BigEndian.Uint32(v[4:8])
	numGap := int(binary.BigEndian.Uint16(v[8:10]))
	numDup := int(binary.BigEndian.Uint16(v[10:12]))
	off := sackFixedLen
	need := off + 4*numGap + 4*numDup
	if need > len(v) {
		return ErrChunkValueTooSmall
	}
	s.GapAckBlocks = make([]GapAckBlock, numGap)
	for i := 0; i < numGap; i++ {
		s.GapAckBlocks[i] = GapAckBlock{
			Start: binary.BigEndian.Uint16(v[off:]),
			End:   binary.BigEndian.Uint16(v[off+2:]),
		}
		off += 4
	}
	s.DuplicateTSN = make([]uint32, numDup)
	for i := 0; i < numDup; i++ {
		s.DuplicateTSN[i] = binary.BigEndian.Uint32(v[off:])
		off += 4
	}
	return nil
}
