package chunk

import "encoding/binary"

// ForwardTSNStream names one ordered stream whose abandoned SSN the
// receiver should stop waiting for (RFC 3758 §3.2).
type ForwardTSNStream struct {
	Identifier uint16
	Sequence   uint16
}

// ForwardTSN is a FORWARD-TSN chunk (RFC 3758 §3.2), the partial-reliability
// extension §4.6 implements.
type ForwardTSN struct {
	NewCumulativeTSN uint32
	Streams          []ForwardTSNStream
}

func (f *ForwardTSN) Type() Type       { return CTForwardTSN }
func (f *ForwardTSN) ValueLength() int { return 4 + 4*len(f.Streams) }

func (f *ForwardTSN) Marshal() ([]byte, error) {
	vl := f.ValueLength()
	hdr := Header{Type: CTForwardTSN, Length: uint16(HeaderLen + vl)}
	buf := make([]byte, PadTo4(HeaderLen+vl))
	copy(buf, hdr.Marshal())
	off := HeaderLen
	binary.BigEndian.PutUint32(buf[off:], f.NewCumulativeTSN)
	off += 4
	for _, s := range f.Streams {
		binary.BigEndian.PutUint16(buf[off:], s.Identifier)
		binary.BigEndian.PutUint16(buf[off+2:], s.Sequence)
		off += 4
	}
	return buf, nil
}

func (f *ForwardTSN) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTForwardTSN {
		return ErrChunkTypeMismatch
	}
	if len(raw) < HeaderLen+4 {
		return ErrChunkValueTooSmall
	}
	v := raw[HeaderLen:h.Length]
	f.NewCumulativeTSN = binary.BigEndian.Uint32(v[0:4])
	for off := 4; off+4 <= len(v); off += 4 {
		f.Streams = append(f.Streams, ForwardTSNStream{
			Identifier: binary.BigEndian.Uint16(v[off:]),
			Sequence:   binary.BigEndian.Uint16(v[off+2:]),
		})
	}
	return nil
}
