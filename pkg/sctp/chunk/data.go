package chunk

import "encoding/binary"

const dataFixedLen = 12 // TSN(4) + StreamID(2) + SSN(2) + PPID(4)

// Data flags (RFC 4960 §3.3.1).
const (
	flagEndingFragment     = 1 << 0
	flagBeginningFragment  = 1 << 1
	flagUnordered          = 1 << 2
	flagImmediateSACK      = 1 << 3 // SCTP_IMMEDIATE_SACK, a udp-backed extension many stacks honor
)

// Data is the wire representation of a DATA chunk (RFC 4960 §3.3.1). The
// richer in-flight bookkeeping (nsent, acked, retransmit, abandoned,
// since, miss_indicator) lives on queue.Entry, which holds a Data by
// value — keeping the wire struct free of transport state the
// way the original keeps ChunkPayloadData's wire fields separate from its
// retransmission bookkeeping.
type Data struct {
	TSN               uint32
	StreamID          uint16
	StreamSequence    uint16
	PayloadProtocolID uint32
	UserData          []byte
	BeginningFragment bool
	EndingFragment    bool
	Unordered         bool
	ImmediateSACK     bool
}

func (d *Data) Type() Type { return CTData }

func (d *Data) ValueLength() int { return dataFixedLen + len(d.UserData) }

func (d *Data) Marshal() ([]byte, error) {
	vl := d.ValueLength()
	var flags byte
	if d.EndingFragment {
		flags |= flagEndingFragment
	}
	if d.BeginningFragment {
		flags |= flagBeginningFragment
	}
	if d.Unordered {
		flags |= flagUnordered
	}
	if d.ImmediateSACK {
		flags |= flagImmediateSACK
	}
	hdr := Header{Type: CTData, Flags: flags, Length: uint16(HeaderLen + vl)}
	buf := make([]byte, PadTo4(HeaderLen+vl))
	copy(buf, hdr.Marshal())
	off := HeaderLen
	binary.BigEndian.PutUint32(buf[off:], d.TSN)
	binary.BigEndian.PutUint16(buf[off+4:], d.StreamID)
	binary.BigEndian.PutUint16(buf[off+6:], d.StreamSequence)
	binary.BigEndian.PutUint32(buf[off+8:], d.PayloadProtocolID)
	copy(buf[off+dataFixedLen:], d.UserData)
	return buf, nil
}

func (d *Data) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTData {
		return ErrChunkTypeMismatch
	}
	if len(raw) < HeaderLen+dataFixedLen {
		return ErrChunkValueTooSmall
	}
	d.EndingFragment = h.Flags&flagEndingFragment != 0
	d.BeginningFragment = h.Flags&flagBeginningFragment != 0
	d.Unordered = h.Flags&flagUnordered != 0
	d.ImmediateSACK = h.Flags&flagImmediateSACK != 0
	v := raw[HeaderLen:]
	d.TSN = binary.BigEndian.Uint32(v[0:4])
	d.StreamID = binary.BigEndian.Uint16(v[4:6])
	d.StreamSequence = binary.BigEndian.Uint16(v[6:8])
	d.PayloadProtocolID = binary.BigEndian.Uint32(v[8:12])
	end := int(h.Length) - HeaderLen - dataFixedLen
	if end < 0 || dataFixedLen+end > len(v) {
		return ErrChunkValueTooSmall
	}
	d.UserData = append([]byte(nil), v[dataFixedLen:dataFixedLen+end]...)
	return nil
}
