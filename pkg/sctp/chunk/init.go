package chunk

import "encoding/binary"

// initFixedLen is the fixed portion of an INIT/INIT-ACK value: initiate
// tag, a_rwnd, number of outbound streams, number of inbound streams,
// initial TSN (RFC 4960 §3.3.2/§3.3.3).
const initFixedLen = 16

// Init represents both INIT and INIT-ACK; IsAck distinguishes them since
// the two share an identical fixed layout and differ only in chunk type
// and in which parameters are legal (e.g. the state cookie is INIT-ACK
// only).
type Init struct {
	IsAck              bool
	InitiateTag        uint32
	AdvertisedRwnd     uint32
	NumOutboundStreams uint16
	NumInboundStreams  uint16
	InitialTSN         uint32
	Cookie             []byte // INIT-ACK only
	Params             []Param
}

func (i *Init) Type() Type {
	if i.IsAck {
		return CTInitAck
	}
	return CTInit
}

func (i *Init) ValueLength() int {
	n := initFixedLen
	for _, p := range i.Params {
		n += PadTo4(paramHeaderLen + len(p.Value))
	}
	if i.IsAck {
		n += PadTo4(paramHeaderLen + len(i.Cookie))
	}
	return n
}

func (i *Init) Marshal() ([]byte, error) {
	vl := i.ValueLength()
	hdr := Header{Type: i.Type(), Length: uint16(HeaderLen + vl)}
	buf := make([]byte, PadTo4(HeaderLen+vl))
	copy(buf, hdr.Marshal())
	off := HeaderLen
	binary.BigEndian.PutUint32(buf[off:], i.InitiateTag)
	binary.BigEndian.PutUint32(buf[off+4:], i.AdvertisedRwnd)
	binary.BigEndian.PutUint16(buf[off+8:], i.NumOutboundStreams)
	binary.BigEndian.PutUint16(buf[off+10:], i.NumInboundStreams)
	binary.BigEndian.PutUint32(buf[off+12:], i.InitialTSN)
	off += initFixedLen
	if i.IsAck {
		cookie := marshalParam(0x0007, i.Cookie) // State Cookie, RFC 4960 §3.3.3
		copy(buf[off:], cookie)
		off += len(cookie)
	}
	for _, p := range i.Params {
		raw := marshalParam(p.Type, p.Value)
		copy(buf[off:], raw)
		off += len(raw)
	}
	return buf, nil
}

func (i *Init) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTInit && h.Type != CTInitAck {
		return ErrChunkTypeMismatch
	}
	i.IsAck = h.Type == CTInitAck
	if len(raw) < HeaderLen+initFixedLen {
		return ErrChunkValueTooSmall
	}
	v := raw[HeaderLen:]
	i.InitiateTag = binary.BigEndian.Uint32(v[0:4])
	i.AdvertisedRwnd = binary.BigEndian.Uint32(v[4:8])
	i.NumOutboundStreams = binary.BigEndian.Uint16(v[8:10])
	i.NumInboundStreams = binary.BigEndian.Uint16(v[10:12])
	i.InitialTSN = binary.BigEndian.Uint32(v[12:16])

	rest := v[initFixedLen:]
	if int(h.Length) > HeaderLen+initFixedLen {
		rest = rest[:int(h.Length)-HeaderLen-initFixedLen]
	} else {
		rest = nil
	}
	params, err := ParseParams(rest)
	if err != nil {
		return err
	}
	i.Params = params[:0]
	for _, p := range params {
		if p.Type == 0x0007 {
			i.Cookie = p.Value
			continue
		}
		i.Params = append(i.Params, p)
	}
	return nil
}
