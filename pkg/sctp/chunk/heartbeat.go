package chunk

const heartbeatInfoParam = ParamType(1)

// Heartbeat carries an opaque Heartbeat Info parameter. This side never
// originates one on its own path-idle timer, but must echo the Info
// field back unchanged in a HEARTBEAT-ACK whenever the peer sends one
// (RFC 4960 §8.3).
type Heartbeat struct {
	IsAck  bool
	Info   []byte
}

func (h *Heartbeat) Type() Type {
	if h.IsAck {
		return CTHeartbeatAck
	}
	return CTHeartbeat
}

func (h *Heartbeat) ValueLength() int {
	return PadTo4(paramHeaderLen + len(h.Info))
}

func (h *Heartbeat) Marshal() ([]byte, error) {
	vl := h.ValueLength()
	hdr := Header{Type: h.Type(), Length: uint16(HeaderLen + vl)}
	buf := make([]byte, PadTo4(HeaderLen+vl))
	copy(buf, hdr.Marshal())
	copy(buf[HeaderLen:], marshalParam(heartbeatInfoParam, h.Info))
	return buf, nil
}

func (h *Heartbeat) Unmarshal(raw []byte) error {
	hdr, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if hdr.Type != CTHeartbeat && hdr.Type != CTHeartbeatAck {
		return ErrChunkTypeMismatch
	}
	h.IsAck = hdr.Type == CTHeartbeatAck
	if len(raw) < HeaderLen+paramHeaderLen {
		return ErrChunkValueTooSmall
	}
	params, err := ParseParams(raw[HeaderLen:int(hdr.Length)])
	if err != nil {
		return err
	}
	for _, p := range params {
		if p.Type == heartbeatInfoParam {
			h.Info = append([]byte(nil), p.Value...)
		}
	}
	return nil
}
