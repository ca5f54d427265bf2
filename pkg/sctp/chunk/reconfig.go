package chunk

import "encoding/binary"

// Re-configuration parameter types (RFC 6525 §4).
const (
	paramOutgoingResetRequest ParamType = 0x000d
	paramReconfigResponse     ParamType = 0x0010
)

// ReconfigResult is the result code of a ReconfigResponse (RFC 6525 §4.4).
// The values below are named; others round-trip as opaque uint32s.
type ReconfigResult uint32

const (
	ReconfigResultSuccessNothingToDo ReconfigResult = 0
	ReconfigResultSuccessPerformed   ReconfigResult = 1
	ReconfigResultDenied             ReconfigResult = 2
	ReconfigResultErrorWrongSSN      ReconfigResult = 3
	ReconfigResultInProgress         ReconfigResult = 6
)

// OutgoingResetRequest is the Outgoing SSN Reset Request Parameter
// (RFC 6525 §4.1): the sender asks the peer to stop expecting SSNs on the
// listed streams, reporting the last TSN it will send before the reset
// takes effect.
type OutgoingResetRequest struct {
	ReconfigRequestSequence  uint32
	ReconfigResponseSequence uint32
	SenderLastTSN            uint32
	StreamIdentifiers        []uint16
}

func (r *OutgoingResetRequest) marshal() []byte {
	v := make([]byte, 12+2*len(r.StreamIdentifiers))
	binary.BigEndian.PutUint32(v[0:], r.ReconfigRequestSequence)
	binary.BigEndian.PutUint32(v[4:], r.ReconfigResponseSequence)
	binary.BigEndian.PutUint32(v[8:], r.SenderLastTSN)
	for i, sid := range r.StreamIdentifiers {
		binary.BigEndian.PutUint16(v[12+2*i:], sid)
	}
	return marshalParam(paramOutgoingResetRequest, v)
}

func parseOutgoingResetRequest(v []byte) (*OutgoingResetRequest, error) {
	if len(v) < 12 {
		return nil, ErrParamHeaderTooSmall
	}
	r := &OutgoingResetRequest{
		ReconfigRequestSequence:  binary.BigEndian.Uint32(v[0:]),
		ReconfigResponseSequence: binary.BigEndian.Uint32(v[4:]),
		SenderLastTSN:            binary.BigEndian.Uint32(v[8:]),
	}
	for i := 12; i+2 <= len(v); i += 2 {
		r.StreamIdentifiers = append(r.StreamIdentifiers, binary.BigEndian.Uint16(v[i:]))
	}
	return r, nil
}

// ReconfigResponse is the Re-configuration Response Parameter
// (RFC 6525 §4.4).
type ReconfigResponse struct {
	ReconfigResponseSequence uint32
	Result                   ReconfigResult
}

func (r *ReconfigResponse) marshal() []byte {
	v := make([]byte, 8)
	binary.BigEndian.PutUint32(v[0:], r.ReconfigResponseSequence)
	binary.BigEndian.PutUint32(v[4:], uint32(r.Result))
	return marshalParam(paramReconfigResponse, v)
}

func parseReconfigResponse(v []byte) (*ReconfigResponse, error) {
	if len(v) < 8 {
		return nil, ErrParamHeaderTooSmall
	}
	return &ReconfigResponse{
		ReconfigResponseSequence: binary.BigEndian.Uint32(v[0:]),
		Result:                   ReconfigResult(binary.BigEndian.Uint32(v[4:])),
	}, nil
}

// Reconfig is a RECONFIG chunk (RFC 6525 §3.1). §4.7 only ever needs at
// most one request and one response parameter per chunk, so both are
// optional fields rather than a generic parameter list.
type Reconfig struct {
	OutgoingReset *OutgoingResetRequest
	Response      *ReconfigResponse
}

func (r *Reconfig) Type() Type { return CTReconfig }

func (r *Reconfig) ValueLength() int {
	n := 0
	if r.OutgoingReset != nil {
		n += len(r.OutgoingReset.marshal())
	}
	if r.Response != nil {
		n += len(r.Response.marshal())
	}
	return n
}

func (r *Reconfig) Marshal() ([]byte, error) {
	vl := r.ValueLength()
	hdr := Header{Type: CTReconfig, Length: uint16(HeaderLen + vl)}
	buf := make([]byte, PadTo4(HeaderLen+vl))
	copy(buf, hdr.Marshal())
	off := HeaderLen
	if r.OutgoingReset != nil {
		raw := r.OutgoingReset.marshal()
		copy(buf[off:], raw)
		off += len(raw)
	}
	if r.Response != nil {
		raw := r.Response.marshal()
		copy(buf[off:], raw)
		off += len(raw)
	}
	return buf, nil
}

func (r *Reconfig) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTReconfig {
		return ErrChunkTypeMismatch
	}
	if int(h.Length) > len(raw) {
		return ErrChunkValueTooSmall
	}
	params, err := ParseParams(raw[HeaderLen:h.Length])
	if err != nil {
		return err
	}
	for _, p := range params {
		switch p.Type {
		case paramOutgoingResetRequest:
			req, err := parseOutgoingResetRequest(p.Value)
			if err != nil {
				return err
			}
			r.OutgoingReset = req
		case paramReconfigResponse:
			resp, err := parseReconfigResponse(p.Value)
			if err != nil {
				return err
			}
			r.Response = resp
		}
	}
	return nil
}
