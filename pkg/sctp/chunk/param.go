package chunk

import "encoding/binary"

// ParamType identifies an INIT/INIT-ACK optional/variable-length parameter
// (RFC 4960 §3.3.2.1). Only the subset this engine negotiates is named.
type ParamType uint16

const (
	ParamSupportedExtensions ParamType = 0x8008 // RFC 5061 §4.2.7, carries Forward-TSN capability
	ParamForwardTSNSupported ParamType = 0xc000 // RFC 3758 §3.1
)

// paramHeaderLen is the 4-byte type+length header shared by every
// parameter, mirroring the chunk common header's shape one level down.
const paramHeaderLen = 4

// Param is a decoded INIT/INIT-ACK parameter.
type Param struct {
	Type  ParamType
	Value []byte
}

func marshalParam(typ ParamType, value []byte) []byte {
	l := paramHeaderLen + len(value)
	buf := make([]byte, PadTo4(l))
	binary.BigEndian.PutUint16(buf[0:2], uint16(typ))
	binary.BigEndian.PutUint16(buf[2:4], uint16(l))
	copy(buf[4:], value)
	return buf
}

// MarshalSupportedExtensions builds a Supported Extensions parameter
// listing the Forward-TSN chunk type, the one extension §4.6 negotiates.
func MarshalSupportedExtensions() Param {
	return Param{Type: ParamSupportedExtensions, Value: []byte{byte(CTForwardTSN)}}
}

// ParseParams walks a run of padded INIT/INIT-ACK parameters.
func ParseParams(raw []byte) ([]Param, error) {
	var params []Param
	for len(raw) > 0 {
		if len(raw) < paramHeaderLen {
			return nil, ErrParamHeaderTooSmall
		}
		typ := ParamType(binary.BigEndian.Uint16(raw[0:2]))
		l := int(binary.BigEndian.Uint16(raw[2:4]))
		if l < paramHeaderLen || l > len(raw) {
			return nil, ErrParamHeaderTooSmall
		}
		params = append(params, Param{Type: typ, Value: raw[paramHeaderLen:l]})
		raw = raw[PadTo4(l):]
	}
	return params, nil
}

// HasForwardTSNSupport reports whether a parsed parameter list advertises
// Forward-TSN via the Supported Extensions parameter, which is how both
// sides negotiate use_forward_tsn per §3 and §4.6.
func HasForwardTSNSupport(params []Param) bool {
	for _, p := range params {
		if p.Type == ParamSupportedExtensions {
			for _, ct := range p.Value {
				if Type(ct) == CTForwardTSN {
					return true
				}
			}
		}
	}
	return false
}
