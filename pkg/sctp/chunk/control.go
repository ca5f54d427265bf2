package chunk

import "encoding/binary"

const errorCauseHeaderLen = 4

// ErrorCause is one cause within an ABORT or ERROR chunk (RFC 4960 §3.3.10).
type ErrorCause struct {
	Code CauseCode
	Info []byte
}

func marshalCauses(causes []ErrorCause) []byte {
	var total int
	for _, c := range causes {
		total += PadTo4(errorCauseHeaderLen + len(c.Info))
	}
	buf := make([]byte, total)
	off := 0
	for _, c := range causes {
		l := errorCauseHeaderLen + len(c.Info)
		binary.BigEndian.PutUint16(buf[off:], uint16(c.Code))
		binary.BigEndian.PutUint16(buf[off+2:], uint16(l))
		copy(buf[off+errorCauseHeaderLen:], c.Info)
		off += PadTo4(l)
	}
	return buf
}

func parseCauses(raw []byte) ([]ErrorCause, error) {
	var causes []ErrorCause
	for len(raw) > 0 {
		if len(raw) < errorCauseHeaderLen {
			return nil, ErrChunkValueTooSmall
		}
		code := CauseCode(binary.BigEndian.Uint16(raw[0:2]))
		l := int(binary.BigEndian.Uint16(raw[2:4]))
		if l < errorCauseHeaderLen || l > len(raw) {
			return nil, ErrChunkValueTooSmall
		}
		causes = append(causes, ErrorCause{Code: code, Info: raw[errorCauseHeaderLen:l]})
		raw = raw[PadTo4(l):]
	}
	return causes, nil
}

// flagVerificationTagReflected is the ABORT/SHUTDOWN-COMPLETE T-bit: when
// set, the verification tag in the common header was copied from the
// packet that caused this chunk rather than being this association's own
// tag (RFC 4960 §3.3.7/§3.3.9, used for out-of-the-blue replies).
const flagVerificationTagReflected = 1 << 0

// Abort is an ABORT chunk (RFC 4960 §3.3.7).
type Abort struct {
	VerificationTagReflected bool
	Causes                   []ErrorCause
}

func (a *Abort) Type() Type        { return CTAbort }
func (a *Abort) ValueLength() int  { return len(marshalCauses(a.Causes)) }
func (a *Abort) Marshal() ([]byte, error) {
	v := marshalCauses(a.Causes)
	var flags byte
	if a.VerificationTagReflected {
		flags |= flagVerificationTagReflected
	}
	hdr := Header{Type: CTAbort, Flags: flags, Length: uint16(HeaderLen + len(v))}
	buf := make([]byte, PadTo4(HeaderLen+len(v)))
	copy(buf, hdr.Marshal())
	copy(buf[HeaderLen:], v)
	return buf, nil
}
func (a *Abort) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTAbort {
		return ErrChunkTypeMismatch
	}
	a.VerificationTagReflected = h.Flags&flagVerificationTagReflected != 0
	if int(h.Length) > len(raw) {
		return ErrChunkValueTooSmall
	}
	causes, err := parseCauses(raw[HeaderLen:h.Length])
	if err != nil {
		return err
	}
	a.Causes = causes
	return nil
}

// HasUserInitiatedAbort reports whether this ABORT was raised for the
// user-initiated reason, which §4.1 requires the state machine to treat
// as a clean close rather than a TransportError.
func (a *Abort) HasUserInitiatedAbort() bool {
	for _, c := range a.Causes {
		if c.Code == CauseUserInitiatedAbort {
			return true
		}
	}
	return false
}

// Error is an ERROR chunk (RFC 4960 §3.3.10).
type Error struct {
	Causes []ErrorCause
}

func (e *Error) Type() Type       { return CTError }
func (e *Error) ValueLength() int { return len(marshalCauses(e.Causes)) }
func (e *Error) Marshal() ([]byte, error) {
	v := marshalCauses(e.Causes)
	hdr := Header{Type: CTError, Length: uint16(HeaderLen + len(v))}
	buf := make([]byte, PadTo4(HeaderLen+len(v)))
	copy(buf, hdr.Marshal())
	copy(buf[HeaderLen:], v)
	return buf, nil
}
func (e *Error) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTError {
		return ErrChunkTypeMismatch
	}
	if int(h.Length) > len(raw) {
		return ErrChunkValueTooSmall
	}
	causes, err := parseCauses(raw[HeaderLen:h.Length])
	if err != nil {
		return err
	}
	e.Causes = causes
	return nil
}

// CookieEcho carries the opaque state cookie the server issued in
// INIT-ACK (RFC 4960 §3.3.11). Verifying its integrity is the server's
// job once it's unmarshaled; this struct only carries the bytes.
type CookieEcho struct {
	Cookie []byte
}

func (c *CookieEcho) Type() Type       { return CTCookieEcho }
func (c *CookieEcho) ValueLength() int { return len(c.Cookie) }
func (c *CookieEcho) Marshal() ([]byte, error) {
	hdr := Header{Type: CTCookieEcho, Length: uint16(HeaderLen + len(c.Cookie))}
	buf := make([]byte, PadTo4(HeaderLen+len(c.Cookie)))
	copy(buf, hdr.Marshal())
	copy(buf[HeaderLen:], c.Cookie)
	return buf, nil
}
func (c *CookieEcho) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTCookieEcho {
		return ErrChunkTypeMismatch
	}
	if int(h.Length) > len(raw) {
		return ErrChunkValueTooSmall
	}
	c.Cookie = append([]byte(nil), raw[HeaderLen:h.Length]...)
	return nil
}

// CookieAck is a COOKIE-ACK chunk (RFC 4960 §3.3.12); it carries no value.
type CookieAck struct{}

func (CookieAck) Type() Type       { return CTCookieAck }
func (CookieAck) ValueLength() int { return 0 }
func (c CookieAck) Marshal() ([]byte, error) {
	return Header{Type: CTCookieAck, Length: HeaderLen}.Marshal(), nil
}
func (c *CookieAck) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTCookieAck {
		return ErrChunkTypeMismatch
	}
	return nil
}

// Shutdown is a SHUTDOWN chunk (RFC 4960 §3.3.8).
type Shutdown struct {
	CumulativeTSNAck uint32
}

func (s *Shutdown) Type() Type       { return CTShutdown }
func (s *Shutdown) ValueLength() int { return 4 }
func (s *Shutdown) Marshal() ([]byte, error) {
	hdr := Header{Type: CTShutdown, Length: HeaderLen + 4}
	buf := make([]byte, HeaderLen+4)
	copy(buf, hdr.Marshal())
	binary.BigEndian.PutUint32(buf[HeaderLen:], s.CumulativeTSNAck)
	return buf, nil
}
func (s *Shutdown) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTShutdown {
		return ErrChunkTypeMismatch
	}
	if len(raw) < HeaderLen+4 {
		return ErrChunkValueTooSmall
	}
	s.CumulativeTSNAck = binary.BigEndian.Uint32(raw[HeaderLen:])
	return nil
}

// ShutdownAck is a SHUTDOWN-ACK chunk (RFC 4960 §3.3.9); no value.
type ShutdownAck struct{}

func (ShutdownAck) Type() Type       { return CTShutdownAck }
func (ShutdownAck) ValueLength() int { return 0 }
func (s ShutdownAck) Marshal() ([]byte, error) {
	return Header{Type: CTShutdownAck, Length: HeaderLen}.Marshal(), nil
}
func (s *ShutdownAck) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTShutdownAck {
		return ErrChunkTypeMismatch
	}
	return nil
}

// ShutdownComplete is a SHUTDOWN-COMPLETE chunk (RFC 4960 §3.3.13).
type ShutdownComplete struct {
	VerificationTagReflected bool
}

func (s *ShutdownComplete) Type() Type       { return CTShutdownComplete }
func (s *ShutdownComplete) ValueLength() int { return 0 }
func (s *ShutdownComplete) Marshal() ([]byte, error) {
	var flags byte
	if s.VerificationTagReflected {
		flags |= flagVerificationTagReflected
	}
	return Header{Type: CTShutdownComplete, Flags: flags, Length: HeaderLen}.Marshal(), nil
}
func (s *ShutdownComplete) Unmarshal(raw []byte) error {
	h, err := UnmarshalHeader(raw)
	if err != nil {
		return err
	}
	if h.Type != CTShutdownComplete {
		return ErrChunkTypeMismatch
	}
	s.VerificationTagReflected = h.Flags&flagVerificationTagReflected != 0
	return nil
}
