package chunk

import "errors"

var (
	ErrChunkHeaderTooSmall  = errors.New("chunk: raw data too small for a chunk header")
	ErrChunkValueTooSmall   = errors.New("chunk: raw data too small for this chunk's value")
	ErrChunkTypeMismatch    = errors.New("chunk: unexpected chunk type during unmarshal")
	ErrParamHeaderTooSmall  = errors.New("chunk: raw data too small for a parameter header")
	ErrUnmarshalInitAckOnly = errors.New("chunk: INIT-ACK-only parameter present in INIT")
)

// CauseCode is an ERROR-chunk cause, RFC 4960 §3.3.10.
type CauseCode uint16

const (
	CauseInvalidStreamIdentifier     CauseCode = 1
	CauseMissingMandatoryParameter   CauseCode = 2
	CauseStaleCookieError            CauseCode = 3
	CauseOutOfResource               CauseCode = 4
	CauseUnresolvableAddress         CauseCode = 5
	CauseUnrecognizedChunkType       CauseCode = 6
	CauseInvalidMandatoryParameter   CauseCode = 7
	CauseUnrecognizedParameters      CauseCode = 8
	CauseNoUserData                  CauseCode = 9
	CauseCookieReceivedWhileShutdown CauseCode = 10
	CauseRestartAssociation          CauseCode = 11
	CauseUserInitiatedAbort          CauseCode = 12
	CauseProtocolViolation           CauseCode = 13
)

func (c CauseCode) String() string {
	switch c {
	case CauseInvalidStreamIdentifier:
		return "invalid stream identifier"
	case CauseMissingMandatoryParameter:
		return "missing mandatory parameter"
	case CauseStaleCookieError:
		return "stale cookie error"
	case CauseOutOfResource:
		return "out of resource"
	case CauseUnresolvableAddress:
		return "unresolvable address"
	case CauseUnrecognizedChunkType:
		return "unrecognized chunk type"
	case CauseInvalidMandatoryParameter:
		return "invalid mandatory parameter"
	case CauseUnrecognizedParameters:
		return "unrecognized parameters"
	case CauseNoUserData:
		return "no user data"
	case CauseCookieReceivedWhileShutdown:
		return "cookie received while shutting down"
	case CauseRestartAssociation:
		return "restart of an association with new addresses"
	case CauseUserInitiatedAbort:
		return "user-initiated abort"
	case CauseProtocolViolation:
		return "protocol violation"
	default:
		return "unknown cause"
	}
}
