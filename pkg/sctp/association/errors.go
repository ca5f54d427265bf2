package association

import (
	"errors"

	"github.com/datawire/sctp-proto/pkg/sctp/errcat"
)

// Reason classifies why an association was lost, carried inside an
// AssociationLost application event.
type Reason int

const (
	ReasonHandshakeFailed Reason = iota
	ReasonTransportError
	ReasonAssociationClosed
	ReasonApplicationClosed
	ReasonReset
	ReasonTimedOut
	ReasonLocallyClosed
)

func (r Reason) String() string {
	switch r {
	case ReasonHandshakeFailed:
		return "handshake failed"
	case ReasonTransportError:
		return "transport error"
	case ReasonAssociationClosed:
		return "peer aborted the association"
	case ReasonApplicationClosed:
		return "peer shut down gracefully"
	case ReasonReset:
		return "peer restart detected"
	case ReasonTimedOut:
		return "idle timeout"
	default:
		return "locally closed"
	}
}

// Error wraps a Reason as an error value, the form stored on the
// association and surfaced once via AssociationLost.
type Error struct {
	Reason Reason
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Reason.String() + ": " + e.Cause.Error()
	}
	return e.Reason.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// API-surface sentinel errors, categorized as User mistakes rather than
// transport failures so a demuxer doesn't log them as bugs.
var (
	ErrStreamAlreadyExist         = errcat.Newf(errcat.User, "open_stream: stream already exists")
	ErrShutdownNonEstablished     = errcat.Newf(errcat.User, "shutdown: association is not Established")
	ErrPayloadDataStateNotExist   = errcat.Newf(errcat.User, "send_payload_data: association is not Established")
	ErrStreamNotFound             = errcat.Newf(errcat.User, "stream: no such stream id")
)

var errUnknownError = errors.New("association: internal error")
