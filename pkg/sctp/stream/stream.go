// Package stream implements the per-stream state RFC 4960/3758/6525
// require: reliability type, send/receive SSN counters, and the
// reassembly queue for that one stream. A caller reads a stream's
// messages through the owning association's API rather than through
// any handle this package exposes directly.
package stream

import (
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/queue"
)

// ReliabilityType selects the PR-SCTP abandonment policy for a stream.
type ReliabilityType int

const (
	Reliable ReliabilityType = iota
	Rexmit
	Timed
)

func (r ReliabilityType) String() string {
	switch r {
	case Rexmit:
		return "rexmit"
	case Timed:
		return "timed"
	default:
		return "reliable"
	}
}

// State is a stream's send or receive half-state.
type State int

const (
	Open State = iota
	Closed
)

// Stream is the bidirectional ordered-or-unordered message channel
// identified by a 16-bit stream id.
type Stream struct {
	ID                       uint16
	Reliability              ReliabilityType
	ReliabilityValue         uint32 // nsent threshold (Rexmit) or ms threshold (Timed)
	DefaultPayloadProtocolID uint32

	SendNextSSN uint16
	SendState   State
	RecvState   State

	BufferedAmount uint64

	// Accepted is false for a stream that was created for an unsolicited
	// inbound DATA chunk and is awaiting application pickup via
	// AcceptStream; it is true once picked up, and for streams opened
	// locally.
	Accepted bool

	Reassembly *queue.ReassemblyQueue
}

// New constructs a stream in the Open/Open state with a fresh reassembly
// queue.
func New(id uint16, ppid uint32) *Stream {
	return &Stream{
		ID:                       id,
		DefaultPayloadProtocolID: ppid,
		Reassembly:               queue.NewReassemblyQueue(),
	}
}

// IsAbandoned reports whether a chunk sent at nsent tries, `since` ago,
// should be abandoned under this stream's reliability policy.
func (s *Stream) IsAbandoned(nsent int, since time.Time, now time.Time) bool {
	switch s.Reliability {
	case Rexmit:
		return uint32(nsent) >= s.ReliabilityValue
	case Timed:
		return now.Sub(since) >= time.Duration(s.ReliabilityValue)*time.Millisecond
	default:
		return false
	}
}

// ClosedBothSides reports whether both halves of the stream have been
// reset, at which point the association may release it.
func (s *Stream) ClosedBothSides() bool {
	return s.SendState == Closed && s.RecvState == Closed
}
