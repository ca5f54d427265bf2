package association

import (
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/stream"
	"github.com/datawire/sctp-proto/pkg/sctp/timer"
)

// OpenStream creates a locally-initiated stream, returning
// ErrStreamAlreadyExist if id is taken.
func (a *Association) OpenStream(id uint16, ppid uint32) error {
	if _, ok := a.streams[id]; ok {
		return ErrStreamAlreadyExist
	}
	s := stream.New(id, ppid)
	s.Accepted = true
	a.streams[id] = s
	return nil
}

// AcceptStream pops the next peer-opened stream awaiting local pickup,
// or false if none is pending.
func (a *Association) AcceptStream() (uint16, bool) {
	for len(a.pendingAcceptStreams) > 0 {
		id := a.pendingAcceptStreams[0]
		a.pendingAcceptStreams = a.pendingAcceptStreams[1:]
		if s, ok := a.streams[id]; ok && !s.Accepted {
			s.Accepted = true
			return id, true
		}
	}
	return 0, false
}

// Stream returns the stream state for id, if it exists.
func (a *Association) Stream(id uint16) (*stream.Stream, bool) {
	s, ok := a.streams[id]
	return s, ok
}

// HandleEvent dispatches one application-request input, the counterpart
// to HandleIncoming for peer-originated packets.
func (a *Association) HandleEvent(ev AssociationEvent, now time.Time) error {
	switch ev.Kind {
	case EventOpenStream:
		return a.OpenStream(ev.StreamID, ev.PayloadProtocolID)
	case EventAcceptStream:
		_, _ = a.AcceptStream()
		return nil
	case EventSendPayloadData:
		return a.sendPayloadData(ev, now)
	case EventShutdown:
		return a.Shutdown(now)
	case EventClose:
		a.Close()
		return nil
	case EventResetStream:
		a.initiateStreamReset([]uint16{ev.StreamID}, now)
		return nil
	default:
		return nil
	}
}

func (a *Association) sendPayloadData(ev AssociationEvent, now time.Time) error {
	if a.state != Established && a.state != ShutdownReceived {
		return ErrPayloadDataStateNotExist
	}
	s, ok := a.streams[ev.StreamID]
	if !ok {
		return ErrStreamNotFound
	}
	ssn := s.SendNextSSN
	if !ev.Unordered {
		s.SendNextSSN++
	}
	a.enqueueUserData(ev.StreamID, ev.PayloadProtocolID, ev.Data, ev.Unordered, ssn)
	a.pumpSend(now)
	return nil
}

// Shutdown begins graceful close: Established -> ShutdownPending
// immediately. If the send queues are already empty, SHUTDOWN goes out
// right away (moving to ShutdownSent); otherwise it goes out once they
// drain via the normal pumpSend path.
func (a *Association) Shutdown(now time.Time) error {
	switch a.state {
	case Established:
		a.setState(ShutdownPending)
		a.maybeFinishShutdown(now)
		return nil
	case ShutdownPending, ShutdownSent, ShutdownReceived, ShutdownAckSent:
		return nil // already shutting down
	default:
		return ErrShutdownNonEstablished
	}
}

// HandleTimeout drives every expired timer forward: T1-Init and
// T1-Cookie retry or fail the
// handshake, T2-Shutdown retries or force-closes, T3-RTX marks every
// inflight chunk for retransmission, the Ack timer flushes a delayed
// SACK, and Reconfig retransmits any outstanding stream-reset requests.
func (a *Association) HandleTimeout(now time.Time) {
	if expired, failed := a.timers.Get(timer.T1Init).IsExpired(now, a.rto.RTO()); expired {
		if failed {
			a.closeWithReason(ReasonHandshakeFailed, nil)
			return
		}
		a.sendControl(a.initChunk())
	}
	if expired, failed := a.timers.Get(timer.T1Cookie).IsExpired(now, a.rto.RTO()); expired {
		if failed {
			a.closeWithReason(ReasonHandshakeFailed, nil)
			return
		}
		if a.pendingCookie != nil {
			a.sendControl(&chunk.CookieEcho{Cookie: a.pendingCookie})
		}
	}
	if expired, failed := a.timers.Get(timer.T2Shutdown).IsExpired(now, a.rto.RTO()); expired {
		if failed {
			a.closeWithReason(ReasonTimedOut, nil)
			return
		}
		a.retransmitShutdown()
	}
	if expired, _ := a.timers.Get(timer.T3RTX).IsExpired(now, a.rto.RTO()); expired {
		a.inflightQueue.MarkAllForRetransmit()
		a.ssthresh = maxU32(a.cwnd/2, 4*a.mtu)
		a.cwnd = a.mtu
		a.partialBytesAcked = 0
		a.inFastRecovery = false
		a.stats.NT3Timeouts++
		a.pumpSend(now)
	}
	if expired, failed := a.timers.Get(timer.Ack).IsExpired(now, delayedAckInterval); expired {
		if failed {
			a.stats.NAckTimeouts++
		}
		a.sendSack(now)
	}
	if expired, _ := a.timers.Get(timer.Reconfig).IsExpired(now, a.rto.RTO()); expired {
		for seq := range a.outgoingResets {
			a.sendStreamResetRequest(seq, now)
		}
	}
	a.abandonExpiredChunks(now)
}

func (a *Association) initChunk() chunk.Chunk {
	return &chunk.Init{
		InitiateTag:        a.myVerificationTag,
		AdvertisedRwnd:     a.currentRwnd(),
		NumOutboundStreams: 65535,
		NumInboundStreams:  65535,
		InitialTSN:         a.myNextTSN,
		Params:             []chunk.Param{chunk.MarshalSupportedExtensions()},
	}
}

func (a *Association) retransmitShutdown() {
	switch a.state {
	case ShutdownSent:
		a.sendControl(&chunk.Shutdown{CumulativeTSNAck: a.peerLastTSN})
	case ShutdownAckSent:
		a.sendControl(&chunk.ShutdownAck{})
	}
}
