package association

import (
	"errors"
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/errcat"
	"github.com/datawire/sctp-proto/pkg/sctp/packet"
	"github.com/datawire/sctp-proto/pkg/sctp/timer"
)

// HandleIncoming is the sans-io entry point for inbound datagrams: it
// decodes, verifies, and dispatches every chunk in one packet, then
// decides whether a SACK is owed before returning. All resulting side
// effects (outbound packets, application events) are queued for the
// next PollTransmit/Poll rather than returned directly, so a caller
// drains them on its own schedule instead of blocking inside this call.
// A malformed or unverifiable packet is dropped per RFC 4960 and
// reported back as an errcat.Transport error so a hosting demuxer can
// log it quietly instead of treating it as a bug.
func (a *Association) HandleIncoming(raw []byte, now time.Time) error {
	pd, err := packet.Decode(raw)
	if err != nil {
		return errcat.New(errcat.Transport, err)
	}
	if !a.acceptableVerificationTag(pd) {
		return errcat.Newf(errcat.Transport, "association: unexpected verification tag")
	}
	pkt, err := pd.Finish()
	if err != nil {
		var unrecognized packet.ErrUnrecognizedChunkType
		if errors.As(err, &unrecognized) {
			a.sendControl(&chunk.Error{Causes: []chunk.ErrorCause{{Code: chunk.CauseUnrecognizedChunkType}}})
		}
		return errcat.New(errcat.Transport, err)
	}

	a.delayedAckTriggered = false
	a.immediateAckTriggered = false

	for _, c := range pkt.Chunks {
		a.dispatchChunk(c, now)
		if a.state == Closed {
			break // ABORT/SHUTDOWN-COMPLETE may have torn the association down mid-packet
		}
	}

	a.concludeAck(now)
	return nil
}

// acceptableVerificationTag enforces RFC 4960 §8.5's verification-tag
// rules for the handshake chunks that are allowed to carry a tag other
// than this association's own.
func (a *Association) acceptableVerificationTag(pd *packet.PartialDecode) bool {
	switch pd.FirstChunkType {
	case chunk.CTInit:
		return true // INIT always carries verification tag 0, already checked by packet.Decode
	case chunk.CTCookieEcho, chunk.CTAbort, chunk.CTShutdownComplete:
		return true // may legitimately reflect the peer's tag out-of-the-blue
	default:
		return pd.CommonHeader.VerificationTag == a.myVerificationTag
	}
}

func (a *Association) dispatchChunk(c chunk.Chunk, now time.Time) {
	switch v := c.(type) {
	case *chunk.Init:
		if v.IsAck {
			a.handleInitAck(v, now)
		} else {
			a.handleInit(v, now)
		}
	case *chunk.CookieEcho:
		a.handleCookieEcho(v, now)
	case *chunk.CookieAck:
		a.handleCookieAck(now)
	case *chunk.Data:
		a.handleData(v, now)
	case *chunk.Sack:
		a.handleSack(v, now)
	case *chunk.Heartbeat:
		if v.IsAck {
			a.handleHeartbeatAck(v)
		} else {
			a.handleHeartbeat(v)
		}
	case *chunk.Abort:
		a.handleAbort(v)
	case *chunk.Error:
		a.handleError(v)
	case *chunk.Shutdown:
		a.handleShutdown(v, now)
	case *chunk.ShutdownAck:
		a.handleShutdownAck(now)
	case *chunk.ShutdownComplete:
		a.handleShutdownComplete()
	case *chunk.Reconfig:
		a.handleReconfig(v, now)
	case *chunk.ForwardTSN:
		a.handleForwardTSN(v, now)
	default:
		a.log.Debugf("association: unhandled chunk type %s", c.Type())
	}
}

// concludeAck turns the ack flags chunk handlers raised during this
// packet into either an immediate SACK or an armed delayed-ack timer.
func (a *Association) concludeAck(now time.Time) {
	switch {
	case a.immediateAckTriggered:
		a.timers.Get(timer.Ack).Stop()
		a.sendSack(now)
	case a.delayedAckTriggered:
		a.timers.Get(timer.Ack).Arm(now, delayedAckInterval)
	}
}

// --- handshake -------------------------------------------------------

func (a *Association) handleInit(in *chunk.Init, now time.Time) {
	if a.state != Closed {
		a.log.Debugf("association: INIT received outside Closed (state=%s), ignoring", a.state)
		return
	}
	a.peerVerificationTag = in.InitiateTag
	a.hasPeerLastTSN = true
	a.peerLastTSN = in.InitialTSN - 1
	a.minTSN2MeasureRTT = a.myNextTSN
	a.useForwardTSN = chunk.HasForwardTSNSupport(in.Params)
	a.peerARwnd = in.AdvertisedRwnd

	if a.cookieIssuer == nil {
		a.cookieIssuer = newCookieIssuer(nil, a.config.CookieLifetime)
	}
	cookie := a.cookieIssuer.issue(now, a.myVerificationTag, in.InitiateTag, in.InitialTSN)

	ack := &chunk.Init{
		IsAck:              true,
		InitiateTag:        a.myVerificationTag,
		AdvertisedRwnd:     a.currentRwnd(),
		NumOutboundStreams: 65535,
		NumInboundStreams:  65535,
		InitialTSN:         a.myNextTSN,
		Cookie:             cookie,
	}
	if a.useForwardTSN {
		ack.Params = []chunk.Param{chunk.MarshalSupportedExtensions()}
	}
	a.sendControl(ack)
}

func (a *Association) handleInitAck(in *chunk.Init, now time.Time) {
	if a.state != CookieWait {
		a.log.Debugf("association: unexpected INIT-ACK in state %s, ignoring", a.state)
		return
	}
	a.timers.Get(timer.T1Init).Stop()
	a.peerVerificationTag = in.InitiateTag
	a.hasPeerLastTSN = true
	a.peerLastTSN = in.InitialTSN - 1
	a.minTSN2MeasureRTT = a.myNextTSN
	a.useForwardTSN = chunk.HasForwardTSNSupport(in.Params)
	a.peerARwnd = in.AdvertisedRwnd
	a.pendingCookie = in.Cookie
	a.setState(CookieEchoed)
	a.timers.Get(timer.T1Cookie).Start(now, a.rto.RTO())
	a.sendControl(&chunk.CookieEcho{Cookie: in.Cookie})
}

func (a *Association) handleCookieEcho(ce *chunk.CookieEcho, now time.Time) {
	if a.state != Closed && a.state != CookieEchoed {
		a.log.Debugf("association: unexpected COOKIE-ECHO in state %s, ignoring", a.state)
		return
	}
	if a.cookieIssuer == nil {
		return
	}
	fields, ok := a.cookieIssuer.verify(ce.Cookie, now)
	if !ok || fields.myTag != a.myVerificationTag {
		a.log.Debugf("association: COOKIE-ECHO failed verification, discarding")
		return
	}
	a.peerVerificationTag = fields.peerTag
	a.setState(Established)
	a.sendControl(&chunk.CookieAck{})
	a.queueEvent(Event{Kind: EventConnected})
}

func (a *Association) handleCookieAck(now time.Time) {
	if a.state != CookieEchoed {
		a.log.Debugf("association: unexpected COOKIE-ACK in state %s, ignoring", a.state)
		return
	}
	a.timers.Get(timer.T1Cookie).Stop()
	a.setState(Established)
	a.queueEvent(Event{Kind: EventConnected})
}

// --- heartbeats --------------------------------------------------------

func (a *Association) handleHeartbeat(hb *chunk.Heartbeat) {
	a.sendControl(&chunk.Heartbeat{IsAck: true, Info: hb.Info})
}

func (a *Association) handleHeartbeatAck(*chunk.Heartbeat) {
	// This side never originates HEARTBEAT, so an inbound HEARTBEAT-ACK
	// can only answer a peer-initiated probe we already acked; nothing
	// to reconcile here.
}

// --- teardown ------------------------------------------------------

func (a *Association) handleAbort(ab *chunk.Abort) {
	reason := ReasonAssociationClosed
	if ab.HasUserInitiatedAbort() {
		reason = ReasonApplicationClosed
	}
	a.closeWithReason(reason, nil)
}

func (a *Association) handleError(e *chunk.Error) {
	a.log.Errorf("association: received ERROR chunk with %d cause(s)", len(e.Causes))
}

func (a *Association) handleShutdown(s *chunk.Shutdown, now time.Time) {
	switch a.state {
	case Established:
		a.setState(ShutdownReceived)
	case ShutdownPending, ShutdownSent:
	default:
		a.log.Debugf("association: unexpected SHUTDOWN in state %s, ignoring", a.state)
		return
	}
	a.processCumulativeTSNAck(s.CumulativeTSNAck, now)
	if a.pendingQueue.Len() == 0 && a.inflightQueue.Len() == 0 {
		a.setState(ShutdownAckSent)
		a.sendControl(&chunk.ShutdownAck{})
		a.timers.Get(timer.T2Shutdown).Start(now, a.rto.RTO())
	}
}

func (a *Association) handleShutdownAck(now time.Time) {
	if a.state != ShutdownSent && a.state != ShutdownAckSent {
		a.log.Debugf("association: unexpected SHUTDOWN-ACK in state %s, ignoring", a.state)
		return
	}
	a.timers.Get(timer.T2Shutdown).Stop()
	a.sendControl(&chunk.ShutdownComplete{})
	a.closeWithReason(ReasonLocallyClosed, nil)
}

func (a *Association) handleShutdownComplete() {
	a.closeWithReason(ReasonApplicationClosed, nil)
}
