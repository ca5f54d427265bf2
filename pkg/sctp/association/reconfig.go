package association

import (
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/stream"
	"github.com/datawire/sctp-proto/pkg/sctp/timer"
)

// initiateStreamReset starts the outgoing half of RFC 6525 stream reset:
// it assigns a fresh request sequence, records the pending request so
// the Reconfig timer can retransmit it, and sends the Outgoing SSN Reset
// Request naming the streams' last TSN.
func (a *Association) initiateStreamReset(streamIDs []uint16, now time.Time) {
	if len(streamIDs) == 0 {
		return
	}
	a.reconfigRequestSeq++
	seq := a.reconfigRequestSeq
	a.outgoingResets[seq] = &pendingReset{
		streamIDs:     streamIDs,
		senderLastTSN: a.myNextTSN - 1,
		since:         now,
	}
	a.sendStreamResetRequest(seq, now)
	a.timers.Get(timer.Reconfig).Start(now, a.rto.RTO())
}

func (a *Association) sendStreamResetRequest(seq uint32, now time.Time) {
	p, ok := a.outgoingResets[seq]
	if !ok {
		return
	}
	a.sendControl(&chunk.Reconfig{
		OutgoingReset: &chunk.OutgoingResetRequest{
			ReconfigRequestSequence: seq,
			SenderLastTSN:           p.senderLastTSN,
			StreamIdentifiers:       p.streamIDs,
		},
	})
}

// handleReconfig dispatches an inbound RECONFIG chunk to request and/or
// response handling; a single chunk may carry both (a piggybacked
// response to our request alongside the peer's own request).
func (a *Association) handleReconfig(r *chunk.Reconfig, now time.Time) {
	if r.OutgoingReset != nil {
		a.handleIncomingResetRequest(r.OutgoingReset)
	}
	if r.Response != nil {
		a.handleResetResponse(r.Response)
	}
}

func (a *Association) handleIncomingResetRequest(req *chunk.OutgoingResetRequest) {
	if a.incomingResetsSeen[req.ReconfigRequestSequence] {
		// Already performed; RFC 6525 §5.2.2 requires re-sending the same
		// response rather than repeating side effects.
		a.sendControl(&chunk.Reconfig{Response: &chunk.ReconfigResponse{
			ReconfigResponseSequence: req.ReconfigRequestSequence,
			Result:                   chunk.ReconfigResultSuccessPerformed,
		}})
		return
	}
	a.incomingResetsSeen[req.ReconfigRequestSequence] = true

	for _, sid := range req.StreamIdentifiers {
		s, ok := a.streams[sid]
		if !ok {
			s = stream.New(sid, 0)
			a.streams[sid] = s
		}
		s.RecvState = stream.Closed
		s.Reassembly.ForwardOrdered(^uint16(0))
		a.queueEvent(Event{Kind: EventStreamReset, StreamID: sid})
	}

	a.sendControl(&chunk.Reconfig{Response: &chunk.ReconfigResponse{
		ReconfigResponseSequence: req.ReconfigRequestSequence,
		Result:                   chunk.ReconfigResultSuccessPerformed,
	}})
}

func (a *Association) handleResetResponse(resp *chunk.ReconfigResponse) {
	p, ok := a.outgoingResets[resp.ReconfigResponseSequence]
	if !ok {
		return
	}
	delete(a.outgoingResets, resp.ReconfigResponseSequence)
	if len(a.outgoingResets) == 0 {
		a.timers.Get(timer.Reconfig).Stop()
	}
	if resp.Result != chunk.ReconfigResultSuccessPerformed && resp.Result != chunk.ReconfigResultSuccessNothingToDo {
		a.log.Debugf("association: stream reset denied/failed: %v", resp.Result)
		return
	}
	for _, sid := range p.streamIDs {
		if s, ok := a.streams[sid]; ok {
			s.SendState = stream.Closed
		}
		a.queueEvent(Event{Kind: EventStreamReset, StreamID: sid})
	}
}
