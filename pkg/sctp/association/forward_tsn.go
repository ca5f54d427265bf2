package association

import (
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/util"
)

// handleForwardTSN applies an inbound FORWARD-TSN (RFC 3758 §3.2): it
// fast-forwards the receiver's idea of the cumulative TSN past whatever
// the peer has abandoned, and tells every named stream's reassembly
// queue to drop anything that can no longer arrive.
func (a *Association) handleForwardTSN(f *chunk.ForwardTSN, now time.Time) {
	a.stats.NForwardTSNs++
	if util.Sna32LTE(f.NewCumulativeTSN, a.peerLastTSN) {
		return
	}
	for tsn := a.peerLastTSN + 1; util.Sna32LTE(tsn, f.NewCumulativeTSN); tsn++ {
		a.payloadQueue.Pop(tsn) // drop anything we were still holding below the new point
	}
	a.peerLastTSN = f.NewCumulativeTSN

	for _, fs := range f.Streams {
		if s, ok := a.streams[fs.Identifier]; ok {
			s.Reassembly.ForwardOrdered(fs.Sequence)
		}
	}
	for _, s := range a.streams {
		s.Reassembly.ForwardUnordered(f.NewCumulativeTSN)
	}

	a.deliverReassembled()
	a.immediateAckTriggered = true
}

// abandonExpiredChunks walks the inflight queue applying each stream's
// PR-SCTP reliability policy (chunks still in the pending queue are not
// examined), and if anything was newly
// abandoned, arranges for a FORWARD-TSN to go out announcing the new
// advanced peer ack point.
func (a *Association) abandonExpiredChunks(now time.Time) {
	if !a.useForwardTSN {
		return
	}
	advanced := a.advancedPeerTSNAckPoint
	changed := false

	for _, tsn := range a.inflightQueue.Sorted() {
		e := a.inflightQueue.Get(tsn)
		if e == nil || e.Acked || e.Abandoned {
			continue
		}
		s, ok := a.streams[e.Data.StreamID]
		if !ok || !s.IsAbandoned(e.NSent, e.Since, now) {
			continue
		}
		e.Abandoned = true
		a.inflightQueue.MarkAsAcked(tsn) // frees its window credit; it will never be retransmitted
		if util.Sna32GT(tsn, advanced) {
			advanced = tsn
		}
		changed = true
	}

	if changed {
		a.advancedPeerTSNAckPoint = advanced
		a.willSendForwardTSN = true
		a.sendForwardTSN(now)
		a.pumpSend(now)
	}
}

// sendForwardTSN emits a FORWARD-TSN naming, per ordered stream with
// abandoned fragments at or below advancedPeerTSNAckPoint, the SSN to
// skip to.
func (a *Association) sendForwardTSN(now time.Time) {
	if !a.willSendForwardTSN {
		return
	}
	a.willSendForwardTSN = false

	perStream := make(map[uint16]uint16)
	for _, tsn := range a.inflightQueue.Sorted() {
		e := a.inflightQueue.Get(tsn)
		if e == nil || !e.Abandoned || util.Sna32GT(tsn, a.advancedPeerTSNAckPoint) {
			continue
		}
		if e.Data.Unordered {
			continue
		}
		if cur, ok := perStream[e.Data.StreamID]; !ok || util.Sna16GT(e.Data.StreamSequence, cur) {
			perStream[e.Data.StreamID] = e.Data.StreamSequence
		}
	}
	f := &chunk.ForwardTSN{NewCumulativeTSN: a.advancedPeerTSNAckPoint}
	for sid, ssn := range perStream {
		f.Streams = append(f.Streams, chunk.ForwardTSNStream{Identifier: sid, Sequence: ssn})
	}
	a.sendControl(f)
	_ = now
}
