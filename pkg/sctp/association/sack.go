package association

import (
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/util"
)

const fastRetransmitMissLimit = 3

// handleSack advances the cumulative ack point, samples RTT, marks
// gap-acked chunks, counts misses toward fast retransmit, then runs
// slow-start/congestion-avoidance or fast-recovery bookkeeping for
// whatever this SACK newly acknowledged.
func (a *Association) handleSack(s *chunk.Sack, now time.Time) {
	if util.Sna32LT(s.CumulativeTSNAck, a.cumulativeTSNAckPoint) {
		return // stale SACK, RFC 4960 §6.2
	}
	a.stats.NSacks++

	bytesAckedBefore := a.inflightQueue.NumBytes()
	newData := util.Sna32GT(s.CumulativeTSNAck, a.cumulativeTSNAckPoint)
	a.processCumulativeTSNAck(s.CumulativeTSNAck, now)
	cumulativeBytesAcked := bytesAckedBefore - a.inflightQueue.NumBytes()

	htna := s.CumulativeTSNAck
	gapBytesAcked := 0
	for _, g := range s.GapAckBlocks {
		start := s.CumulativeTSNAck + uint32(g.Start)
		end := s.CumulativeTSNAck + uint32(g.End)
		for tsn := start; ; tsn++ {
			if e := a.inflightQueue.Get(tsn); e != nil && !e.Acked {
				gapBytesAcked += a.inflightQueue.MarkAsAcked(tsn)
			}
			if tsn == end {
				break
			}
		}
		if util.Sna32GT(end, htna) {
			htna = end
		}
	}

	// RFC 4960 §7.2.4: any chunk below the highest TSN newly acked (htna)
	// that is still un-acked has been missed one more time. Skip this
	// pass on a duplicate SACK received while already in fast recovery
	// and the cum-ack point didn't move -- otherwise every still-
	// outstanding TSN below htna would get double-counted on a SACK
	// that reports no new information. While in fast recovery the scan
	// widens past htna, since the highest TSN actually inflight can sit
	// well beyond whatever this particular SACK's gap blocks cover.
	missed := false
	if !a.inFastRecovery || newData {
		maxTSN := htna
		if a.inFastRecovery {
			maxTSN = a.cumulativeTSNAckPoint + uint32(a.inflightQueue.Len()) + 1
		}
		for _, tsn := range a.inflightQueue.Sorted() {
			if util.Sna32GTE(tsn, maxTSN) {
				break
			}
			e := a.inflightQueue.Get(tsn)
			if e == nil || e.Acked || e.Abandoned {
				continue
			}
			e.MissIndicator++
			if e.MissIndicator >= fastRetransmitMissLimit && !e.Retransmit {
				e.Retransmit = true
				missed = true
			}
		}
		if missed {
			a.stats.NFastRetrans++
		}
	}

	a.peerARwnd = s.ARwnd
	totalAcked := uint32(cumulativeBytesAcked + gapBytesAcked)
	a.updateCongestionWindow(totalAcked, newData || missed)

	if missed {
		a.willRetransmitFast = true
	}

	a.pumpSend(now)
}

// processCumulativeTSNAck advances cumulativeTSNAckPoint, releases every
// inflight chunk now fully acknowledged, and samples one RTT from the
// oldest such chunk that was never retransmitted -- Karn's algorithm:
// never sample RTT from a retransmitted chunk, since there's no way to
// tell whether the ack covers the original transmission or the retry.
// Shared by handleSack and the SHUTDOWN path, which RFC 4960 §8.5 treats
// as carrying an implicit cumulative ack.
func (a *Association) processCumulativeTSNAck(newCumTSN uint32, now time.Time) {
	if newCumTSN == a.cumulativeTSNAckPoint {
		return
	}
	rttSampled := false
	for tsn := a.cumulativeTSNAckPoint + 1; util.Sna32LTE(tsn, newCumTSN); tsn++ {
		e := a.inflightQueue.Pop(tsn)
		if e == nil {
			continue
		}
		if !rttSampled && e.NSent == 1 && util.Sna32GTE(tsn, a.minTSN2MeasureRTT) {
			a.rto.SetNewRTT(now.Sub(e.Since))
			rttSampled = true
		}
	}
	a.cumulativeTSNAckPoint = newCumTSN
	if util.Sna32GT(newCumTSN, a.advancedPeerTSNAckPoint) {
		a.advancedPeerTSNAckPoint = newCumTSN
	}
}

// updateCongestionWindow runs RFC 4960 §7.2's slow-start / congestion
// avoidance / fast-recovery state machine for one SACK's worth of newly
// acknowledged bytes.
func (a *Association) updateCongestionWindow(ackedBytes uint32, sawLoss bool) {
	if a.inFastRecovery {
		// Exit the moment cum-ack reaches the highest TSN outstanding when
		// fast recovery began, not one SACK later.
		if util.Sna32GTE(a.cumulativeTSNAckPoint, a.fastRecoverExit) {
			a.inFastRecovery = false
			a.partialBytesAcked = 0
		}
	}
	if sawLoss && !a.inFastRecovery {
		a.inFastRecovery = true
		a.fastRecoverExit = a.myNextTSN - 1
		a.ssthresh = maxU32(a.cwnd/2, 4*a.mtu)
		a.cwnd = a.ssthresh
		a.partialBytesAcked = 0
		return
	}
	if a.inFastRecovery {
		return // cwnd stays at ssthresh until fast recovery ends
	}
	if ackedBytes == 0 {
		return
	}
	if a.cwnd <= a.ssthresh {
		// Slow start: grow by the bytes newly acked, at most one MTU per SACK.
		a.cwnd += minU32(ackedBytes, a.mtu)
		return
	}
	// Congestion avoidance: grow by one MTU per cwnd bytes acked.
	a.partialBytesAcked += ackedBytes
	if a.partialBytesAcked >= a.cwnd {
		a.partialBytesAcked -= a.cwnd
		a.cwnd += a.mtu
	}
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
