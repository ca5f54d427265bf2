package association

import (
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/packet"
	"github.com/datawire/sctp-proto/pkg/sctp/queue"
	"github.com/datawire/sctp-proto/pkg/sctp/timer"
)

// sendControl marshals and queues a single non-DATA chunk addressed to
// the peer's current verification tag: handshake and teardown control
// traffic. DATA chunks go through pumpSend instead, since they must be
// bundled and rate-limited by the congestion window.
func (a *Association) sendControl(c chunk.Chunk) {
	a.marshalAndQueue(&packet.Packet{
		CommonHeader: packet.CommonHeader{
			SourcePort:      a.localPort,
			DestinationPort: a.remotePort,
			VerificationTag: a.peerVerificationTag,
		},
		Chunks: []chunk.Chunk{c},
	})
}

func (a *Association) marshalAndQueue(p *packet.Packet) {
	raw, err := packet.Marshal(p)
	if err != nil {
		a.log.Errorf("association: failed to marshal outbound packet: %v", err)
		return
	}
	a.queueTransmit(raw)
}

// currentRwnd is the shared receiver-window credit: MaxReceiveBufferSize
// minus the bytes every stream's reassembly queue is currently holding.
func (a *Association) currentRwnd() uint32 {
	var used uint32
	for _, s := range a.streams {
		used += uint32(s.Reassembly.BufferedBytes())
	}
	if used >= a.config.MaxReceiveBufferSize {
		return 0
	}
	return a.config.MaxReceiveBufferSize - used
}

// sendSack emits a SACK reflecting the current payload queue, used for
// both the immediate and delayed-ack paths.
func (a *Association) sendSack(now time.Time) {
	if !a.hasPeerLastTSN {
		return
	}
	blocks := a.payloadQueue.GapAckBlocks(a.peerLastTSN)
	var gapBlocks []chunk.GapAckBlock
	for _, b := range blocks {
		gapBlocks = append(gapBlocks, chunk.GapAckBlock{Start: b.Start, End: b.End})
	}
	s := &chunk.Sack{
		CumulativeTSNAck: a.peerLastTSN,
		ARwnd:            a.currentRwnd(),
		GapAckBlocks:      gapBlocks,
		DuplicateTSN:      a.payloadQueue.PopDuplicates(),
	}
	a.sendControl(s)
	_ = now
}

// pumpSend is the send pipeline: it draws fresh DATA
// from pendingQueue (respecting cwnd/rwnd), draws anything flagged for
// retransmission first, bundles consecutive chunks into MTU-sized
// packets, and arms T3-RTX on the oldest unacked chunk. Called after
// every event that can make more data sendable: a new user send, a SACK
// that frees window, or open-stream/shutdown transitions.
func (a *Association) pumpSend(now time.Time) {
	if a.state != Established && a.state != ShutdownPending && a.state != ShutdownReceived {
		return
	}

	var chunks []chunk.Chunk
	packetBytes := 0
	flush := func() {
		if len(chunks) == 0 {
			return
		}
		a.marshalAndQueue(&packet.Packet{
			CommonHeader: packet.CommonHeader{
				SourcePort:      a.localPort,
				DestinationPort: a.remotePort,
				VerificationTag: a.peerVerificationTag,
			},
			Chunks: chunks,
		})
		chunks = nil
		packetBytes = 0
	}
	push := func(c chunk.Chunk, n int) {
		if packetBytes > 0 && packetBytes+n > int(a.mtu) {
			flush()
		}
		chunks = append(chunks, c)
		packetBytes += n
	}

	// Retransmissions are drawn before fresh data on every pass.
	for _, tsn := range append([]uint32(nil), a.inflightQueue.Sorted()...) {
		e := a.inflightQueue.Get(tsn)
		if e == nil || !e.Retransmit || e.Abandoned {
			continue
		}
		e.Retransmit = false
		e.NSent++
		e.Since = now
		d := e.Data
		push(&d, len(d.UserData)+dataChunkHeaderSize)
	}

	outstanding := uint32(a.inflightQueue.NumBytes())
	for outstanding < a.cwnd && (outstanding < a.peerARwnd || outstanding == 0) {
		e := a.pendingQueue.Peek()
		if e == nil {
			break
		}
		size := uint32(e.Len())
		if outstanding+size > a.peerARwnd && outstanding > 0 {
			break // zero-window probing still allows one chunk through when nothing is outstanding
		}
		e = a.pendingQueue.Pop()
		e.Data.TSN = a.myNextTSN
		a.myNextTSN++
		e.Since = now
		e.NSent = 1
		a.inflightQueue.PushNoCheck(e)
		outstanding += size
		d := e.Data
		push(&d, len(d.UserData)+dataChunkHeaderSize)
	}
	flush()

	if a.inflightQueue.Len() > 0 {
		a.timers.Get(timer.T3RTX).Arm(now, a.rto.RTO())
	} else {
		a.timers.Get(timer.T3RTX).Stop()
	}

	a.maybeFinishShutdown(now)
}

// maybeFinishShutdown advances the graceful-close state machine once the
// send queues have drained: ShutdownPending -> emit
// SHUTDOWN and move to ShutdownSent; a peer-acknowledged SHUTDOWN in
// ShutdownReceived -> emit SHUTDOWN-ACK and move to ShutdownAckSent.
func (a *Association) maybeFinishShutdown(now time.Time) {
	if a.pendingQueue.Len() > 0 || a.inflightQueue.Len() > 0 {
		return
	}
	switch a.state {
	case ShutdownPending:
		a.setState(ShutdownSent)
		a.sendControl(&chunk.Shutdown{CumulativeTSNAck: a.peerLastTSN})
		a.timers.Get(timer.T2Shutdown).Start(now, a.rto.RTO())
	case ShutdownReceived:
		a.setState(ShutdownAckSent)
		a.sendControl(&chunk.ShutdownAck{})
		a.timers.Get(timer.T2Shutdown).Start(now, a.rto.RTO())
	}
}

// enqueueUserData fragments data per config.MaxPayloadSize and pushes
// each fragment onto the pending queue: a message larger than one
// packet's payload capacity is split into Beginning/.../Ending fragments
// sharing one SSN.
func (a *Association) enqueueUserData(streamID uint16, ppid uint32, data []byte, unordered bool, ssn uint16) {
	maxFrag := int(a.maxPayloadSize)
	if maxFrag <= 0 {
		maxFrag = len(data)
	}
	if len(data) == 0 {
		e := &queue.Entry{Data: chunk.Data{
			StreamID: streamID, StreamSequence: ssn, PayloadProtocolID: ppid,
			Unordered: unordered, BeginningFragment: true, EndingFragment: true,
		}}
		a.pendingQueue.Push(e)
		return
	}
	for off := 0; off < len(data); off += maxFrag {
		end := off + maxFrag
		if end > len(data) {
			end = len(data)
		}
		e := &queue.Entry{Data: chunk.Data{
			StreamID:          streamID,
			StreamSequence:    ssn,
			PayloadProtocolID: ppid,
			UserData:          data[off:end],
			Unordered:         unordered,
			BeginningFragment: off == 0,
			EndingFragment:    end == len(data),
		}}
		a.pendingQueue.Push(e)
	}
}
