package association

import (
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/queue"
	"github.com/datawire/sctp-proto/pkg/sctp/stream"
	"github.com/datawire/sctp-proto/pkg/sctp/util"
)

// handleData implements the data-receive path: accept
// or reject the TSN against the receive window, push it into the shared
// payload queue for ack bookkeeping and the owning stream's reassembly
// queue for delivery, lazily create a stream the peer opened, and decide
// whether this packet owes an immediate or delayed SACK.
func (a *Association) handleData(d *chunk.Data, now time.Time) {
	a.stats.NDatas++
	if !a.hasPeerLastTSN {
		a.hasPeerLastTSN = true
		a.peerLastTSN = d.TSN - 1
	}
	if !a.payloadQueue.CanPush(d.TSN, a.peerLastTSN) {
		a.payloadQueue.Push(&queue.Entry{Data: *d}, a.peerLastTSN) // records d.TSN as a duplicate
		a.immediateAckTriggered = true
		return
	}
	if a.currentRwnd() < uint32(len(d.UserData)) {
		a.log.Debugf("association: dropping DATA tsn=%d, receive window exhausted", d.TSN)
		return
	}

	e := &queue.Entry{Data: *d, Since: now}
	if !a.payloadQueue.Push(e, a.peerLastTSN) {
		a.immediateAckTriggered = true
		return
	}

	s, ok := a.streams[d.StreamID]
	if !ok {
		s = stream.New(d.StreamID, d.PayloadProtocolID)
		s.Accepted = false
		a.streams[d.StreamID] = s
		a.pendingAcceptStreams = append(a.pendingAcceptStreams, d.StreamID)
		a.queueEvent(Event{Kind: EventStreamOpened, StreamID: d.StreamID})
	}
	s.Reassembly.Push(e)

	for util.Sna32LTE(a.peerLastTSN+1, d.TSN) {
		next := a.peerLastTSN + 1
		if a.payloadQueue.Pop(next) == nil {
			break
		}
		a.peerLastTSN = next
	}

	a.deliverReassembled()

	if d.ImmediateSACK {
		a.immediateAckTriggered = true
	} else {
		a.delayedAckTriggered = true
	}
}

// deliverReassembled drains every stream's reassembly queue of complete
// messages into the association's per-stream inbound queue and raises a
// StreamReadable event for each. A caller reads from that inbound queue
// through ReadMessage rather than holding its own buffer.
func (a *Association) deliverReassembled() {
	for id, s := range a.streams {
		for {
			msg, ok := s.Reassembly.Pop()
			if !ok {
				break
			}
			s.BufferedAmount += uint64(len(msg.UserData))
			a.inbound[id] = append(a.inbound[id], *msg)
			a.queueEvent(Event{Kind: EventStreamReadable, StreamID: id})
		}
	}
}

// ReadMessage pops the oldest fully reassembled message delivered to
// streamID, if any.
func (a *Association) ReadMessage(streamID uint16) (queue.Message, bool) {
	msgs := a.inbound[streamID]
	if len(msgs) == 0 {
		return queue.Message{}, false
	}
	msg := msgs[0]
	a.inbound[streamID] = msgs[1:]
	if s, ok := a.streams[streamID]; ok {
		s.BufferedAmount -= uint64(len(msg.UserData))
	}
	return msg, true
}
