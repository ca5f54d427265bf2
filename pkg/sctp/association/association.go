// Package association implements the per-association SCTP state machine:
// the handshake, send/receive pipelines, SACK processing with congestion
// control, timer management, and Forward-TSN/Reconfig. It is an
// event-driven, purely synchronous state machine with no internal threads
// or I/O: callers drive it entirely through HandleIncoming, HandleEvent,
// and HandleTimeout, and drain its output through PollTransmit, Poll, and
// PollEndpointEvent. The shape mirrors a hand-rolled TCP state machine
// with its own ack-wait queue, out-of-order queue, and SACK option
// handling, generalized from TCP's single byte-stream model to SCTP's
// multi-stream, chunk-oriented one.
package association

import (
	"math/rand"
	"net"
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/queue"
	"github.com/datawire/sctp-proto/pkg/sctp/stream"
	"github.com/datawire/sctp-proto/pkg/sctp/timer"
)

// AckState tracks whether a SACK is owed immediately, after a short
// delay, or not at all (RFC 4960 §6.2's delayed-ack rule).
type AckState int

const (
	AckStateIdle AckState = iota
	AckStateDelay
	AckStateImmediate
)

const delayedAckInterval = 200 * time.Millisecond

// Stats are the per-association counters pkg/sctp/metrics reads to
// populate its Prometheus collector; the association only accumulates
// the raw numbers, it never formats or exports them itself.
type Stats struct {
	NDatas        uint64
	NSacks        uint64
	NT3Timeouts   uint64
	NAckTimeouts  uint64
	NFastRetrans  uint64
	NForwardTSNs  uint64
}

// Association is the per-peer transmission control block: one instance
// per remote endpoint, holding every piece of state RFC 4960 attributes
// to a single SCTP association.
type Association struct {
	side   Side
	state  State
	config Config
	log    Logger

	remoteAddr net.Addr
	localPort  uint16
	remotePort uint16

	myVerificationTag   uint32
	peerVerificationTag uint32

	myNextTSN uint32 // next outbound DATA TSN

	hasPeerLastTSN bool
	peerLastTSN    uint32

	cumulativeTSNAckPoint   uint32
	advancedPeerTSNAckPoint uint32

	cwnd              uint32
	ssthresh          uint32
	partialBytesAcked uint32
	inFastRecovery    bool
	fastRecoverExit   uint32

	mtu            uint32
	maxPayloadSize uint32
	useForwardTSN  bool

	minTSN2MeasureRTT uint32

	streams              map[uint16]*stream.Stream
	pendingAcceptStreams []uint16
	inbound              map[uint16][]queue.Message

	pendingQueue  *queue.PendingQueue
	inflightQueue *queue.PayloadQueue
	payloadQueue  *queue.PayloadQueue

	timers *timer.Table
	rto    *timer.RTOManager

	ackState              AckState
	delayedAckTriggered   bool
	immediateAckTriggered bool

	willSendShutdown       bool
	willSendShutdownAck    bool
	willSendForwardTSN     bool
	willRetransmitFast     bool
	willRetransmitReconfig bool

	streamsPendingReset []uint16

	reconfigRequestSeq  uint32
	outgoingResets      map[uint32]*pendingReset
	incomingResetsSeen  map[uint32]bool

	// peerARwnd is the peer's last-advertised receive window (from INIT,
	// INIT-ACK, or the arwnd field of its most recent SACK), the credit
	// pumpSend spends against.
	peerARwnd uint32

	cookieIssuer *cookieIssuer // server-side only
	pendingCookie []byte        // client-side: the cookie last echoed, kept for T1-Cookie retransmission

	transmits      []Transmit
	events         []Event
	endpointEvents []EndpointEvent

	storedError *Error
	drained     bool

	stats Stats

	rnd *rand.Rand
}

// pendingReset is one outstanding outgoing stream-reset request awaiting
// a ReconfigResponse, keyed by its request sequence number so a
// retransmitted RECONFIG reuses the same sequence.
type pendingReset struct {
	streamIDs []uint16
	senderLastTSN uint32
	since     time.Time
}

// NewClient constructs an association in CookieWait and immediately
// queues the opening INIT for PollTransmit to drain.
func NewClient(cfg Config, remote net.Addr, log Logger, now time.Time) *Association {
	a := newAssociation(ClientSide, cfg, remote, log)
	a.setState(CookieWait)
	a.sendControl(a.initChunk())
	a.timers.Get(timer.T1Init).Start(now, a.rto.RTO())
	return a
}

// NewServer constructs an association the demuxer pre-creates to answer
// an inbound INIT, ready to issue a state cookie in its INIT-ACK.
func NewServer(cfg Config, remote net.Addr, log Logger, secret []byte) *Association {
	a := newAssociation(ServerSide, cfg, remote, log)
	a.cookieIssuer = newCookieIssuer(secret, cfg.CookieLifetime)
	return a
}

func newAssociation(side Side, cfg Config, remote net.Addr, log Logger) *Association {
	if log == nil {
		log = noopLogger{}
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	a := &Association{
		side:           side,
		state:          Closed,
		config:         cfg,
		log:            log,
		remoteAddr:     remote,
		localPort:      5000,
		remotePort:     5000,
		myVerificationTag: rnd.Uint32(),
		myNextTSN:      rnd.Uint32(),
		cwnd:           4 * cfg.MTU,
		ssthresh:       ^uint32(0),
		peerARwnd:      cfg.MaxReceiveBufferSize,
		mtu:            cfg.MTU,
		maxPayloadSize: cfg.MaxPayloadSize(),
		streams:        make(map[uint16]*stream.Stream),
		inbound:        make(map[uint16][]queue.Message),
		pendingQueue:   queue.NewPendingQueue(),
		inflightQueue:  queue.NewPayloadQueue(),
		payloadQueue:   queue.NewPayloadQueue(),
		timers:         timer.NewTable(),
		rto:            timer.NewRTOManager(),
		outgoingResets: make(map[uint32]*pendingReset),
		incomingResetsSeen: make(map[uint32]bool),
		rnd:            rnd,
	}
	a.minTSN2MeasureRTT = a.myNextTSN
	a.cumulativeTSNAckPoint = a.myNextTSN - 1
	a.advancedPeerTSNAckPoint = a.cumulativeTSNAckPoint
	return a
}

// Side returns whether this association is the handshake's client or
// server.
func (a *Association) Side() Side { return a.side }

// RemoteAddr returns the single remote peer address. This implementation
// has no multihoming support: one association, one peer address.
func (a *Association) RemoteAddr() net.Addr { return a.remoteAddr }

// RTT returns the current smoothed RTT estimate, or 0 before any sample.
func (a *Association) RTT() time.Duration { return a.rto.SRTT() }

// StatsSnapshot returns a copy of the association's raw counters, the
// source data pkg/sctp/metrics' Prometheus collector reads.
func (a *Association) StatsSnapshot() Stats { return a.stats }

// State returns the current association state.
func (a *Association) State() State { return a.state }

// CongestionSnapshot is the instantaneous congestion/flow-control state
// pkg/sctp/metrics reads to populate its gauges. It is a plain copy, not
// a live view, so a collector may hold it across a Prometheus scrape
// without racing the association: the association is owned by a single
// goroutine, so the copy itself needs no locking at the call site.
type CongestionSnapshot struct {
	Cwnd          uint32
	Ssthresh      uint32
	PeerRwnd      uint32
	MyRwnd        uint32
	InflightBytes int
	SRTT          time.Duration
	RTTVAR        time.Duration
	RTO           time.Duration
	MissIndicator uint32
}

// CongestionSnapshot returns the current congestion-control and
// flow-control numbers.
func (a *Association) CongestionSnapshot() CongestionSnapshot {
	var maxMiss uint32
	for _, tsn := range a.inflightQueue.Sorted() {
		if e := a.inflightQueue.Get(tsn); e != nil && uint32(e.MissIndicator) > maxMiss {
			maxMiss = uint32(e.MissIndicator)
		}
	}
	return CongestionSnapshot{
		Cwnd:          a.cwnd,
		Ssthresh:      a.ssthresh,
		PeerRwnd:      a.peerARwnd,
		MyRwnd:        a.currentRwnd(),
		InflightBytes: a.inflightQueue.NumBytes(),
		SRTT:          a.rto.SRTT(),
		RTTVAR:        a.rto.RTTVAR(),
		RTO:           a.rto.RTO(),
		MissIndicator: maxMiss,
	}
}

// PollTransmit dequeues the next outbound datagram, if any.
func (a *Association) PollTransmit() (Transmit, bool) {
	if len(a.transmits) == 0 {
		return Transmit{}, false
	}
	t := a.transmits[0]
	a.transmits = a.transmits[1:]
	return t, true
}

// Poll dequeues the next application event, if any.
func (a *Association) Poll() (Event, bool) {
	if len(a.events) == 0 {
		return Event{}, false
	}
	e := a.events[0]
	a.events = a.events[1:]
	return e, true
}

// PollEndpointEvent dequeues the next endpoint-facing event, if any.
func (a *Association) PollEndpointEvent() (EndpointEvent, bool) {
	if len(a.endpointEvents) == 0 {
		return EndpointEvent{}, false
	}
	e := a.endpointEvents[0]
	a.endpointEvents = a.endpointEvents[1:]
	return e, true
}

// PollTimeout returns the next instant at which a timer will fire.
func (a *Association) PollTimeout() (time.Time, bool) {
	return a.timers.NextDeadline()
}

func (a *Association) queueTransmit(payload []byte) {
	a.transmits = append(a.transmits, Transmit{Remote: a.remoteAddr, Payload: payload})
}

func (a *Association) queueEvent(e Event) {
	a.events = append(a.events, e)
}

func (a *Association) closeWithReason(reason Reason, cause error) {
	if a.state == Closed && a.storedError != nil {
		return // idempotent: the first close reason sticks
	}
	a.storedError = &Error{Reason: reason, Cause: cause}
	a.setState(Closed)
	a.queueEvent(Event{Kind: EventAssociationLost, Lost: a.storedError})
	if !a.drained {
		a.drained = true
		a.endpointEvents = append(a.endpointEvents, EndpointEvent{Kind: EndpointDrained})
	}
}

// Close immediately and unconditionally tears down the association,
// idempotent after the first call. If the association is not already
// Closed, an ABORT carrying the user-initiated-abort cause is sent so the
// peer doesn't wait out its own timers.
func (a *Association) Close() {
	if a.drained {
		return
	}
	if a.state != Closed {
		a.sendControl(&chunk.Abort{Causes: []chunk.ErrorCause{{Code: chunk.CauseUserInitiatedAbort}}})
	}
	a.closeWithReason(ReasonLocallyClosed, nil)
}

// IsDrained reports whether the association's TCB may be released: state
// has reached Closed and the drained flag is set. Drained is only
// emitted once the state machine has actually reached Closed, not
// unconditionally once Shutdown is called, so a demuxer never releases a
// TCB with data still in flight.
func (a *Association) IsDrained() bool { return a.drained }
