package association

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/queue"
	"github.com/datawire/sctp-proto/pkg/sctp/stream"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "udp" }
func (a fakeAddr) String() string  { return string(a) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MTU = 1200
	cfg.MaxReceiveBufferSize = 1 << 20
	return cfg
}

// pump relays every queued transmit between two associations until neither
// side has anything left to send, simulating a lossless, zero-latency
// network. It never advances the clock itself -- callers that need timers
// to fire call HandleTimeout directly.
func pump(t *testing.T, a, b *Association, now time.Time) {
	t.Helper()
	for i := 0; i < 64; i++ {
		moved := false
		for {
			tx, ok := a.PollTransmit()
			if !ok {
				break
			}
			moved = true
			require.NoError(t, b.HandleIncoming(tx.Payload, now))
		}
		for {
			tx, ok := b.PollTransmit()
			if !ok {
				break
			}
			moved = true
			require.NoError(t, a.HandleIncoming(tx.Payload, now))
		}
		if !moved {
			return
		}
	}
	t.Fatal("pump: transmits never settled")
}

func newEstablishedPair(t *testing.T) (client, server *Association, now time.Time) {
	t.Helper()
	now = time.Unix(1000, 0)
	cfg := testConfig()
	client = NewClient(cfg, fakeAddr("server"), nil, now)
	server = NewServer(cfg, fakeAddr("client"), nil, []byte("test-secret"))
	pump(t, client, server, now)
	require.Equal(t, Established, client.State())
	require.Equal(t, Established, server.State())
	return client, server, now
}

func drainEvents(a *Association) []Event {
	var out []Event
	for {
		e, ok := a.Poll()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func eventKinds(evs []Event) []EventKind {
	var ks []EventKind
	for _, e := range evs {
		ks = append(ks, e.Kind)
	}
	return ks
}

func TestHandshakeEstablishesBothSides(t *testing.T) {
	client, server, _ := newEstablishedPair(t)

	assert.Contains(t, eventKinds(drainEvents(client)), EventConnected)
	assert.Contains(t, eventKinds(drainEvents(server)), EventConnected)
}

func TestDataTransferDeliversMessage(t *testing.T) {
	client, server, now := newEstablishedPair(t)
	drainEvents(client)
	drainEvents(server)

	require.NoError(t, client.OpenStream(1, 99))
	err := client.HandleEvent(AssociationEvent{
		Kind:              EventSendPayloadData,
		StreamID:          1,
		PayloadProtocolID: 99,
		Data:              []byte("hello, sctp"),
	}, now)
	require.NoError(t, err)

	pump(t, client, server, now)

	serverEvents := drainEvents(server)
	assert.Contains(t, eventKinds(serverEvents), EventStreamOpened)
	assert.Contains(t, eventKinds(serverEvents), EventStreamReadable)

	_, ok := server.AcceptStream()
	require.True(t, ok)

	msg, ok := server.ReadMessage(1)
	require.True(t, ok)
	assert.Equal(t, "hello, sctp", string(msg.UserData))
	assert.Equal(t, uint32(99), msg.PayloadProtocolID)
}

func TestLargeMessageFragmentsAndReassembles(t *testing.T) {
	client, server, now := newEstablishedPair(t)
	drainEvents(client)
	drainEvents(server)

	require.NoError(t, client.OpenStream(5, 0))
	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i)
	}
	err := client.HandleEvent(AssociationEvent{
		Kind:     EventSendPayloadData,
		StreamID: 5,
		Data:     payload,
	}, now)
	require.NoError(t, err)

	pump(t, client, server, now)
	// The initial congestion window covers only part of the message; the
	// rest goes out once the receiver's delayed SACK arrives, so fire the
	// receiver's Ack timer to release it.
	for i := 0; i < 4; i++ {
		now = now.Add(delayedAckInterval)
		server.HandleTimeout(now)
		pump(t, client, server, now)
	}
	drainEvents(server)
	_, ok := server.AcceptStream()
	require.True(t, ok)

	msg, ok := server.ReadMessage(5)
	require.True(t, ok)
	assert.Equal(t, payload, msg.UserData)
}

func TestGracefulShutdownReachesClosedBothSides(t *testing.T) {
	client, server, now := newEstablishedPair(t)
	drainEvents(client)
	drainEvents(server)

	require.NoError(t, client.Shutdown(now))
	pump(t, client, server, now)

	assert.Equal(t, Closed, client.State())
	assert.Equal(t, Closed, server.State())
}

func TestCloseSendsAbortAndPeerObservesAssociationLost(t *testing.T) {
	client, server, now := newEstablishedPair(t)
	drainEvents(client)
	drainEvents(server)

	client.Close()
	pump(t, client, server, now)

	assert.True(t, client.IsDrained())
	assert.Equal(t, Closed, server.State())

	var lost *Error
	for _, e := range drainEvents(server) {
		if e.Kind == EventAssociationLost {
			lost = e.Lost
		}
	}
	require.NotNil(t, lost)
	assert.Equal(t, ReasonApplicationClosed, lost.Reason)
}

func TestStreamResetRoundTrip(t *testing.T) {
	client, server, now := newEstablishedPair(t)
	drainEvents(client)
	drainEvents(server)

	require.NoError(t, client.OpenStream(3, 0))
	require.NoError(t, client.HandleEvent(AssociationEvent{
		Kind: EventSendPayloadData, StreamID: 3, Data: []byte("x"),
	}, now))
	pump(t, client, server, now)
	drainEvents(server)
	_, ok := server.AcceptStream()
	require.True(t, ok)
	server.ReadMessage(3)

	client.initiateStreamReset([]uint16{3}, now)
	pump(t, client, server, now)

	assert.Contains(t, eventKinds(drainEvents(client)), EventStreamReset)
	assert.Contains(t, eventKinds(drainEvents(server)), EventStreamReset)

	st, ok := client.Stream(3)
	require.True(t, ok)
	assert.Equal(t, stream.Closed, st.SendState)

	st, ok = server.Stream(3)
	require.True(t, ok)
	assert.Equal(t, stream.Closed, st.RecvState)
}

func TestFastRetransmitMarksThirdMissedChunkForRetransmit(t *testing.T) {
	client, _, now := newEstablishedPair(t)
	drainEvents(client)

	for _, tsn := range []uint32{1, 2, 3} {
		client.inflightQueue.PushNoCheck(&queue.Entry{
			Data:  chunk.Data{TSN: tsn, UserData: []byte("x")},
			Since: now,
			NSent: 1,
		})
	}
	client.peerARwnd = 1 << 20
	client.cumulativeTSNAckPoint = 0 // the TSNs above follow a cum-ack of 0

	// Three SACKs gap-ack TSN 2 and 3 while skipping TSN 1, so TSN 1's
	// miss indicator crosses the fast-retransmit threshold; the third
	// SACK's send pass then retransmits it at once, clearing its
	// Retransmit flag and counting a second transmission.
	sack := &chunk.Sack{CumulativeTSNAck: 0, ARwnd: 1 << 20, GapAckBlocks: []chunk.GapAckBlock{{Start: 2, End: 3}}}
	for i := 0; i < fastRetransmitMissLimit; i++ {
		client.inflightQueue.Get(2).Acked = false
		client.inflightQueue.Get(3).Acked = false
		client.handleSack(sack, now)
	}

	e := client.inflightQueue.Get(1)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.NSent)
	assert.GreaterOrEqual(t, e.MissIndicator, fastRetransmitMissLimit)
	assert.True(t, client.inFastRecovery)
}

func TestForwardTSNAbandonsAndFreesWindow(t *testing.T) {
	client, server, now := newEstablishedPair(t)
	drainEvents(client)
	drainEvents(server)

	require.NoError(t, client.OpenStream(9, 0))
	st, ok := client.Stream(9)
	require.True(t, ok)
	st.Reliability = stream.Rexmit
	st.ReliabilityValue = 0 // abandon as soon as it has been sent once

	require.NoError(t, client.HandleEvent(AssociationEvent{
		Kind: EventSendPayloadData, StreamID: 9, Data: []byte("perishable"),
	}, now))

	// Drive pumpSend without letting the peer ack, so the chunk is still
	// inflight when HandleTimeout runs abandonment.
	for {
		_, ok := client.PollTransmit()
		if !ok {
			break
		}
	}
	require.Equal(t, 1, client.inflightQueue.Len())

	before := client.CongestionSnapshot().InflightBytes
	client.HandleTimeout(now.Add(time.Millisecond))
	after := client.CongestionSnapshot().InflightBytes
	assert.Less(t, after, before)

	var sawForwardTSN bool
	for {
		tx, ok := client.PollTransmit()
		if !ok {
			break
		}
		require.NoError(t, server.HandleIncoming(tx.Payload, now))
		sawForwardTSN = true
	}
	assert.True(t, sawForwardTSN)
}
