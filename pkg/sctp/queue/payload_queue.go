// Package queue implements the three FIFO/ordered collections the send
// and receive pipelines are built from: PendingQueue (user submissions
// awaiting a TSN), PayloadQueue (both the inflight and received-payload
// bookkeeping, keyed by TSN with serial-number order), and a per-stream
// ReassemblyQueue. PayloadQueue is a TSN-keyed map plus a sorted-keys
// slice kept current on every mutation, so gap-ack-block computation and
// ordered delivery can both walk TSNs in ascending order without
// resorting on every call.
package queue

import (
	"sort"
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/chunk"
	"github.com/datawire/sctp-proto/pkg/sctp/util"
)

// Entry is one DATA chunk's bookkeeping: either pending transmission, in
// flight, or held (emptied) until the cumulative ack point passes it.
type Entry struct {
	Data chunk.Data

	NSent         int       // retransmission count; 0 before first send
	Acked         bool
	Retransmit    bool
	Abandoned     bool
	MissIndicator int // 0-3, RFC 4960 §7.2.4 fast-retransmit counter
	Since         time.Time
}

// Len returns the entry's current payload length — 0 once MarkAsAcked
// has freed its body.
func (e *Entry) Len() int { return len(e.Data.UserData) }

// PayloadQueue is an ordered collection of Entry keyed by TSN with
// serial-number ordering. Used both for chunks sent and awaiting ack, and
// for chunks received and awaiting in-order delivery.
type PayloadQueue struct {
	chunks  map[uint32]*Entry
	sorted  []uint32
	dupTSN  []uint32
	nBytes  int
}

func NewPayloadQueue() *PayloadQueue {
	return &PayloadQueue{chunks: make(map[uint32]*Entry)}
}

func (q *PayloadQueue) updateSortedKeys() {
	sort.Slice(q.sorted, func(i, j int) bool { return util.Sna32LT(q.sorted[i], q.sorted[j]) })
}

// CanPush reports whether tsn is new: neither already present nor at or
// below cumulativeTSN.
func (q *PayloadQueue) CanPush(tsn, cumulativeTSN uint32) bool {
	if _, ok := q.chunks[tsn]; ok {
		return false
	}
	return !util.Sna32LTE(tsn, cumulativeTSN)
}

// PushNoCheck inserts e unconditionally, used when the caller has already
// assigned a fresh monotonic TSN (the send path).
func (q *PayloadQueue) PushNoCheck(e *Entry) {
	q.nBytes += e.Len()
	q.sorted = append(q.sorted, e.Data.TSN)
	q.chunks[e.Data.TSN] = e
	q.updateSortedKeys()
}

// Push inserts e if its TSN is unseen; otherwise records the TSN as a
// duplicate (retrievable via PopDuplicates) and returns false.
func (q *PayloadQueue) Push(e *Entry, cumulativeTSN uint32) bool {
	if _, ok := q.chunks[e.Data.TSN]; ok || util.Sna32LTE(e.Data.TSN, cumulativeTSN) {
		q.dupTSN = append(q.dupTSN, e.Data.TSN)
		return false
	}
	q.PushNoCheck(e)
	return true
}

// Pop removes and returns the entry at tsn only if it is the oldest
// (lowest-TSN) entry in the queue.
func (q *PayloadQueue) Pop(tsn uint32) *Entry {
	if len(q.sorted) == 0 || q.sorted[0] != tsn {
		return nil
	}
	q.sorted = q.sorted[1:]
	e, ok := q.chunks[tsn]
	if !ok {
		return nil
	}
	delete(q.chunks, tsn)
	q.nBytes -= e.Len()
	return e
}

// Get returns the entry at tsn, or nil.
func (q *PayloadQueue) Get(tsn uint32) *Entry { return q.chunks[tsn] }

// PopDuplicates drains and returns the accumulated duplicate-TSN list.
func (q *PayloadQueue) PopDuplicates() []uint32 {
	d := q.dupTSN
	q.dupTSN = nil
	return d
}

// GapAckBlock is a contiguous run of received TSNs expressed as an offset
// from the cumulative TSN (RFC 4960 §3.3.4).
type GapAckBlock struct {
	Start uint16
	End   uint16
}

// GapAckBlocks computes the SACK gap-ack blocks for the current queue
// contents relative to cumulativeTSN.
func (q *PayloadQueue) GapAckBlocks(cumulativeTSN uint32) []GapAckBlock {
	if len(q.chunks) == 0 {
		return nil
	}
	var blocks []GapAckBlock
	var b GapAckBlock
	for i, tsn := range q.sorted {
		var diff uint16
		if util.Sna32GTE(tsn, cumulativeTSN) {
			diff = uint16(tsn - cumulativeTSN)
		}
		switch {
		case i == 0:
			b.Start, b.End = diff, diff
		case b.End+1 == diff:
			b.End++
		default:
			blocks = append(blocks, b)
			b.Start, b.End = diff, diff
		}
	}
	blocks = append(blocks, b)
	return blocks
}

// MarkAsAcked frees an entry's payload body (keeping its slot until the
// cumulative ack point advances past it) and returns the number of bytes
// freed, crediting the caller's byte-outstanding accounting.
func (q *PayloadQueue) MarkAsAcked(tsn uint32) int {
	e, ok := q.chunks[tsn]
	if !ok {
		return 0
	}
	e.Acked = true
	e.Retransmit = false
	n := e.Len()
	q.nBytes -= n
	e.Data.UserData = nil
	return n
}

// LastTSNReceived returns the highest-TSN entry currently queued, if any.
func (q *PayloadQueue) LastTSNReceived() (uint32, bool) {
	if len(q.sorted) == 0 {
		return 0, false
	}
	return q.sorted[len(q.sorted)-1], true
}

// MarkAllForRetransmit flags every non-acked, non-abandoned entry for
// retransmission, the T3-RTX expiry action from §4.8.
func (q *PayloadQueue) MarkAllForRetransmit() {
	for _, e := range q.chunks {
		if e.Acked || e.Abandoned {
			continue
		}
		e.Retransmit = true
	}
}

// NumBytes returns the total payload bytes currently held (acked entries
// contribute 0 once freed).
func (q *PayloadQueue) NumBytes() int { return q.nBytes }

// Len returns the number of entries (including acked-but-not-yet-popped
// ones) currently queued.
func (q *PayloadQueue) Len() int { return len(q.chunks) }

// Sorted returns the TSNs currently queued in serial-number order. The
// returned slice is owned by the queue and must not be retained past the
// next mutating call.
func (q *PayloadQueue) Sorted() []uint32 { return q.sorted }
