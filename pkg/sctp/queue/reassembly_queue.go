package queue

import "github.com/datawire/sctp-proto/pkg/sctp/util"

// Message is a fully reassembled, in-order (or unordered, immediately
// delivered) user message.
type Message struct {
	PayloadProtocolID uint32
	Unordered         bool
	UserData          []byte
}

// orderedSet holds the fragments collected so far for one ordered SSN.
type orderedSet struct {
	ssn       uint16
	fragments []*Entry // sorted by TSN as pushed
}

func (s *orderedSet) complete() bool {
	if len(s.fragments) == 0 {
		return false
	}
	if !s.fragments[0].Data.BeginningFragment {
		return false
	}
	last := s.fragments[len(s.fragments)-1]
	if !last.Data.EndingFragment {
		return false
	}
	for i := 1; i < len(s.fragments); i++ {
		if s.fragments[i].Data.TSN != s.fragments[i-1].Data.TSN+1 {
			return false
		}
	}
	return true
}

func (s *orderedSet) assemble() *Message {
	var buf []byte
	for _, f := range s.fragments {
		buf = append(buf, f.Data.UserData...)
	}
	return &Message{PayloadProtocolID: s.fragments[0].Data.PayloadProtocolID, UserData: buf}
}

// ReassemblyQueue is the per-stream reassembly queue: it holds gap
// blocks of partially-received messages and delivers
// complete ones, maintaining ordered delivery by SSN and immediate
// (out-of-order-allowed) delivery for unordered fragments.
type ReassemblyQueue struct {
	nextSSN      uint16
	ordered      []*orderedSet // sorted by ssn, serial-number order
	unordered    []*Entry      // sorted by TSN, may belong to several interleaved messages
	bufferedBytes int
}

func NewReassemblyQueue() *ReassemblyQueue {
	return &ReassemblyQueue{}
}

// BufferedBytes returns the bytes currently held awaiting reassembly,
// which feeds the shared receiver-window credit computation in §5.
func (r *ReassemblyQueue) BufferedBytes() int { return r.bufferedBytes }

// Push adds one fragment to the reassembly queue.
func (r *ReassemblyQueue) Push(e *Entry) {
	r.bufferedBytes += e.Len()
	if e.Data.Unordered {
		i := 0
		for i < len(r.unordered) && r.unordered[i].Data.TSN < e.Data.TSN {
			i++
		}
		r.unordered = append(r.unordered, nil)
		copy(r.unordered[i+1:], r.unordered[i:])
		r.unordered[i] = e
		return
	}
	ssn := e.Data.StreamSequence
	for _, set := range r.ordered {
		if set.ssn == ssn {
			i := len(set.fragments)
			for i > 0 && util.Sna32LT(e.Data.TSN, set.fragments[i-1].Data.TSN) {
				i--
			}
			set.fragments = append(set.fragments, nil)
			copy(set.fragments[i+1:], set.fragments[i:])
			set.fragments[i] = e
			return
		}
	}
	r.ordered = append(r.ordered, &orderedSet{ssn: ssn, fragments: []*Entry{e}})
	// keep ordered sets sorted by SSN (serial-number order) so Pop can
	// stop at the first incomplete gap.
	for i := len(r.ordered) - 1; i > 0; i-- {
		if util.Sna16LT(r.ordered[i].ssn, r.ordered[i-1].ssn) {
			r.ordered[i], r.ordered[i-1] = r.ordered[i-1], r.ordered[i]
		} else {
			break
		}
	}
}

// Pop delivers the next deliverable message, if any: the next in-order
// ordered message at nextSSN if complete, else the oldest complete
// unordered message.
func (r *ReassemblyQueue) Pop() (*Message, bool) {
	if len(r.ordered) > 0 && r.ordered[0].ssn == r.nextSSN && r.ordered[0].complete() {
		set := r.ordered[0]
		r.ordered = r.ordered[1:]
		r.nextSSN++
		r.bufferedBytes -= sum(set.fragments)
		return set.assemble(), true
	}
	for i, set := range r.unordered2Sets() {
		if set.complete() {
			r.removeUnorderedSet(set)
			r.bufferedBytes -= sum(set.fragments)
			_ = i
			return set.assemble(), true
		}
	}
	return nil, false
}

func sum(fragments []*Entry) int {
	n := 0
	for _, f := range fragments {
		n += f.Len()
	}
	return n
}

// unordered2Sets groups the flat unordered fragment slice into contiguous
// begin..end runs so Pop can test completeness; run purely off TSN
// contiguity since unordered messages carry no SSN.
func (r *ReassemblyQueue) unordered2Sets() []*orderedSet {
	var sets []*orderedSet
	var cur *orderedSet
	for _, e := range r.unordered {
		if e.Data.BeginningFragment {
			cur = &orderedSet{fragments: []*Entry{e}}
			sets = append(sets, cur)
			continue
		}
		if cur != nil && len(cur.fragments) > 0 && e.Data.TSN == cur.fragments[len(cur.fragments)-1].Data.TSN+1 {
			cur.fragments = append(cur.fragments, e)
		}
	}
	return sets
}

func (r *ReassemblyQueue) removeUnorderedSet(set *orderedSet) {
	want := make(map[uint32]bool, len(set.fragments))
	for _, f := range set.fragments {
		want[f.Data.TSN] = true
	}
	kept := r.unordered[:0]
	for _, e := range r.unordered {
		if !want[e.Data.TSN] {
			kept = append(kept, e)
		}
	}
	r.unordered = kept
}

// ForwardOrdered drops any buffered ordered fragments whose SSN is at or
// before ssn and fast-forwards nextSSN past it, the reassembly-side effect
// of an inbound FORWARD-TSN per §4.6.
func (r *ReassemblyQueue) ForwardOrdered(ssn uint16) {
	kept := r.ordered[:0]
	for _, set := range r.ordered {
		if util.Sna16LTE(set.ssn, ssn) {
			r.bufferedBytes -= sum(set.fragments)
			continue
		}
		kept = append(kept, set)
	}
	r.ordered = kept
	if util.Sna16GTE(ssn, r.nextSSN) {
		r.nextSSN = ssn + 1
	}
}

// ForwardUnordered drops any buffered unordered fragments with TSN at or
// before newCumulativeTSN, the broadcast cleanup §4.6 requires on every
// stream when a FORWARD-TSN arrives.
func (r *ReassemblyQueue) ForwardUnordered(newCumulativeTSN uint32) {
	kept := r.unordered[:0]
	for _, e := range r.unordered {
		if util.Sna32LTE(e.Data.TSN, newCumulativeTSN) {
			r.bufferedBytes -= e.Len()
			continue
		}
		kept = append(kept, e)
	}
	r.unordered = kept
}
