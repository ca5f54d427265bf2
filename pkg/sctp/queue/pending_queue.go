package queue

// PendingQueue is the FIFO of user-submitted Entry values awaiting TSN
// assignment. Ordered and unordered messages are held in
// independent FIFOs so that a blocked ordered message doesn't stall
// unordered traffic (or vice versa); within each FIFO, fragments of one
// message are always contiguous because the caller appends them in send
// order, so a plain head-of-queue pop already honors the "subsequent
// fragments must be drawn before any other chunk of that type" rule.
type PendingQueue struct {
	ordered   []*Entry
	unordered []*Entry
	nBytes    int
}

func NewPendingQueue() *PendingQueue { return &PendingQueue{} }

// Push appends e to the back of the appropriate FIFO.
func (q *PendingQueue) Push(e *Entry) {
	q.nBytes += e.Len()
	if e.Data.Unordered {
		q.unordered = append(q.unordered, e)
	} else {
		q.ordered = append(q.ordered, e)
	}
}

// Peek returns the next entry that would be drawn without removing it, or
// nil if both FIFOs are empty. Ordered messages are favored when both
// have a ready head, matching RFC 4960's bias toward in-order delivery.
func (q *PendingQueue) Peek() *Entry {
	if len(q.ordered) > 0 {
		return q.ordered[0]
	}
	if len(q.unordered) > 0 {
		return q.unordered[0]
	}
	return nil
}

// Pop removes and returns the next entry in draw order.
func (q *PendingQueue) Pop() *Entry {
	var e *Entry
	switch {
	case len(q.ordered) > 0:
		e = q.ordered[0]
		q.ordered = q.ordered[1:]
	case len(q.unordered) > 0:
		e = q.unordered[0]
		q.unordered = q.unordered[1:]
	default:
		return nil
	}
	q.nBytes -= e.Len()
	return e
}

// Len returns the number of entries still pending TSN assignment.
func (q *PendingQueue) Len() int { return len(q.ordered) + len(q.unordered) }

// NumBytes returns the total payload bytes still pending.
func (q *PendingQueue) NumBytes() int { return q.nBytes }
