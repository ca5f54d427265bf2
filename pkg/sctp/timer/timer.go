// Package timer implements the six logical timers and the RFC 6298 RTO
// manager an association needs. The core has no internal clock or
// goroutines: every timer here is a pure deadline tracked against the
// `now time.Time` the caller passes into HandleTimeout, rather than
// relying on time.AfterFunc.
package timer

import "time"

// Kind names one of the six logical timers an association tracks.
type Kind int

const (
	T1Init Kind = iota
	T1Cookie
	T2Shutdown
	T3RTX
	Ack
	Reconfig
)

func (k Kind) String() string {
	switch k {
	case T1Init:
		return "T1-Init"
	case T1Cookie:
		return "T1-Cookie"
	case T2Shutdown:
		return "T2-Shutdown"
	case T3RTX:
		return "T3-RTX"
	case Ack:
		return "Ack"
	case Reconfig:
		return "Reconfig"
	default:
		return "unknown"
	}
}

// maxRetries per timer, 0 meaning unlimited.
var maxRetries = map[Kind]int{
	T1Init:   10,
	T1Cookie: 10,
	T2Shutdown: 10,
	T3RTX:    0,
	Ack:      1,
	Reconfig: 5,
}

// Timer is a single logical timer with exponential backoff and a retry
// budget.
type Timer struct {
	kind     Kind
	running  bool
	deadline time.Time
	nRTOs    int
}

// NewTimer constructs a stopped timer of the given kind.
func NewTimer(kind Kind) *Timer {
	return &Timer{kind: kind}
}

func (t *Timer) Kind() Kind     { return t.kind }
func (t *Timer) IsRunning() bool { return t.running }
func (t *Timer) NRTOs() int     { return t.nRTOs }

// backoff returns rto * 2^attempts, capped at RTOMax (RFC 6298's
// exponential backoff rule).
func backoff(rto time.Duration, attempts int) time.Duration {
	d := rto
	for i := 0; i < attempts && d < RTOMax; i++ {
		d *= 2
	}
	if d > RTOMax {
		d = RTOMax
	}
	return d
}

// Start arms the timer fresh: resets the retry counter and schedules the
// first deadline at now+rto.
func (t *Timer) Start(now time.Time, rto time.Duration) {
	t.running = true
	t.nRTOs = 0
	t.deadline = now.Add(backoff(rto, 0))
}

// Arm starts the timer only if it is not already running, the RFC 6298
// "if the timer is not already running, start it" rule T3-RTX uses when
// a new DATA packet is sent.
func (t *Timer) Arm(now time.Time, rto time.Duration) {
	if !t.running {
		t.Start(now, rto)
	}
}

// Restart unconditionally reschedules the timer with a fresh retry
// counter, used when fresh data is acknowledged.
func (t *Timer) Restart(now time.Time, rto time.Duration) {
	t.Start(now, rto)
}

// Stop disarms the timer and resets its retry counter.
func (t *Timer) Stop() {
	t.running = false
	t.nRTOs = 0
}

// IsExpired reports whether the timer's deadline has passed at now. If it
// has, the retry counter is incremented and rescheduled with the next
// backoff interval (unless the retry budget is exhausted, in which case
// failed is true and the timer stops).
func (t *Timer) IsExpired(now time.Time, rto time.Duration) (expired, failed bool) {
	if !t.running || now.Before(t.deadline) {
		return false, false
	}
	t.nRTOs++
	if max := maxRetries[t.kind]; max > 0 && t.nRTOs >= max {
		t.running = false
		return true, true
	}
	t.deadline = now.Add(backoff(rto, t.nRTOs))
	return true, false
}

// Deadline returns the timer's next firing instant, used to compute
// poll_timeout's next wakeup across the whole Table.
func (t *Timer) Deadline() (time.Time, bool) {
	return t.deadline, t.running
}

// Table holds all six logical timers for one association.
type Table struct {
	timers map[Kind]*Timer
}

func NewTable() *Table {
	t := &Table{timers: make(map[Kind]*Timer, 6)}
	for _, k := range []Kind{T1Init, T1Cookie, T2Shutdown, T3RTX, Ack, Reconfig} {
		t.timers[k] = NewTimer(k)
	}
	return t
}

func (t *Table) Get(k Kind) *Timer { return t.timers[k] }

// NextDeadline returns the earliest deadline among all running timers,
// backing poll_timeout from §6.
func (t *Table) NextDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	for _, timer := range t.timers {
		if d, running := timer.Deadline(); running {
			if !found || d.Before(best) {
				best = d
				found = true
			}
		}
	}
	return best, found
}
