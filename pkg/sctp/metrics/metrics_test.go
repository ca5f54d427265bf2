package metrics

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/sctp-proto/pkg/sctp/association"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "udp" }
func (a fakeAddr) String() string  { return string(a) }

type fakeSource struct {
	cong  association.CongestionSnapshot
	stats association.Stats
	state association.State
}

func (f fakeSource) CongestionSnapshot() association.CongestionSnapshot { return f.cong }
func (f fakeSource) StatsSnapshot() association.Stats                  { return f.stats }
func (f fakeSource) State() association.State                          { return f.state }
func (f fakeSource) RemoteAddr() net.Addr                               { return fakeAddr("peer") }

func TestDescribeEmitsOneDescPerMetric(t *testing.T) {
	c := NewAssociationCollector([]string{"assoc", "remote"}, nil)
	descs := make(chan *prometheus.Desc, 32)
	c.Describe(descs)
	close(descs)

	var n int
	for range descs {
		n++
	}
	assert.Equal(t, 16, n)
}

func TestCollectEmitsAllMetricsWithoutPanicking(t *testing.T) {
	c := NewAssociationCollector([]string{"assoc", "remote"}, prometheus.Labels{"instance": "test"})
	c.Add("a1", fakeSource{
		cong: association.CongestionSnapshot{
			Cwnd: 4800, Ssthresh: 9600, PeerRwnd: 65536, MyRwnd: 65536,
			InflightBytes: 100, SRTT: 50 * time.Millisecond, RTTVAR: 10 * time.Millisecond,
			RTO: 200 * time.Millisecond, MissIndicator: 1,
		},
		stats: association.Stats{NDatas: 5, NSacks: 3},
		state: association.Established,
	}, []string{"a1", "1.2.3.4:5000"})

	out := make(chan prometheus.Metric, 64)
	done := make(chan struct{})
	var collected []prometheus.Metric
	go func() {
		for m := range out {
			collected = append(collected, m)
		}
		close(done)
	}()

	// Collect must not panic on a label-count mismatch (the state gauge
	// carries one more label than the rest) -- this is the scenario a
	// mismatched Desc would blow up on.
	require.NotPanics(t, func() {
		c.Collect(out)
		close(out)
	})
	<-done

	assert.Len(t, collected, 16)
}

func TestRemoveStopsFurtherCollection(t *testing.T) {
	c := NewAssociationCollector([]string{"assoc"}, nil)
	c.Add("a1", fakeSource{state: association.Established}, []string{"a1"})
	c.Remove("a1")

	out := make(chan prometheus.Metric, 64)
	go func() {
		c.Collect(out)
		close(out)
	}()

	var n int
	for range out {
		n++
	}
	assert.Equal(t, 0, n)
}
