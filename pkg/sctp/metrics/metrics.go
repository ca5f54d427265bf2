// Package metrics exposes association congestion-control and reliability
// counters as Prometheus metrics: a registry of live entries keyed by an
// opaque handle, polled fresh on every Collect rather than pushed on
// every state change.
package metrics

import (
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/datawire/sctp-proto/pkg/sctp/association"
)

// Source is the subset of *association.Association this package reads.
// Kept as an interface so tests can supply a fake without spinning up a
// real handshake.
type Source interface {
	CongestionSnapshot() association.CongestionSnapshot
	StatsSnapshot() association.Stats
	State() association.State
	RemoteAddr() net.Addr
}

type entry struct {
	source Source
	labels []string
}

// AssociationCollector is a prometheus.Collector over a dynamic set of
// live associations: associations Add themselves on creation and Remove
// themselves once Drained, and a scrape walks whatever is left.
type AssociationCollector struct {
	mu    sync.Mutex
	assoc map[interface{}]entry

	cwnd          *prometheus.Desc
	ssthresh      *prometheus.Desc
	peerRwnd      *prometheus.Desc
	myRwnd        *prometheus.Desc
	inflightBytes *prometheus.Desc
	srtt          *prometheus.Desc
	rttvar        *prometheus.Desc
	rto           *prometheus.Desc
	missIndicator *prometheus.Desc
	state         *prometheus.Desc

	datasTotal        *prometheus.Desc
	sacksTotal        *prometheus.Desc
	t3TimeoutsTotal   *prometheus.Desc
	ackTimeoutsTotal  *prometheus.Desc
	fastRetransTotal  *prometheus.Desc
	forwardTSNsTotal  *prometheus.Desc
}

// NewAssociationCollector builds a collector with the given constant
// labels (e.g. process/instance identity) applied to every metric;
// per-association labels are supplied at Add time.
func NewAssociationCollector(labelNames []string, constLabels prometheus.Labels) *AssociationCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("sctp_assoc_"+name, help, labelNames, constLabels)
	}
	stateLabelNames := append(append([]string{}, labelNames...), "state")
	return &AssociationCollector{
		assoc: make(map[interface{}]entry),

		cwnd:          desc("cwnd_bytes", "current congestion window"),
		ssthresh:      desc("ssthresh_bytes", "current slow-start threshold"),
		peerRwnd:      desc("peer_rwnd_bytes", "peer's last-advertised receive window"),
		myRwnd:        desc("my_rwnd_bytes", "this side's currently advertisable receive window"),
		inflightBytes: desc("inflight_bytes", "bytes sent but not yet cumulative-acked"),
		srtt:          desc("srtt_seconds", "smoothed round-trip time estimate"),
		rttvar:        desc("rttvar_seconds", "round-trip time variance estimate"),
		rto:           desc("rto_seconds", "current retransmission timeout"),
		missIndicator: desc("miss_indicator", "highest per-chunk miss indicator currently inflight"),
		state:         prometheus.NewDesc("sctp_assoc_state", "association state, one gauge per possible state value set to 1 for the current state", stateLabelNames, constLabels),

		datasTotal:       desc("datas_total", "DATA chunks received"),
		sacksTotal:       desc("sacks_total", "SACK chunks received"),
		t3TimeoutsTotal:  desc("t3_timeouts_total", "T3-rtx timer expirations"),
		ackTimeoutsTotal: desc("ack_timeouts_total", "delayed-ack timer expirations that forced a SACK"),
		fastRetransTotal: desc("fast_retransmits_total", "fast-retransmit events (miss indicator reaching threshold)"),
		forwardTSNsTotal: desc("forward_tsns_total", "FORWARD-TSN chunks received"),
	}
}

// Add registers an association under handle (any comparable value unique
// to that association, e.g. its verification tag or an xid), to be
// polled on every subsequent Collect until Remove is called.
func (c *AssociationCollector) Add(handle interface{}, source Source, labelValues []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assoc[handle] = entry{source: source, labels: labelValues}
}

// Remove stops polling the association registered under handle, typically
// once it reports association.EndpointDrained.
func (c *AssociationCollector) Remove(handle interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.assoc, handle)
}

func (c *AssociationCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.cwnd
	descs <- c.ssthresh
	descs <- c.peerRwnd
	descs <- c.myRwnd
	descs <- c.inflightBytes
	descs <- c.srtt
	descs <- c.rttvar
	descs <- c.rto
	descs <- c.missIndicator
	descs <- c.state
	descs <- c.datasTotal
	descs <- c.sacksTotal
	descs <- c.t3TimeoutsTotal
	descs <- c.ackTimeoutsTotal
	descs <- c.fastRetransTotal
	descs <- c.forwardTSNsTotal
}

func (c *AssociationCollector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.assoc {
		cong := e.source.CongestionSnapshot()
		stats := e.source.StatsSnapshot()

		metrics <- prometheus.MustNewConstMetric(c.cwnd, prometheus.GaugeValue, float64(cong.Cwnd), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.ssthresh, prometheus.GaugeValue, float64(cong.Ssthresh), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.peerRwnd, prometheus.GaugeValue, float64(cong.PeerRwnd), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.myRwnd, prometheus.GaugeValue, float64(cong.MyRwnd), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.inflightBytes, prometheus.GaugeValue, float64(cong.InflightBytes), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.srtt, prometheus.GaugeValue, cong.SRTT.Seconds(), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.rttvar, prometheus.GaugeValue, cong.RTTVAR.Seconds(), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.rto, prometheus.GaugeValue, cong.RTO.Seconds(), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.missIndicator, prometheus.GaugeValue, float64(cong.MissIndicator), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, 1, append(append([]string{}, e.labels...), e.source.State().String())...)

		metrics <- prometheus.MustNewConstMetric(c.datasTotal, prometheus.CounterValue, float64(stats.NDatas), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.sacksTotal, prometheus.CounterValue, float64(stats.NSacks), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.t3TimeoutsTotal, prometheus.CounterValue, float64(stats.NT3Timeouts), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.ackTimeoutsTotal, prometheus.CounterValue, float64(stats.NAckTimeouts), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.fastRetransTotal, prometheus.CounterValue, float64(stats.NFastRetrans), e.labels...)
		metrics <- prometheus.MustNewConstMetric(c.forwardTSNsTotal, prometheus.CounterValue, float64(stats.NForwardTSNs), e.labels...)
	}
}
