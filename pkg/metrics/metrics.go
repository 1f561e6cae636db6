// Package metrics exposes the telemetry the ambient stack expects of
// every component built from this teacher repo: swarm health, RPC
// outcomes, and the current proof-of-work difficulty.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Difficulty tracks the current DifficultyState value.
	Difficulty = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_network_difficulty",
			Help: "Current proof-of-work difficulty accepted by the network",
		},
	)

	// RandomPoolSize tracks the number of service nodes in the RandomPool.
	RandomPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_network_random_pool_size",
			Help: "Number of service nodes currently in the random pool",
		},
	)

	// SwarmSize tracks the size of the most recently refreshed swarm.
	SwarmSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "session_network_swarm_size",
			Help: "Size of a public key's cached swarm",
		},
		[]string{"pubkey"},
	)

	// RPCRequestsTotal counts storage RPC calls by method and outcome.
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_network_rpc_requests_total",
			Help: "Total storage RPC calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// RPCDuration observes end-to-end storage RPC latency.
	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_network_rpc_duration_seconds",
			Help:    "Storage RPC call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// SnodeEvictionsTotal counts FailureTable-triggered evictions.
	SnodeEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_network_snode_evictions_total",
			Help: "Service nodes evicted after crossing the failure threshold",
		},
	)

	// MessagesReceivedTotal counts deduplicated inbound envelopes emitted
	// by the receive path.
	MessagesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_network_messages_received_total",
			Help: "Envelopes yielded by the receive path after dedup",
		},
	)

	// MessagesSentTotal counts successful sends by path (p2p or swarm).
	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_network_messages_sent_total",
			Help: "Successful sends by delivery path",
		},
		[]string{"path"},
	)

	// OpenGroupRequestsTotal counts open-group REST calls by endpoint and
	// outcome.
	OpenGroupRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_network_opengroup_requests_total",
			Help: "Open-group REST calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		Difficulty,
		RandomPoolSize,
		SwarmSize,
		RPCRequestsTotal,
		RPCDuration,
		SnodeEvictionsTotal,
		MessagesReceivedTotal,
		MessagesSentTotal,
		OpenGroupRequestsTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing RPC and parsing operations.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with
// labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
