package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "deepresearch"

// Agent and research run Prometheus metrics.
var (
	AgentInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Total number of remote agent invocations",
		},
		[]string{"backend", "role", "status"},
	)

	AgentInvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_invocation_duration_seconds",
			Help:      "Time from invocation until the response stream is drained",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"backend", "role"},
	)

	AgentStreamBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_stream_bytes_total",
			Help:      "Decoded content bytes received from agents",
		},
		[]string{"role"},
	)

	AgentStreamTracesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_stream_traces_total",
			Help:      "Trace events received from agents",
		},
		[]string{"role"},
	)

	ResearchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_runs_total",
			Help:      "Research runs by final state",
		},
		[]string{"status"}, // "completed" / "failed"
	)

	ResearchQueriesGenerated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "research_queries_generated",
			Help:      "Queries produced per research round",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	OutcomeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcome_cache_total",
			Help:      "Search outcome cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ToolRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_requests_total",
			Help:      "Tool handler calls to upstream providers",
		},
		[]string{"tool", "status"},
	)

	ToolRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_request_duration_seconds",
			Help:      "Upstream provider latency per tool",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)
)

var registerOnce sync.Once

// RegisterAgentMetrics registers agent, research, cache and tool metrics. Safe to call more than once.
func RegisterAgentMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			AgentInvocationsTotal,
			AgentInvocationDuration,
			AgentStreamBytesTotal,
			AgentStreamTracesTotal,
			ResearchRunsTotal,
			ResearchQueriesGenerated,
			OutcomeCacheTotal,
			ToolRequestsTotal,
			ToolRequestDuration,
		)
	})
}
