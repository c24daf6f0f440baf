package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReceivedLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_replay_received_lines_total",
			Help: "Raw audit lines received by the command processor",
		},
	)

	ParsedCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_replay_parsed_commands_total",
			Help: "Audit lines successfully parsed into replay commands",
		},
		[]string{"parser"},
	)

	FailedLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_replay_failed_lines_total",
			Help: "Audit lines that could not be turned into replay commands",
		},
		[]string{"parser", "reason"},
	)

	PersistedCommands = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_replay_persisted_commands_total",
			Help: "Replay commands written to the command repository",
		},
	)

	ParseLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_replay_parse_latency_seconds",
			Help:    "Latency of parsing a single audit line",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		},
		[]string{"parser"},
	)
)

func init() {
	prometheus.MustRegister(ReceivedLines, ParsedCommands, FailedLines, PersistedCommands, ParseLatency)
}
