package gdbserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "gdbserver_sessions_started_total",
		Help: "The total number of debug sessions accepted",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "gdbserver_sessions_active",
		Help: "The number of debug sessions currently running",
	})

	packetsHandled = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "gdbserver_packets_total",
		Help: "The total number of command packets handled, by command",
	}, []string{"command"})

	packetErrors = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "gdbserver_packet_errors_total",
		Help: "The total number of packets that failed to parse",
	})

	targetErrors = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "gdbserver_target_errors_total",
		Help: "The total number of errors returned by the debug target",
	})
)
