package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_relayed_total",
		Help: "The total number of payloads accepted and forwarded downstream",
	}, []string{"role"})

	RecordsStored = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_store_records",
		Help: "The number of records held by the in-memory store",
	}, []string{"store"})

	ForwardFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_forward_failures_total",
		Help: "The total number of failed downstream calls",
	}, []string{"role", "reason"})

	RPCCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_rpc_client_duration_seconds",
			Help:    "The duration of outbound RPC calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RPCHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rpc_server_handled_total",
			Help: "The total number of inbound RPC calls by method and status code",
		},
		[]string{"method", "code"},
	)

	TLSHandshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_tls_handshake_failures_total",
		Help: "The total number of inbound connections rejected during the TLS handshake",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "The duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "The total number of HTTP requests",
		},
		[]string{"handler"},
	)

	HTTPRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "The total number of HTTP request errors",
		},
		[]string{"handler", "code"},
	)
)
