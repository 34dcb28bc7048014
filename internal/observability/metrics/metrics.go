package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_tokens_issued_total",
			Help: "Total number of access-token issuance attempts.",
		},
		[]string{"service", "result"},
	)

	TokenValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_token_validations_total",
			Help: "Total number of access-token validations.",
		},
		[]string{"service", "result"},
	)

	LoginSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_login_sessions_total",
			Help: "Total number of QR login attempts by terminal outcome.",
		},
		[]string{"service", "outcome"},
	)

	MessagesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_messages_ingested_total",
			Help: "Total number of inbound messages by type and result.",
		},
		[]string{"service", "type", "result"},
	)

	ForwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_forwards_total",
			Help: "Total number of webhook delivery attempts.",
		},
		[]string{"service", "result"},
	)

	ForwardDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_forward_duration_seconds",
			Help:    "Duration of webhook deliveries.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	TokensIssuedTotal = TokensIssuedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	TokenValidationsTotal = TokenValidationsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	LoginSessionsTotal = LoginSessionsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	MessagesIngestedTotal = MessagesIngestedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	ForwardsTotal = ForwardsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	ForwardDurationSeconds = ForwardDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)

	prometheus.MustRegister(
		HTTPRequestsTotal,
		TokensIssuedTotal,
		TokenValidationsTotal,
		LoginSessionsTotal,
		MessagesIngestedTotal,
		ForwardsTotal,
		ForwardDurationSeconds,
	)
}
