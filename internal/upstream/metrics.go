package upstream

import "github.com/prometheus/client_golang/prometheus"

// Backend endpoint label values.
const (
	endpointRuntimes = "runtimes"
	endpointExecute  = "execute"

	outcomeSuccess = "success"
)

var (
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesphere_backend_requests_total",
			Help: "Total number of calls to the execution backend by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codesphere_backend_request_duration_seconds",
			Help:    "Execution backend call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(backendRequestsTotal)
	prometheus.MustRegister(backendRequestDuration)

	for _, ep := range []string{endpointRuntimes, endpointExecute} {
		for _, outcome := range []string{outcomeSuccess, string(KindUpstream), string(KindNoResponse), string(KindRequestSetup)} {
			backendRequestsTotal.WithLabelValues(ep, outcome)
		}
	}
}

func observe(endpoint string, err *Error, seconds float64) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = string(err.Kind)
	}
	backendRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	backendRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}
