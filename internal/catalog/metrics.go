package catalog

import "github.com/prometheus/client_golang/prometheus"

const (
	resultHit  = "hit"
	resultMiss = "miss"
)

var (
	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesphere_catalog_lookups_total",
			Help: "Catalog reads by cache result.",
		},
		[]string{"result"},
	)

	refreshFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codesphere_catalog_refresh_failures_total",
			Help: "Catalog fetches from the backend that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(lookupsTotal)
	prometheus.MustRegister(refreshFailuresTotal)

	lookupsTotal.WithLabelValues(resultHit)
	lookupsTotal.WithLabelValues(resultMiss)
}
