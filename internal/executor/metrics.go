package executor

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
)

var batchItemsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codesphere_batch_items_total",
		Help: "Batch items processed by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(batchItemsTotal)

	batchItemsTotal.WithLabelValues(outcomeSucceeded)
	batchItemsTotal.WithLabelValues(outcomeFailed)
}
