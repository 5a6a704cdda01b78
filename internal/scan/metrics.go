package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subtrackd_scan_runs_total",
		Help: "Expiration scan runs executed.",
	})

	dueSubscriptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subtrackd_scan_due_subscriptions_total",
		Help: "Subscriptions found due across all scan runs.",
	})
)
