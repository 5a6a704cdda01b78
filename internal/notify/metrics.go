package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrackd_notifications_sent_total",
		Help: "Notifications delivered successfully, by channel.",
	}, []string{"channel"})

	notificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrackd_notifications_failed_total",
		Help: "Notification attempts that failed, by channel.",
	}, []string{"channel"})
)
