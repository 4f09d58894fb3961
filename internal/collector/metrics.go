package collector

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "collector",
			Name:      "requests_total",
			Help:      "Helpdesk API requests by HTTP status class",
		},
		[]string{"class"},
	)

	rateLimitWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "collector",
			Name:      "rate_limit_waits_total",
			Help:      "Waits before a request, by reason (throttle or retry_after)",
		},
		[]string{"reason"},
	)

	transportRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "collector",
			Name:      "transport_retries_total",
			Help:      "Requests resent after a transport error",
		},
	)

	rowsCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helpdesk",
			Subsystem: "collector",
			Name:      "rows_collected_total",
			Help:      "Rows assembled by completed collection runs",
		},
		[]string{"dataset"},
	)
)

// RegisterMetrics registers the collector counters with reg. Registering
// twice with the same registry is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{requestsTotal, rateLimitWaits, transportRetries, rowsCollected} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
