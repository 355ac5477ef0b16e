package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agritrace"

var (
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "submissions_total",
		Help:      "Ledger submissions by contract method and outcome.",
	}, []string{"method", "outcome"})

	ConfirmationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "confirmation_seconds",
		Help:      "Time from nonce lookup to confirmed receipt.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	Polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "polls_total",
		Help:      "Monitor poll cycles by result.",
	}, []string{"result"})

	Cursor = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "cursor_height",
		Help:      "Last ledger height processed by the monitor.",
	})

	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "subscribers",
		Help:      "Currently connected subscribers.",
	})

	Dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "dropped_events_total",
		Help:      "Events dropped because a subscriber buffer was full.",
	})
)

// Register adds every collector to the given registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		Submissions,
		ConfirmationSeconds,
		Polls,
		Cursor,
		Subscribers,
		Dropped,
	}
	for _, c := range collectors {
		err := reg.Register(c)
		if err != nil {
			return err
		}
	}
	return nil
}
