package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
// By defining them all in one place, we ensure consistency in naming and labeling.
type Service struct {
	QueueJoins         prometheus.Counter
	QueueLeaves        prometheus.Counter
	QueueRejections    *prometheus.CounterVec
	QueuesBalanced     prometheus.Counter
	VoteKicks          prometheus.Counter
	BalanceDuration    prometheus.Histogram
	MatchesRecorded    prometheus.Counter
	RatingAdjustments  prometheus.Counter
	NotifSent          prometheus.Counter
	NotifFailed        prometheus.Counter
	StartupTimeSeconds prometheus.Gauge
}

// Keys used with MetricsStore.
const (
	KeyQueuesAnnounced  = "queues_announced"
	KeyMatchesAnnounced = "matches_announced"
	KeyQueueRefreshes   = "queue_refreshes"
	KeyAFKFlagged       = "afk_flagged"
)

// LadderKeys are the counters the ladder reports even before their first
// increment.
var LadderKeys = []string{KeyQueuesAnnounced, KeyMatchesAnnounced, KeyQueueRefreshes, KeyAFKFlagged}
