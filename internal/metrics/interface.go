package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncQueueJoins()
	IncQueueLeaves()
	IncQueueRejection(reason string)
	IncQueuesBalanced()
	IncVoteKicks()
	ObserveBalanceDuration(seconds float64)
	IncMatchesRecorded()
	IncRatingAdjustments()
	IncNotifSent()
	IncNotifFailed()
	SetStartupTime(duration float64)
}

// MetricsStore persists lifetime counters that survive restarts.
type MetricsStore interface {
	Increment(key string)
	GetAll() (map[string]int, error)
}
