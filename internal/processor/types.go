package processor

import (
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/metrics"
)

// Processor turns committed ladder events into announcements.
type Processor struct {
	queues   QueueReader
	matches  MatchReader
	notifier Notifier
	metrics  metrics.Metrics
	counters metrics.MetricsStore
	// afkAfter is how long an OPEN queue member may stay silent before the
	// refresh flags them. Zero disables the check.
	afkAfter time.Duration
}
