package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		QueueJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_queue_joins_total",
			Help: "The total number of successful queue joins.",
		}),
		QueueLeaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_queue_leaves_total",
			Help: "The total number of players that left or were removed from a queue.",
		}),
		QueueRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_queue_rejections_total",
			Help: "Rejected queue operations by reason.",
		}, []string{"reason"}),
		QueuesBalanced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_queues_balanced_total",
			Help: "The total number of queues that filled up and were balanced.",
		}),
		VoteKicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_vote_kicks_total",
			Help: "The total number of players removed by vote-kick.",
		}),
		BalanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ladder_balance_duration_seconds",
			Help:    "Time spent ranking the splits of a full queue.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		MatchesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_matches_recorded_total",
			Help: "The total number of recorded matches.",
		}),
		RatingAdjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_rating_adjustments_total",
			Help: "The total number of administrative rating changes.",
		}),
		NotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_notifications_sent_total",
			Help: "The total number of chat notifications successfully sent.",
		}),
		NotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_notifications_failed_total",
			Help: "The total number of chat notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ladder_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.QueueJoins,
		s.QueueLeaves,
		s.QueueRejections,
		s.QueuesBalanced,
		s.VoteKicks,
		s.BalanceDuration,
		s.MatchesRecorded,
		s.RatingAdjustments,
		s.NotifSent,
		s.NotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncQueueJoins() {
	s.QueueJoins.Inc()
}

func (s *Service) IncQueueLeaves() {
	s.QueueLeaves.Inc()
}

func (s *Service) IncQueueRejection(reason string) {
	s.QueueRejections.WithLabelValues(reason).Inc()
}

func (s *Service) IncQueuesBalanced() {
	s.QueuesBalanced.Inc()
}

func (s *Service) IncVoteKicks() {
	s.VoteKicks.Inc()
}

func (s *Service) ObserveBalanceDuration(seconds float64) {
	s.BalanceDuration.Observe(seconds)
}

func (s *Service) IncMatchesRecorded() {
	s.MatchesRecorded.Inc()
}

func (s *Service) IncRatingAdjustments() {
	s.RatingAdjustments.Inc()
}

func (s *Service) IncNotifSent() {
	s.NotifSent.Inc()
}

func (s *Service) IncNotifFailed() {
	s.NotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
