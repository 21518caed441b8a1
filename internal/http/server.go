package http

import (
	"net/http"

	"github.com/mauv0809/inhouse-ladder/internal/config"
	"github.com/mauv0809/inhouse-ladder/internal/inngest"
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/notifier"
	"github.com/mauv0809/inhouse-ladder/internal/processor"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/rs/cors"
)

func NewServer(players roster.PlayerRoster, queues queue.QueueStore, matches match.MatchRecorder, metricsSvc metrics.Metrics, counters metrics.MetricsStore, metricsHandler http.Handler, cfg config.Config, notifier notifier.Notifier, processor *processor.Processor, pubsub pubsub.PubSubClient, inngestClient inngest.InngestClient) *Server {
	server := &Server{
		Players:        players,
		Queues:         queues,
		Matches:        matches,
		Metrics:        metricsSvc,
		Counters:       counters,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Notifier:       notifier,
		Processor:      processor,
		Router:         http.NewServeMux(),
		Inngest:        inngestClient,
		pubsub:         pubsub,
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// Admin routes additionally require a signed admin token.
	admin := s.adminMiddleware()

	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("GET /stats", Chain(s.StatsHandler(), paramsMiddleware))

	s.Router.Handle("POST /players", Chain(s.RegisterHandler(), paramsMiddleware))
	s.Router.Handle("GET /players/resolve", Chain(s.ResolvePlayerHandler(), paramsMiddleware))
	s.Router.Handle("GET /players/{id}", Chain(s.GetPlayerHandler(), paramsMiddleware))
	s.Router.Handle("POST /players/{id}/roles", Chain(s.SetRolesHandler(), paramsMiddleware))
	s.Router.Handle("POST /players/{id}/seen", Chain(s.SeenHandler(), paramsMiddleware))
	s.Router.Handle("GET /players/{id}/streak", Chain(s.StreakHandler(), paramsMiddleware))
	s.Router.Handle("GET /players/{id}/matches", Chain(s.RecentMatchesHandler(), paramsMiddleware))
	s.Router.Handle("GET /leaderboard", Chain(s.LeaderboardHandler(), paramsMiddleware))

	s.Router.Handle("GET /channels", Chain(s.ListChannelsHandler(), paramsMiddleware))
	s.Router.Handle("GET /queues", Chain(s.ListQueuesHandler(), paramsMiddleware))
	s.Router.Handle("GET /queues/{id}/candidates", Chain(s.CandidatesHandler(), paramsMiddleware))
	s.Router.Handle("POST /queues/join", Chain(s.JoinHandler(false), paramsMiddleware))
	s.Router.Handle("POST /queues/leave", Chain(s.LeaveHandler(false), paramsMiddleware))
	s.Router.Handle("POST /queues/votekick", Chain(s.VoteKickHandler(), paramsMiddleware))
	s.Router.Handle("POST /reports", Chain(s.ReportHandler(), paramsMiddleware))

	s.Router.Handle("GET /slack/queues", Chain(s.SlackQueuesHandler(), paramsMiddleware))
	s.Router.Handle("GET /slack/leaderboard", Chain(s.SlackLeaderboardHandler(), paramsMiddleware))

	s.Router.Handle("POST /admin/queues/add", Chain(s.JoinHandler(true), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/queues/kick", Chain(s.LeaveHandler(true), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/queues/{id}/start", Chain(s.StartGameHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/queues/{id}/close", Chain(s.CloseQueueHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/matches/from-queue", Chain(s.RecordFromQueueHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/matches/manual", Chain(s.RecordManualHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/players/{id}/rating", Chain(s.AdjustRatingHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/players/{id}/vouch", Chain(s.VouchHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/players/{id}/ban", Chain(s.BanHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/players/{id}/unban", Chain(s.UnbanHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/players/{id}/name", Chain(s.RenameHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/players/{id}/dota-id", Chain(s.SetDotaIDHandler(), paramsMiddleware, admin))
	s.Router.Handle("GET /admin/players/{id}/reports", Chain(s.ReportsHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/channels", Chain(s.CreateChannelHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/channels/{id}/min-mmr", Chain(s.SetMinMMRHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/channels/{id}/active", Chain(s.SetActiveHandler(), paramsMiddleware, admin))

	s.Router.Handle("POST /events/queue-balanced", Chain(s.QueueBalancedHandler(), paramsMiddleware))
	s.Router.Handle("POST /events/match-recorded", Chain(s.MatchRecordedHandler(), paramsMiddleware))
	s.Router.Handle("POST /refresh", Chain(s.RefreshHandler(), paramsMiddleware))

	if s.Inngest != nil {
		s.Router.Handle("/api/inngest", s.Inngest.Serve())
		s.Router.Handle("POST /inngest/refresh", Chain(s.SendRefreshEventHandler(), paramsMiddleware, admin))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Handler wraps the router with the CORS policy for browser clients.
func (s *Server) Handler() http.Handler {
	origins := s.Cfg.Admin.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.Router)
}
