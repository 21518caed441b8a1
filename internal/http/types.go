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
)

type Server struct {
	Players        roster.PlayerRoster
	Queues         queue.QueueStore
	Matches        match.MatchRecorder
	Metrics        metrics.Metrics
	Counters       metrics.MetricsStore
	MetricsHandler http.Handler
	Cfg            config.Config
	Notifier       notifier.Notifier
	Processor      *processor.Processor
	Router         *http.ServeMux
	// Inngest is nil when no app id is configured.
	Inngest inngest.InngestClient
	pubsub  pubsub.PubSubClient
}

// errorResponse is the body of every rejected request.
type errorResponse struct {
	Reason string `json:"reason"`
}

// playerRef names a player either by id or by a name/mention query.
type playerRef struct {
	PlayerID int64  `json:"playerId"`
	Player   string `json:"player"`
}

type joinRequest struct {
	playerRef
	ChannelID int64 `json:"channelId"`
}

type voteKickRequest struct {
	VoterID  int64  `json:"voterId"`
	TargetID int64  `json:"targetId"`
	Target   string `json:"target"`
}

type startRequest struct {
	Server string `json:"server"`
}

type recordFromQueueRequest struct {
	QueueID int64 `json:"queueId"`
	Winner  int   `json:"winner"`
}

type recordManualRequest struct {
	TeamA  []int64 `json:"teamA"`
	TeamB  []int64 `json:"teamB"`
	Winner int     `json:"winner"`
	DotaID string  `json:"dotaId"`
}

type ratingRequest struct {
	Value  int    `json:"value"`
	Reason string `json:"reason"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type dotaIDRequest struct {
	DotaID string `json:"dotaId"`
}

type seenResponse struct {
	Queued bool `json:"queued"`
}

type banRequest struct {
	Status roster.BanStatus `json:"status"`
}

type minMMRRequest struct {
	MinMMR int `json:"minMmr"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

// pushEnvelope is the body Pub/Sub push subscriptions deliver.
type pushEnvelope struct {
	Subscription string `json:"subscription"`
	Message      struct {
		Data      string `json:"data"` // base64-encoded message payload
		MessageID string `json:"messageId"`
	} `json:"message"`
}
