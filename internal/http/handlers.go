package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/inngest"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/slack-go/slack"
)

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// StatsHandler returns the persisted counters.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := s.Counters.GetAll()
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, counters)
	}
}

// readPush unwraps a Pub/Sub push request into the decoded event.
func (s *Server) readPush(w http.ResponseWriter, r *http.Request, event any) bool {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("Failed to read request body", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error")
		return false
	}
	log.Debug("Received push message", "path", r.URL.Path, "body", string(bodyBytes))

	var envelope pushEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		log.Error("Failed to unmarshal wrapper JSON", "error", err)
		respondError(w, http.StatusBadRequest, "invalid_body")
		return false
	}
	// Decode base64 to raw MessagePack bytes
	rawData, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		log.Error("Failed to decode base64 data", "error", err)
		respondError(w, http.StatusBadRequest, "invalid_body")
		return false
	}
	if err := s.pubsub.ProcessMessage(rawData, event); err != nil {
		log.Error("Failed to decode event", "messageId", envelope.Message.MessageID, "error", err)
		respondError(w, http.StatusBadRequest, "invalid_body")
		return false
	}
	return true
}

// QueueBalancedHandler announces a queue that filled up.
func (s *Server) QueueBalancedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event pubsub.QueueBalancedEvent
		if !s.readPush(w, r, &event) {
			return
		}
		if err := s.Processor.HandleQueueBalanced(r.Context(), event, isDryRunFromContext(r)); err != nil {
			// A non-2xx answer makes Pub/Sub redeliver.
			respondErr(w, r, err)
			return
		}
		w.Write([]byte("OK"))
	}
}

// MatchRecordedHandler announces a recorded result.
func (s *Server) MatchRecordedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event pubsub.MatchRecordedEvent
		if !s.readPush(w, r, &event) {
			return
		}
		if err := s.Processor.HandleMatchRecorded(r.Context(), event, isDryRunFromContext(r)); err != nil {
			respondErr(w, r, err)
			return
		}
		w.Write([]byte("OK"))
	}
}

// RefreshHandler applies channel schedules and reposts the queue display.
// post=false only applies the schedules.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post := true
		if raw := r.URL.Query().Get("post"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid_post")
				return
			}
			post = v
		}
		views, err := s.Processor.RefreshQueues(r.Context(), time.Now(), post, isDryRunFromContext(r))
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, views)
	}
}

// SendRefreshEventHandler queues a refresh through inngest instead of running it inline.
func (s *Server) SendRefreshEventHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Inngest.SendEvent(inngest.RefreshEvent, map[string]any{
			"post":   true,
			"dryRun": isDryRunFromContext(r),
		})
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("OK"))
	}
}

// SlackQueuesHandler renders the active queues as a Slack message.
func (s *Server) SlackQueuesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := s.Queues.ListActiveViews(r.Context())
		if err != nil {
			respondErr(w, r, err)
			return
		}
		msg, err := s.Notifier.FormatQueuesResponse(views, r.URL.Query().Get("verbose") == "true")
		if err != nil {
			log.Error("Failed to format queues", "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		slackMsg, ok := msg.(slack.Message)
		if !ok {
			log.Error("Failed to cast message to slack.Message")
			respondError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		respondWithSlackMsg(w, slackMsg)
	}
}

// SlackLeaderboardHandler renders the current season's leaderboard as a Slack message.
func (s *Server) SlackLeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		standings, ok := s.standings(w, r)
		if !ok {
			return
		}
		msg, err := s.Notifier.FormatLeaderboardResponse(standings)
		if err != nil {
			log.Error("Failed to format leaderboard", "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		slackMsg, ok := msg.(slack.Message)
		if !ok {
			log.Error("Failed to cast message to slack.Message")
			respondError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		respondWithSlackMsg(w, slackMsg)
	}
}
