package http

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
)

// JoinHandler adds a player to the fullest open queue of a channel. The
// admin variant skips the eligibility checks.
func (s *Server) JoinHandler(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		playerID, err := s.resolve(r.Context(), req.playerRef)
		if err != nil {
			respondErr(w, r, err)
			return
		}

		var res queue.JoinResult
		if force {
			res, err = s.Queues.ForceAdd(r.Context(), playerID, req.ChannelID)
		} else {
			res, err = s.Queues.Join(r.Context(), playerID, req.ChannelID)
		}
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if res.Reason != queue.ReasonNone {
			respondReason(w, res.Reason)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// LeaveHandler removes a player from their active queue. The admin variant
// also removes players from full queues.
func (s *Server) LeaveHandler(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ref playerRef
		if !decodeJSON(w, r, &ref) {
			return
		}
		playerID, err := s.resolve(r.Context(), ref)
		if err != nil {
			respondErr(w, r, err)
			return
		}

		var res queue.LeaveResult
		if force {
			res, err = s.Queues.ForceRemove(r.Context(), playerID)
		} else {
			res, err = s.Queues.Leave(r.Context(), playerID)
		}
		if err != nil {
			respondErr(w, r, err)
			return
		}
		// Leaving when not queued is a no-op; the reason is informational.
		if res.Reason != queue.ReasonNone && res.Reason != queue.ReasonNotInQueue {
			respondReason(w, res.Reason)
			return
		}
		if force && res.Left {
			log.Info("Removed player from queue", "player", playerID, "queue", res.QueueID, "admin", adminFromContext(r))
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func (s *Server) VoteKickHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req voteKickRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		targetID, err := s.resolve(r.Context(), playerRef{PlayerID: req.TargetID, Player: req.Target})
		if err != nil {
			respondErr(w, r, err)
			return
		}
		res, err := s.Queues.VoteKick(r.Context(), req.VoterID, targetID)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if res.Reason != queue.ReasonNone {
			respondReason(w, res.Reason)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// ListQueuesHandler lists active queues, optionally for a single channel.
func (s *Server) ListQueuesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			views []queue.QueueView
			err   error
		)
		if r.URL.Query().Has("channel") {
			channelID, perr := queryInt(r, "channel", 0)
			if perr != nil {
				respondError(w, http.StatusBadRequest, "invalid_channel")
				return
			}
			views, err = s.Queues.GetQueueView(r.Context(), int64(channelID))
		} else {
			views, err = s.Queues.ListActiveViews(r.Context())
		}
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if views == nil {
			views = []queue.QueueView{}
		}
		respondJSON(w, http.StatusOK, views)
	}
}

// SeenHandler records that a player is at the keyboard, clearing any AFK
// flag on their queue membership at the next refresh.
func (s *Server) SeenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		queued, err := s.Queues.Touch(r.Context(), id, time.Now())
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, seenResponse{Queued: queued})
	}
}

// CandidatesHandler lists the ranked team splits of a queue's latest
// balancing, best first.
func (s *Server) CandidatesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		answers, err := s.Queues.Candidates(r.Context(), id)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if answers == nil {
			answers = []balance.Answer{}
		}
		respondJSON(w, http.StatusOK, answers)
	}
}

func (s *Server) StartGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req startRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		q, err := s.Queues.StartGame(r.Context(), id, req.Server)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

func (s *Server) CloseQueueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		q, err := s.Queues.Close(r.Context(), id)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Closed queue", "queue", id, "admin", adminFromContext(r))
		respondJSON(w, http.StatusOK, q)
	}
}

func (s *Server) ListChannelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels, err := s.Queues.ListChannels(r.Context())
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if channels == nil {
			channels = []queue.Channel{}
		}
		respondJSON(w, http.StatusOK, channels)
	}
}

func (s *Server) CreateChannelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c queue.Channel
		if !decodeJSON(w, r, &c) {
			return
		}
		created, err := s.Queues.CreateChannel(r.Context(), c)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) SetMinMMRHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req minMMRRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		c, reason, err := s.Queues.SetChannelMinMMR(r.Context(), id, req.MinMMR)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if reason != queue.ReasonNone {
			respondReason(w, reason)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

func (s *Server) SetActiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req activeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.Queues.SetChannelActive(r.Context(), id, req.Active); err != nil {
			respondErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
