package http

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/match"
)

func (s *Server) RecordFromQueueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordFromQueueRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		m, err := s.Matches.RecordFromQueue(r.Context(), req.QueueID, req.Winner)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Recorded match", "match", m.ID, "queue", req.QueueID, "winner", m.Winner, "admin", adminFromContext(r))
		respondJSON(w, http.StatusCreated, m)
	}
}

func (s *Server) RecordManualHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordManualRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		m, err := s.Matches.RecordManual(r.Context(), req.TeamA, req.TeamB, req.Winner, req.DotaID)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Recorded manual match", "match", m.ID, "winner", m.Winner, "admin", adminFromContext(r))
		respondJSON(w, http.StatusCreated, m)
	}
}

// ReportHandler stores a report or tip about a teammate or opponent.
func (s *Server) ReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params match.ReportParams
		if !decodeJSON(w, r, &params) {
			return
		}
		report, err := s.Matches.Report(r.Context(), params)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, report)
	}
}
