package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
)

// resolve turns a playerRef into a player id.
func (s *Server) resolve(ctx context.Context, ref playerRef) (int64, error) {
	if ref.PlayerID != 0 {
		return ref.PlayerID, nil
	}
	if ref.Player == "" {
		return 0, errMissingPlayer
	}
	p, err := s.Players.Resolve(ctx, ref.Player)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params roster.RegisterParams
		if !decodeJSON(w, r, &params) {
			return
		}
		p, err := s.Players.Register(r.Context(), params)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Registered player", "id", p.ID, "name", p.Name)
		respondJSON(w, http.StatusCreated, p)
	}
}

func (s *Server) ResolvePlayerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Players.Resolve(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

func (s *Server) GetPlayerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		p, err := s.Players.Get(r.Context(), id)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

// SetRolesHandler accepts either a full role set or a single role update.
func (s *Server) SetRolesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req struct {
			Roles *roster.Roles `json:"roles"`
			Role  string        `json:"role"`
			Value int           `json:"value"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		var (
			p   *roster.Player
			err error
		)
		switch {
		case req.Roles != nil:
			p, err = s.Players.SetRoles(r.Context(), id, *req.Roles)
		case req.Role != "":
			p, err = s.Players.SetRole(r.Context(), id, req.Role, req.Value)
		default:
			err = roster.ErrInvalidRole
		}
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

func (s *Server) StreakHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		season, err := queryInt(r, "season", s.Matches.Season())
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_season")
			return
		}
		streaks, err := s.Matches.PlayerStreaks(r.Context(), id, season)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, streaks)
	}
}

func (s *Server) RecentMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		matches, err := s.Matches.RecentMatches(r.Context(), id, limit)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, matches)
	}
}

func (s *Server) standings(w http.ResponseWriter, r *http.Request) ([]roster.Standing, bool) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_limit")
		return nil, false
	}
	season, err := queryInt(r, "season", s.Matches.Season())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_season")
		return nil, false
	}
	bottom := r.URL.Query().Get("bottom") == "true"
	standings, err := s.Players.Leaderboard(r.Context(), season, limit, bottom)
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	return standings, true
}

func (s *Server) LeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		standings, ok := s.standings(w, r)
		if !ok {
			return
		}
		respondJSON(w, http.StatusOK, standings)
	}
}

func (s *Server) VouchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.Players.Vouch(r.Context(), id); err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Vouched player", "id", id, "admin", adminFromContext(r))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) BanHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		req := banRequest{Status: roster.BanOther}
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		if err := s.Players.Ban(r.Context(), id, req.Status); err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Banned player", "id", id, "status", req.Status, "admin", adminFromContext(r))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) UnbanHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.Players.Unban(r.Context(), id); err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Unbanned player", "id", id, "admin", adminFromContext(r))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AdjustRatingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req ratingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		change, err := s.Matches.AdjustRating(r.Context(), id, req.Value, req.Reason)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Adjusted rating", "player", id, "delta", change.MMRChange, "admin", adminFromContext(r))
		respondJSON(w, http.StatusOK, change)
	}
}

func (s *Server) RenameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req renameRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.Players.Rename(r.Context(), id, req.Name); err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Renamed player", "id", id, "name", req.Name, "admin", adminFromContext(r))
		s.respondPlayer(w, r, id)
	}
}

func (s *Server) SetDotaIDHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req dotaIDRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.DotaID) == "" {
			respondErr(w, r, roster.ErrMissingDotaID)
			return
		}
		if err := s.Players.SetDotaID(r.Context(), id, req.DotaID); err != nil {
			respondErr(w, r, err)
			return
		}
		log.Info("Changed dota id", "id", id, "dotaId", req.DotaID, "admin", adminFromContext(r))
		s.respondPlayer(w, r, id)
	}
}

// ReportsHandler lists the reports a player received, or the tips with
// ?tips=true.
func (s *Server) ReportsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		reports, err := s.Matches.Reports(r.Context(), id, r.URL.Query().Get("tips") == "true")
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if reports == nil {
			reports = []match.Report{}
		}
		respondJSON(w, http.StatusOK, reports)
	}
}

func (s *Server) respondPlayer(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := s.Players.Get(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
