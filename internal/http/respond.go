package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/slack-go/slack"
)

var errMissingPlayer = errors.New("player id or name required")

// errorStatuses maps domain errors to a status and message key. Order
// matters: the first match wins.
var errorStatuses = []struct {
	err    error
	status int
	key    string
}{
	{roster.ErrPlayerNotFound, http.StatusNotFound, "player_not_found"},
	{roster.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
	{roster.ErrNameTaken, http.StatusConflict, "name_taken"},
	{roster.ErrInvalidName, http.StatusUnprocessableEntity, "invalid_name"},
	{roster.ErrMissingDotaID, http.StatusUnprocessableEntity, "missing_dota_id"},
	{roster.ErrInvalidMMR, http.StatusUnprocessableEntity, "invalid_mmr"},
	{roster.ErrInvalidRole, http.StatusUnprocessableEntity, "invalid_role"},
	{roster.ErrInvalidBanStatus, http.StatusUnprocessableEntity, "invalid_ban_status"},
	{roster.ErrInvalidLimit, http.StatusUnprocessableEntity, "invalid_limit"},
	{queue.ErrQueueNotFound, http.StatusNotFound, "queue_not_found"},
	{queue.ErrChannelNotFound, http.StatusNotFound, "channel_not_found"},
	{queue.ErrChannelExists, http.StatusConflict, "channel_exists"},
	{queue.ErrInvalidState, http.StatusConflict, "invalid_queue_state"},
	{queue.ErrConflict, http.StatusConflict, "conflict"},
	{match.ErrQueueNotFound, http.StatusNotFound, "queue_not_found"},
	{match.ErrMatchNotFound, http.StatusNotFound, "match_not_found"},
	{match.ErrInvalidWinner, http.StatusUnprocessableEntity, "wrong_winner"},
	{match.ErrInvalidTeams, http.StatusUnprocessableEntity, "wrong_record_usage"},
	{errMissingPlayer, http.StatusUnprocessableEntity, "player_required"},
}

// statusFor resolves err to a client status and message key. Unknown errors
// become a 500 without leaking their text.
func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.key
		}
	}
	if code := match.ErrorCode(err); code != "" {
		return http.StatusConflict, code
	}
	return http.StatusInternalServerError, "internal_error"
}

// reasonStatus is 422 for eligibility failures and 409 for state conflicts.
func reasonStatus(reason queue.Reason) int {
	switch reason {
	case queue.ReasonChannelInactive, queue.ReasonBanned, queue.ReasonNotVouched,
		queue.ReasonMmrTooLow, queue.ReasonMmrTooHigh:
		return http.StatusUnprocessableEntity
	}
	return http.StatusConflict
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, key string) {
	respondJSON(w, status, errorResponse{Reason: key})
}

// respondErr logs err and writes its public form.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, key := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		log.Debug("Request rejected", "path", r.URL.Path, "reason", key, "error", err)
	}
	respondError(w, status, key)
}

func respondReason(w http.ResponseWriter, reason queue.Reason) {
	respondError(w, reasonStatus(reason), reason.MessageKey())
}

func respondWithSlackMsg(w http.ResponseWriter, msg slack.Message) {
	respondJSON(w, http.StatusOK, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Debug("Invalid request body", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusBadRequest, "invalid_body")
		return false
	}
	return true
}

// pathID parses the {id} wildcard of the matched route.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
