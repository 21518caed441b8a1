package match

import (
	"errors"
	"time"
)

// Match is a recorded result. Teams[Winner] won.
type Match struct {
	ID        string           `json:"id"`
	BalanceID string           `json:"balanceId"`
	QueueID   *int64           `json:"queueId,omitempty"`
	Winner    int              `json:"winner"`
	Season    int              `json:"season"`
	DotaID    string           `json:"dotaId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	Teams     [2][]MatchPlayer `json:"teams"`
}

type MatchPlayer struct {
	PlayerID  int64  `json:"playerId"`
	Name      string `json:"name"`
	Team      int    `json:"team"`
	MMRBefore int    `json:"mmrBefore"`
	MMRChange int    `json:"mmrChange"`
}

// ScoreChange is one entry of a player's rating ledger.
type ScoreChange struct {
	ID        string    `json:"id"`
	PlayerID  int64     `json:"playerId"`
	MMRChange int       `json:"mmrChange"`
	Season    int       `json:"season"`
	Info      string    `json:"info"`
	MatchID   *string   `json:"matchId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Outcome of one match from a player's point of view.
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
)

// PlayedMatch is a match as seen from one participant.
type PlayedMatch struct {
	MatchID   string    `json:"matchId"`
	DotaID    string    `json:"dotaId,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	MMRChange int       `json:"mmrChange"`
	CreatedAt time.Time `json:"createdAt"`
}

// Streaks summarises a season of outcomes. Current is positive for a
// winning run and negative for a losing one.
type Streaks struct {
	Current     int `json:"current"`
	LongestWin  int `json:"longestWin"`
	LongestLoss int `json:"longestLoss"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
}

// ReportParams describes a report (negative value) or tip (positive value)
// from one participant of a match about another.
type ReportParams struct {
	FromPlayerID int64  `json:"fromPlayerId"`
	ToPlayerID   int64  `json:"toPlayerId"`
	MatchID      string `json:"matchId,omitempty"`
	Tip          bool   `json:"tip"`
	Comment      string `json:"comment"`
}

type Report struct {
	ID           string    `json:"id"`
	FromPlayerID int64     `json:"fromPlayerId"`
	ToPlayerID   int64     `json:"toPlayerId"`
	MatchID      string    `json:"matchId"`
	Value        int       `json:"value"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReportWindow is how long after a match reports are accepted.
const ReportWindow = 48 * time.Hour

var (
	ErrQueueNotFound     = errors.New("queue not found")
	ErrQueueClosed       = errors.New("queue already closed")
	ErrNoBalanceAttached = errors.New("queue has no balance attached")
	ErrAlreadyRecorded   = errors.New("balance already recorded")
	ErrInvalidWinner     = errors.New("winner must be 0 or 1")
	ErrInvalidTeams      = errors.New("teams must be 5 distinct players each")
	ErrMatchNotFound     = errors.New("match not found")
	ErrNoMatchToReport   = errors.New("no match to report")
	ErrMatchTooOld       = errors.New("match too old to report")
	ErrDuplicateReport   = errors.New("duplicate report")
	ErrSelfReport        = errors.New("cannot report yourself")
	ErrNotPlayedTogether = errors.New("players were not in the match together")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrQueueNotFound, "queue_not_found"},
	{ErrQueueClosed, "queue_closed"},
	{ErrNoBalanceAttached, "no_balance_attached"},
	{ErrAlreadyRecorded, "already_recorded"},
	{ErrInvalidWinner, "wrong_winner"},
	{ErrInvalidTeams, "wrong_record_usage"},
	{ErrMatchNotFound, "match_not_found"},
	{ErrNoMatchToReport, "no_match_to_report"},
	{ErrMatchTooOld, "match_too_old"},
	{ErrDuplicateReport, "duplicate_report"},
	{ErrSelfReport, "self_report"},
	{ErrNotPlayedTogether, "not_played_together"},
}

// ErrorCode maps a rejection to its message key. It returns "" for errors
// that are not rejections.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
