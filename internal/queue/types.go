package queue

import (
	"errors"
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/balance"
)

// State is the lifecycle position of a queue.
type State string

const (
	StateOpen     State = "OPEN"
	StateBalanced State = "BALANCED"
	StateInGame   State = "IN_GAME"
	StateClosed   State = "CLOSED"
)

// Full reports whether the roster is frozen behind a balance.
func (s State) Full() bool {
	return s == StateBalanced || s == StateInGame
}

func (s State) Active() bool {
	return s != StateClosed
}

// Reason explains a rejected or no-op queue operation. The empty Reason means success.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonChannelInactive    Reason = "channel_inactive"
	ReasonBanned             Reason = "banned"
	ReasonNotVouched         Reason = "not_vouched"
	ReasonMmrTooLow          Reason = "mmr_too_low"
	ReasonMmrTooHigh         Reason = "mmr_too_high"
	ReasonAlreadyInQueue     Reason = "already_in_queue"
	ReasonAlreadyInFullQueue Reason = "already_in_full_queue"
	ReasonInGame             Reason = "in_game"
	ReasonNotInQueue         Reason = "not_in_queue"
	ReasonNotInFullQueue     Reason = "not_in_full_queue"
	ReasonTargetNotInQueue   Reason = "target_not_in_queue"
	ReasonChannelBusy        Reason = "channel_busy"
	ReasonConflict           Reason = "conflict"
)

var messageKeys = map[Reason]string{
	ReasonChannelInactive:    "channel_inactive",
	ReasonBanned:             "banned",
	ReasonNotVouched:         "not_vouched",
	ReasonMmrTooLow:          "mmr_too_low",
	ReasonMmrTooHigh:         "mmr_too_big",
	ReasonAlreadyInQueue:     "already_in_this_queue",
	ReasonAlreadyInFullQueue: "already_in_full_queue",
	ReasonInGame:             "in_game",
	ReasonNotInQueue:         "not_in_this_queue",
	ReasonNotInFullQueue:     "not_in_full_queue",
	ReasonTargetNotInQueue:   "victim_not_in_queue",
	ReasonChannelBusy:        "cannot_change_mmr",
	ReasonConflict:           "conflict",
}

// MessageKey is the stable key a presentation layer renders for r.
func (r Reason) MessageKey() string {
	if key, ok := messageKeys[r]; ok {
		return key
	}
	return string(r)
}

// Channel is a matchmaking scope with its rating window.
type Channel struct {
	ID        int64          `json:"id"`
	DiscordID string         `json:"discordId,omitempty"`
	Name      string         `json:"name"`
	MinMMR    int            `json:"minMmr"`
	MaxMMR    int            `json:"maxMmr"`
	Active    bool           `json:"active"`
	ActiveOn  []time.Weekday `json:"activeOn,omitempty"`
}

// Channel min rating bounds accepted by SetChannelMinMMR.
const (
	MinChannelMMR = 0
	MaxChannelMMR = 9000
)

type Queue struct {
	ID            int64      `json:"id"`
	ChannelID     int64      `json:"channelId"`
	State         State      `json:"state"`
	MinMMR        int        `json:"minMmr"`
	MaxMMR        int        `json:"maxMmr"`
	BalanceID     *string    `json:"balanceId,omitempty"`
	GameServer    string     `json:"gameServer,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	GameStartTime *time.Time `json:"gameStartTime,omitempty"`
	GameEndTime   *time.Time `json:"gameEndTime,omitempty"`
}

type Member struct {
	PlayerID  int64     `json:"playerId"`
	Name      string    `json:"name"`
	LadderMMR int       `json:"ladderMmr"`
	JoinedAt  time.Time `json:"joinedAt"`
	LastSeen  time.Time `json:"lastSeen"`
	// AFK is set by the queue refresh for members idle past the limit.
	AFK bool `json:"afk,omitempty"`
}

// QueueView is the display summary of one active queue.
type QueueView struct {
	Queue    Queue           `json:"queue"`
	Channel  Channel         `json:"channel"`
	Members  []Member        `json:"members"`
	AvgMMR   int             `json:"avgMmr"`
	Balance  *balance.Answer `json:"balance,omitempty"`
	Underdog int             `json:"underdog"`
}

// MarkIdle flags the members of an OPEN queue last seen before cutoff and
// returns them. Full queues are never flagged.
func (v *QueueView) MarkIdle(cutoff time.Time) []Member {
	if v.Queue.State != StateOpen {
		return nil
	}
	var idle []Member
	for i := range v.Members {
		if v.Members[i].LastSeen.Before(cutoff) {
			v.Members[i].AFK = true
			idle = append(idle, v.Members[i])
		}
	}
	return idle
}

type JoinResult struct {
	Queue    *Queue `json:"queue,omitempty"`
	Joined   bool   `json:"joined"`
	Balanced bool   `json:"balanced"`
	Reason   Reason `json:"reason,omitempty"`
}

type LeaveResult struct {
	QueueID int64  `json:"queueId,omitempty"`
	Left    bool   `json:"left"`
	Reason  Reason `json:"reason,omitempty"`
}

type VoteResult struct {
	QueueID  int64   `json:"queueId,omitempty"`
	Votes    int     `json:"votes"`
	Required int     `json:"required"`
	Voters   []int64 `json:"voters,omitempty"`
	Kicked   bool    `json:"kicked"`
	Reason   Reason  `json:"reason,omitempty"`
}

// Config holds the tunables of a queue store.
type Config struct {
	VotekickThreshold int
	UnderdogDiff      int
}

var (
	ErrQueueNotFound   = errors.New("queue not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrInvalidState    = errors.New("invalid queue state")
	ErrConflict        = errors.New("concurrent queue modification")
)
