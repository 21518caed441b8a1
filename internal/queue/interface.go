package queue

import (
	"context"
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/balance"
)

// QueueStore owns queue membership and the OPEN -> BALANCED -> IN_GAME ->
// CLOSED lifecycle.
//
// Rejections are reported through the Reason of the result; a non-nil error
// means storage failed and nothing changed.
type QueueStore interface {
	Join(ctx context.Context, playerID, channelID int64) (JoinResult, error)
	Leave(ctx context.Context, playerID int64) (LeaveResult, error)
	// ForceAdd is Join without the ban, vouch and rating checks.
	ForceAdd(ctx context.Context, playerID, channelID int64) (JoinResult, error)
	// ForceRemove takes a player out of their active queue in any state. A
	// full queue loses its balance and reopens.
	ForceRemove(ctx context.Context, playerID int64) (LeaveResult, error)
	VoteKick(ctx context.Context, voterID, targetID int64) (VoteResult, error)
	// Touch marks a queued player as active at the given time. Idle members
	// are only reported by the queue refresh, never removed.
	Touch(ctx context.Context, playerID int64, at time.Time) (bool, error)
	StartGame(ctx context.Context, queueID int64, server string) (*Queue, error)
	Close(ctx context.Context, queueID int64) (*Queue, error)

	GetQueue(ctx context.Context, queueID int64) (*Queue, error)
	// Candidates lists the ranked teams of the queue's latest balancing.
	Candidates(ctx context.Context, queueID int64) ([]balance.Answer, error)
	GetQueueView(ctx context.Context, channelID int64) ([]QueueView, error)
	ListActiveViews(ctx context.Context) ([]QueueView, error)

	CreateChannel(ctx context.Context, channel Channel) (*Channel, error)
	GetChannel(ctx context.Context, channelID int64) (*Channel, error)
	GetChannelByDiscordID(ctx context.Context, discordID string) (*Channel, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	SetChannelMinMMR(ctx context.Context, channelID int64, minMMR int) (*Channel, Reason, error)
	SetChannelActive(ctx context.Context, channelID int64, active bool) error
	// ActivateScheduled flips channels that have a weekday schedule to match
	// now. It never touches membership.
	ActivateScheduled(ctx context.Context, now time.Time) (changed []int64, err error)
}
