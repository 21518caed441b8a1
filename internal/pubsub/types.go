package pubsub

import "cloud.google.com/go/pubsub"

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub.
type EventType string

const (
	EventQueueBalanced  EventType = "queue-balanced"
	EventMatchRecorded  EventType = "match-recorded"
	EventRatingAdjusted EventType = "rating-adjusted"
)

// QueueBalancedEvent is published once a queue's balance has been committed.
type QueueBalancedEvent struct {
	QueueID   int64  `msgpack:"queue_id" json:"queueId"`
	ChannelID int64  `msgpack:"channel_id" json:"channelId"`
	BalanceID string `msgpack:"balance_id" json:"balanceId"`
}

// MatchRecordedEvent is published once a match and its rating changes are committed.
type MatchRecordedEvent struct {
	MatchID string `msgpack:"match_id" json:"matchId"`
	QueueID int64  `msgpack:"queue_id" json:"queueId,omitempty"`
	Winner  int    `msgpack:"winner" json:"winner"`
	Season  int    `msgpack:"season" json:"season"`
}

// RatingAdjustedEvent is published for administrative rating changes.
type RatingAdjustedEvent struct {
	PlayerID      int64  `msgpack:"player_id" json:"playerId"`
	ScoreChangeID string `msgpack:"score_change_id" json:"scoreChangeId"`
	Delta         int    `msgpack:"delta" json:"delta"`
	Reason        string `msgpack:"reason" json:"reason"`
}
