package processor

import (
	"context"
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/notifier"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
)

// QueueReader defines the queue operations required by the processor.
type QueueReader interface {
	GetQueue(ctx context.Context, queueID int64) (*queue.Queue, error)
	GetQueueView(ctx context.Context, channelID int64) ([]queue.QueueView, error)
	ListActiveViews(ctx context.Context) ([]queue.QueueView, error)
	ActivateScheduled(ctx context.Context, now time.Time) ([]int64, error)
}

// MatchReader defines the match operations required by the processor.
type MatchReader interface {
	GetMatch(ctx context.Context, id string) (*match.Match, error)
}

// Notifier defines the notification operations required by the processor.
// This is an alias for the main notifier interface for decoupling.
type Notifier interface {
	notifier.Notifier
}
