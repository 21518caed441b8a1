package notifier

import (
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
)

// Notifier defines a high-level interface for announcing ladder events.
// This decouples the rest of the application from the specific chat provider (e.g., Slack).
type Notifier interface {
	// For queues that just filled up
	SendQueueBalanced(view queue.QueueView, dryRun bool) error
	// For recorded results
	SendMatchRecorded(m *match.Match, dryRun bool) error
	SendQueues(views []queue.QueueView, dryRun bool) error

	// For formatting responses to API callers
	FormatQueuesResponse(views []queue.QueueView, verbose bool) (any, error)
	FormatLeaderboardResponse(standings []roster.Standing) (any, error)
}
