package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/samber/lo"
)

// New creates a new Processor.
func New(queues QueueReader, matches MatchReader, notifier Notifier, metrics metrics.Metrics, counters metrics.MetricsStore, afkAfter time.Duration) *Processor {
	return &Processor{
		queues:   queues,
		matches:  matches,
		notifier: notifier,
		metrics:  metrics,
		counters: counters,
		afkAfter: afkAfter,
	}
}

// HandleQueueBalanced announces a freshly balanced queue. Events for queues
// that reopened or closed in the meantime are dropped.
func (p *Processor) HandleQueueBalanced(ctx context.Context, event pubsub.QueueBalancedEvent, dryRun bool) error {
	q, err := p.queues.GetQueue(ctx, event.QueueID)
	if err != nil {
		return fmt.Errorf("failed to load balanced queue: %w", err)
	}
	if !q.State.Full() || q.BalanceID == nil || *q.BalanceID != event.BalanceID {
		log.Info("Balance is stale, skipping announcement", "queueID", q.ID, "state", q.State, "balanceID", event.BalanceID)
		return nil
	}

	views, err := p.queues.GetQueueView(ctx, event.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to load queue view: %w", err)
	}
	view, ok := lo.Find(views, func(v queue.QueueView) bool { return v.Queue.ID == q.ID })
	if !ok {
		log.Warn("Balanced queue missing from channel view", "queueID", q.ID, "channelID", event.ChannelID)
		return nil
	}

	if err := p.notifier.SendQueueBalanced(view, dryRun); err != nil {
		return fmt.Errorf("failed to announce queue: %w", err)
	}
	if !dryRun {
		p.counters.Increment(metrics.KeyQueuesAnnounced)
	}
	log.Info("Announced balanced queue", "queueID", q.ID, "dryRun", dryRun)
	return nil
}

// HandleMatchRecorded announces a recorded match with its rating changes.
func (p *Processor) HandleMatchRecorded(ctx context.Context, event pubsub.MatchRecordedEvent, dryRun bool) error {
	m, err := p.matches.GetMatch(ctx, event.MatchID)
	if err != nil {
		return fmt.Errorf("failed to load recorded match: %w", err)
	}
	if err := p.notifier.SendMatchRecorded(m, dryRun); err != nil {
		return fmt.Errorf("failed to announce match: %w", err)
	}
	if !dryRun {
		p.counters.Increment(metrics.KeyMatchesAnnounced)
	}
	log.Info("Announced recorded match", "matchID", m.ID, "dryRun", dryRun)
	return nil
}

// RefreshQueues applies channel schedules and re-derives the display state
// of every active queue, flagging idle members of open queues as AFK. It
// never changes membership.
func (p *Processor) RefreshQueues(ctx context.Context, now time.Time, post, dryRun bool) ([]queue.QueueView, error) {
	log.Info("Refreshing queues...")
	start := time.Now()

	changed, err := p.queues.ActivateScheduled(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to apply channel schedules: %w", err)
	}
	if len(changed) > 0 {
		log.Info("Channel schedules applied", "channels", changed)
	}

	views, err := p.queues.ListActiveViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	afk := 0
	if p.afkAfter > 0 {
		cutoff := now.Add(-p.afkAfter)
		for i := range views {
			for _, m := range views[i].MarkIdle(cutoff) {
				log.Info("Queued player is AFK", "player", m.PlayerID, "name", m.Name, "queueID", views[i].Queue.ID, "lastSeen", m.LastSeen)
				afk++
			}
		}
	}
	if post {
		if err := p.notifier.SendQueues(views, dryRun); err != nil {
			log.Error("Failed to post queue summary", "error", err)
		}
	}
	if !dryRun {
		p.counters.Increment(metrics.KeyQueueRefreshes)
		for range afk {
			p.counters.Increment(metrics.KeyAFKFlagged)
		}
	}
	log.Info("Queue refresh finished", "queues", len(views), "afk", afk, "duration", time.Since(start))
	return views, nil
}
