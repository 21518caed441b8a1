package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/notifier"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueues struct {
	queues    map[int64]*queue.Queue
	views     []queue.QueueView
	scheduled []time.Time
}

func (f *fakeQueues) GetQueue(_ context.Context, id int64) (*queue.Queue, error) {
	q, ok := f.queues[id]
	if !ok {
		return nil, queue.ErrQueueNotFound
	}
	return q, nil
}

func (f *fakeQueues) GetQueueView(_ context.Context, channelID int64) ([]queue.QueueView, error) {
	var out []queue.QueueView
	for _, v := range f.views {
		if v.Channel.ID == channelID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeQueues) ListActiveViews(context.Context) ([]queue.QueueView, error) {
	return f.views, nil
}

func (f *fakeQueues) ActivateScheduled(_ context.Context, now time.Time) ([]int64, error) {
	f.scheduled = append(f.scheduled, now)
	return nil, nil
}

type fakeMatches map[string]*match.Match

func (f fakeMatches) GetMatch(_ context.Context, id string) (*match.Match, error) {
	m, ok := f[id]
	if !ok {
		return nil, match.ErrMatchNotFound
	}
	return m, nil
}

func balanced(id int64, balanceID string) (*queue.Queue, queue.QueueView) {
	q := &queue.Queue{ID: id, ChannelID: 1, State: queue.StateBalanced, BalanceID: &balanceID}
	return q, queue.QueueView{
		Queue:    *q,
		Channel:  queue.Channel{ID: 1, Name: "main"},
		Balance:  &balance.Answer{ID: balanceID},
		Underdog: balance.NoUnderdog,
	}
}

func setup() (*Processor, *fakeQueues, fakeMatches, *notifier.Mock, *metrics.StoreMock) {
	queues := &fakeQueues{queues: map[int64]*queue.Queue{}}
	matches := fakeMatches{}
	notif := notifier.NewMock()
	counters := metrics.NewStoreMock()
	return New(queues, matches, notif, metrics.NewMock(), counters, 30*time.Minute), queues, matches, notif, counters
}

func TestHandleQueueBalanced(t *testing.T) {
	ctx := context.Background()

	t.Run("announces the attached balance", func(t *testing.T) {
		p, queues, _, notif, counters := setup()
		q, view := balanced(7, "b1")
		queues.queues[7] = q
		queues.views = []queue.QueueView{view}

		err := p.HandleQueueBalanced(ctx, pubsub.QueueBalancedEvent{QueueID: 7, ChannelID: 1, BalanceID: "b1"}, false)
		require.NoError(t, err)
		require.Len(t, notif.SendQueueBalancedCalls, 1)
		assert.Equal(t, int64(7), notif.SendQueueBalancedCalls[0].Queue.ID)
		assert.Equal(t, 1, counters.Value(metrics.KeyQueuesAnnounced))
	})

	t.Run("skips a queue that reopened", func(t *testing.T) {
		p, queues, _, notif, counters := setup()
		queues.queues[7] = &queue.Queue{ID: 7, State: queue.StateOpen}

		err := p.HandleQueueBalanced(ctx, pubsub.QueueBalancedEvent{QueueID: 7, ChannelID: 1, BalanceID: "b1"}, false)
		require.NoError(t, err)
		assert.Empty(t, notif.SendQueueBalancedCalls)
		assert.Zero(t, counters.Value(metrics.KeyQueuesAnnounced))
	})

	t.Run("skips a superseded balance", func(t *testing.T) {
		p, queues, _, notif, _ := setup()
		q, view := balanced(7, "b2")
		queues.queues[7] = q
		queues.views = []queue.QueueView{view}

		err := p.HandleQueueBalanced(ctx, pubsub.QueueBalancedEvent{QueueID: 7, ChannelID: 1, BalanceID: "b1"}, false)
		require.NoError(t, err)
		assert.Empty(t, notif.SendQueueBalancedCalls)
	})

	t.Run("dry run does not count", func(t *testing.T) {
		p, queues, _, notif, counters := setup()
		q, view := balanced(7, "b1")
		queues.queues[7] = q
		queues.views = []queue.QueueView{view}

		require.NoError(t, p.HandleQueueBalanced(ctx, pubsub.QueueBalancedEvent{QueueID: 7, ChannelID: 1, BalanceID: "b1"}, true))
		assert.Equal(t, []bool{true}, notif.DryRuns)
		assert.Zero(t, counters.Value(metrics.KeyQueuesAnnounced))
	})

	t.Run("unknown queue is an error", func(t *testing.T) {
		p, _, _, _, _ := setup()
		err := p.HandleQueueBalanced(ctx, pubsub.QueueBalancedEvent{QueueID: 9}, false)
		assert.ErrorIs(t, err, queue.ErrQueueNotFound)
	})
}

func TestHandleMatchRecorded(t *testing.T) {
	ctx := context.Background()
	p, _, matches, notif, counters := setup()
	matches["m1"] = &match.Match{ID: "m1", Winner: 1}

	require.NoError(t, p.HandleMatchRecorded(ctx, pubsub.MatchRecordedEvent{MatchID: "m1"}, false))
	require.Len(t, notif.SendMatchRecordedCalls, 1)
	assert.Equal(t, "m1", notif.SendMatchRecordedCalls[0].ID)
	assert.Equal(t, 1, counters.Value(metrics.KeyMatchesAnnounced))

	t.Run("notifier failure is returned", func(t *testing.T) {
		notif.SendMatchRecordedFunc = func(*match.Match, bool) error { return errors.New("slack down") }
		err := p.HandleMatchRecorded(ctx, pubsub.MatchRecordedEvent{MatchID: "m1"}, false)
		assert.Error(t, err)
		assert.Equal(t, 1, counters.Value(metrics.KeyMatchesAnnounced))
	})
}

func TestRefreshQueues(t *testing.T) {
	ctx := context.Background()
	p, queues, _, notif, counters := setup()
	_, view := balanced(3, "b")
	queues.views = []queue.QueueView{view}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	views, err := p.RefreshQueues(ctx, now, true, false)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, []time.Time{now}, queues.scheduled)
	assert.Len(t, notif.SendQueuesCalls, 1)
	assert.Equal(t, 1, counters.Value(metrics.KeyQueueRefreshes))
}

func TestRefreshQueuesFlagsIdleMembers(t *testing.T) {
	ctx := context.Background()
	p, queues, _, _, counters := setup()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	open := queue.QueueView{
		Queue:   queue.Queue{ID: 1, ChannelID: 1, State: queue.StateOpen},
		Channel: queue.Channel{ID: 1, Name: "main"},
		Members: []queue.Member{
			{PlayerID: 1, Name: "idle", LastSeen: now.Add(-time.Hour)},
			{PlayerID: 2, Name: "active", LastSeen: now.Add(-time.Minute)},
		},
	}
	_, full := balanced(2, "b")
	full.Members = []queue.Member{{PlayerID: 3, Name: "playing", LastSeen: now.Add(-time.Hour)}}
	queues.views = []queue.QueueView{open, full}

	views, err := p.RefreshQueues(ctx, now, false, false)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].Members[0].AFK)
	assert.False(t, views[0].Members[1].AFK)
	assert.False(t, views[1].Members[0].AFK, "members of full queues are never flagged")
	assert.Len(t, views[0].Members, 2, "flagging never removes anyone")
	assert.Equal(t, 1, counters.Value(metrics.KeyAFKFlagged))

	_, err = p.RefreshQueues(ctx, now, false, true)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Value(metrics.KeyAFKFlagged), "dry runs do not count")
}
