package queue_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/database"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	queues  queue.QueueStore
	players roster.PlayerRoster
	db      *sql.DB
	pubsub  *pubsub.MockPubSubClient
	metrics *metrics.Mock
	channel *queue.Channel
}

func setup(t *testing.T, cfg queue.Config) (*fixture, func()) {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)

	f := &fixture{
		players: roster.NewStore(db, 1, nil),
		db:      db,
		pubsub:  pubsub.NewMock(""),
		metrics: metrics.NewMock(),
	}
	f.queues = queue.NewStore(db, balance.New(balance.Options{TopK: 3}), nil, f.pubsub, f.metrics, cfg)
	f.channel, err = f.queues.CreateChannel(context.Background(), queue.Channel{Name: "main", Active: true})
	require.NoError(t, err)
	return f, teardown
}

// vouched registers and vouches n players named prefix0..prefixN.
func (f *fixture) vouched(t *testing.T, prefix string, n, mmr int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, n)
	for i := range n {
		p, err := f.players.Register(ctx, roster.RegisterParams{
			Name:    fmt.Sprintf("%s%d", prefix, i),
			DotaMMR: mmr + i*10,
			DotaID:  fmt.Sprintf("%s-%d", prefix, i),
		})
		require.NoError(t, err)
		require.NoError(t, f.players.Vouch(ctx, p.ID))
		ids[i] = p.ID
	}
	return ids
}

func (f *fixture) fill(t *testing.T, channelID int64, ids []int64) queue.JoinResult {
	t.Helper()
	var last queue.JoinResult
	for _, id := range ids {
		res, err := f.queues.Join(context.Background(), id, channelID)
		require.NoError(t, err)
		require.True(t, res.Joined, "player %d: %s", id, res.Reason)
		last = res
	}
	return last
}

func TestJoinEligibility(t *testing.T) {
	f, teardown := setup(t, queue.Config{})
	defer teardown()
	ctx := context.Background()

	high, err := f.queues.CreateChannel(ctx, queue.Channel{Name: "high", MinMMR: 3000, MaxMMR: 6000, Active: true})
	require.NoError(t, err)
	off, err := f.queues.CreateChannel(ctx, queue.Channel{Name: "off", Active: false})
	require.NoError(t, err)

	low := f.vouched(t, "low", 1, 2500)[0]
	top := f.vouched(t, "top", 1, 7000)[0]
	unvouched, err := f.players.Register(ctx, roster.RegisterParams{Name: "fresh", DotaMMR: 4000, DotaID: "fresh"})
	require.NoError(t, err)
	banned := f.vouched(t, "banned", 1, 4000)[0]
	require.NoError(t, f.players.Ban(ctx, banned, roster.BanPlaying))

	tests := []struct {
		name    string
		player  int64
		channel int64
		want    queue.Reason
	}{
		{"rating below window", low, high.ID, queue.ReasonMmrTooLow},
		{"rating above window", top, high.ID, queue.ReasonMmrTooHigh},
		{"not vouched", unvouched.ID, f.channel.ID, queue.ReasonNotVouched},
		{"banned", banned, f.channel.ID, queue.ReasonBanned},
		{"inactive channel", low, off.ID, queue.ReasonChannelInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.queues.Join(ctx, tt.player, tt.channel)
			require.NoError(t, err)
			assert.False(t, res.Joined)
			assert.Equal(t, tt.want, res.Reason)
		})
	}

	views, err := f.queues.ListActiveViews(ctx)
	require.NoError(t, err)
	assert.Empty(t, views, "rejected joins must not create queues")
	assert.Equal(t, 1, f.metrics.Rejections(string(queue.ReasonMmrTooLow)))

	t.Run("unknown channel is an error", func(t *testing.T) {
		_, err := f.queues.Join(ctx, low, 999)
		assert.ErrorIs(t, err, queue.ErrChannelNotFound)
	})

	t.Run("force add skips eligibility", func(t *testing.T) {
		res, err := f.queues.ForceAdd(ctx, low, high.ID)
		require.NoError(t, err)
		assert.True(t, res.Joined)
	})
}

func TestJoinBalancesTenthPlayer(t *testing.T) {
	f, teardown := setup(t, queue.Config{})
	defer teardown()
	ctx := context.Background()

	ids := f.vouched(t, "p", 11, 3000)

	for i, id := range ids[:9] {
		res, err := f.queues.Join(ctx, id, f.channel.ID)
		require.NoError(t, err)
		require.True(t, res.Joined)
		assert.Equal(t, queue.StateOpen, res.Queue.State, "join %d", i)
		assert.False(t, res.Balanced)
	}
	assert.Empty(t, f.pubsub.Topics(), "nothing is published before the queue fills")

	res, err := f.queues.Join(ctx, ids[9], f.channel.ID)
	require.NoError(t, err)
	require.True(t, res.Balanced)
	assert.Equal(t, queue.StateBalanced, res.Queue.State)
	require.NotNil(t, res.Queue.BalanceID)

	assert.Equal(t, []pubsub.EventType{pubsub.EventQueueBalanced}, f.pubsub.Topics())
	event, ok := f.pubsub.SendMessageCalls[0].Data.(pubsub.QueueBalancedEvent)
	require.True(t, ok)
	assert.Equal(t, res.Queue.ID, event.QueueID)
	assert.Equal(t, *res.Queue.BalanceID, event.BalanceID)
	assert.Equal(t, 1, f.metrics.QueuesBalanced())
	assert.Len(t, f.metrics.BalanceDurations(), 1)

	candidates, err := queue.Candidates(ctx, f.db, res.Queue.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, *res.Queue.BalanceID, candidates[0].ID)
	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i-1].Cost, candidates[i].Cost)
	}

	views, err := f.queues.GetQueueView(ctx, f.channel.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Balance)
	assert.Len(t, views[0].Members, 10)
	assert.Equal(t, ids[0], views[0].Members[0].PlayerID, "members are listed in join order")
	assert.Equal(t, balance.NoUnderdog, views[0].Underdog)

	t.Run("eleventh player opens a new queue", func(t *testing.T) {
		res, err := f.queues.Join(ctx, ids[10], f.channel.ID)
		require.NoError(t, err)
		require.True(t, res.Joined)
		assert.Equal(t, queue.StateOpen, res.Queue.State)
		assert.NotEqual(t, views[0].Queue.ID, res.Queue.ID)
	})

	t.Run("already in this queue", func(t *testing.T) {
		res, err := f.queues.Join(ctx, ids[10], f.channel.ID)
		require.NoError(t, err)
		assert.False(t, res.Joined)
		assert.Equal(t, queue.ReasonAlreadyInQueue, res.Reason)
	})
}

func TestConcurrentJoinsNeverOverfill(t *testing.T) {
	f, teardown := setup(t, queue.Config{})
	defer teardown()
	ctx := context.Background()

	ids := f.vouched(t, "c", 15, 3000)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			res, err := f.queues.Join(ctx, id, f.channel.ID)
			assert.NoError(t, err)
			assert.True(t, res.Joined)
		}(id)
	}
	wg.Wait()

	views, err := f.queues.ListActiveViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Len(t, views[0].Members, 10)
	assert.Equal(t, queue.StateBalanced, views[0].Queue.State)
	assert.Len(t, views[1].Members, 5)
	assert.Equal(t, queue.StateOpen, views[1].Queue.State)
	assert.Equal(t, 1, f.metrics.QueuesBalanced())
}

func TestLeave(t *testing.T) {
	f, teardown := setup(t, queue.Config{})
	defer teardown()
	ctx := context.Background()

	ids := f.vouched(t, "l", 10, 3000)

	res, err := f.queues.Leave(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, queue.ReasonNotInQueue, res.Reason)

	f.fill(t, f.channel.ID, ids[:3])
	res, err = f.queues.Leave(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, res.Left)

	f.fill(t, f.channel.ID, append([]int64{ids[0]}, ids[3:]...))
	before, err := f.queues.GetQueue(ctx, res.QueueID)
	require.NoError(t, err)
	require.Equal(t, queue.StateBalanced, before.State)

	t.Run("leaving a balanced queue is refused", func(t *testing.T) {
		res, err := f.queues.Leave(ctx, ids[1])
		require.NoError(t, err)
		assert.False(t, res.Left)
		assert.Equal(t, queue.ReasonInGame, res.Reason)
		assert.Equal(t, before.ID, res.QueueID)

		after, err := f.queues.GetQueue(ctx, before.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("force remove reopens the queue", func(t *testing.T) {
		res, err := f.queues.ForceRemove(ctx, ids[1])
		require.NoError(t, err)
		assert.True(t, res.Left)

		after, err := f.queues.GetQueue(ctx, before.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StateOpen, after.State)
		assert.Nil(t, after.BalanceID)
	})
}

func TestTouchAndIdleMembers(t *testing.T) {
	f, teardown := setup(t, queue.Config{})
	defer teardown()
	ctx := context.Background()

	ids := f.vouched(t, "a", 2, 3000)
	f.fill(t, f.channel.ID, ids)

	later := time.Now().Add(time.Hour)
	queued, err := f.queues.Touch(ctx, ids[1], later)
	require.NoError(t, err)
	assert.True(t, queued)

	views, err := f.queues.GetQueueView(ctx, f.channel.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	idle := views[0].MarkIdle(later.Add(-time.Minute))
	require.Len(t, idle, 1)
	assert.Equal(t, ids[0], idle[0].PlayerID)
	assert.True(t, views[0].Members[0].AFK)
	assert.False(t, views[0].Members[1].AFK)

	t.Run("older activity never moves last seen back", func(t *testing.T) {
		_, err := f.queues.Touch(ctx, ids[1], later.Add(-2*time.Hour))
		require.NoError(t, err)
		views, err := f.queues.GetQueueView(ctx, f.channel.ID)
		require.NoError(t, err)
		assert.Equal(t, later.Unix(), views[0].Members[1].LastSeen.Unix())
	})

	t.Run("player outside any queue", func(t *testing.T) {
		other := f.vouched(t, "b", 1, 3000)
		queued, err := f.queues.Touch(ctx, other[0], later)
		require.NoError(t, err)
		assert.False(t, queued)
	})
}

func TestJoinMovesPlayerBetweenChannels(t *testing.T) {
	f, teardown := setup(t, queue.Config{})
	defer teardown()
	ctx := context.Background()

	other, err := f.queues.CreateChannel(ctx, queue.Channel{Name: "other", Active: true})
	require.NoError(t, err)
	ids := f.vouched(t, "m", 11, 3000)

	first := f.fill(t, f.channel.ID, ids[:1])
	second := f.fill(t, other.ID, ids[:1])
	assert.NotEqual(t, first.Queue.ID, second.Queue.ID)

	views, err := f.queues.ListActiveViews(ctx)
	require.NoError(t, err)
	for _, v := range views {
		if v.Channel.ID == f.channel.ID {
			assert.Empty(t, v.Members, "player must have left the first channel")
		}
	}

	t.Run("member of a full queue cannot join elsewhere", func(t *testing.T) {
		f.fill(t, f.channel.ID, ids[1:])
		res, err := f.queues.Join(ctx, ids[1], other.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.ReasonAlreadyInFullQueue, res.Reason)
	})
}

func TestVoteKick(t *testing.T) {
	f, teardown := setup(t, queue.Config{VotekickThreshold: 3})
	defer teardown()
	ctx := context.Background()

	ids := f.vouched(t, "v", 11, 3000)
	f.fill(t, f.channel.ID, ids[:10])
	target := ids[9]

	t.Run("voter outside a full queue", func(t *testing.T) {
		res, err := f.queues.VoteKick(ctx, ids[10], target)
		require.NoError(t, err)
		assert.Equal(t, queue.ReasonNotInFullQueue, res.Reason)
	})

	t.Run("target outside the voter's queue", func(t *testing.T) {
		res, err := f.queues.VoteKick(ctx, ids[0], ids[10])
		require.NoError(t, err)
		assert.Equal(t, queue.ReasonTargetNotInQueue, res.Reason)
	})

	res, err := f.queues.VoteKick(ctx, ids[0], target)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 3, res.Required)

	res, err = f.queues.VoteKick(ctx, ids[0], target)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes, "repeated votes count once")

	res, err = f.queues.VoteKick(ctx, ids[1], target)
	require.NoError(t, err)
	assert.False(t, res.Kicked)

	res, err = f.queues.VoteKick(ctx, ids[2], target)
	require.NoError(t, err)
	assert.True(t, res.Kicked)
	assert.Equal(t, []int64{ids[0], ids[1], ids[2]}, res.Voters)
	assert.Equal(t, 1, f.metrics.VoteKicks())

	q, err := f.queues.GetQueue(ctx, res.QueueID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateOpen, q.State)
	assert.Nil(t, q.BalanceID)

	views, err := f.queues.GetQueueView(ctx, f.channel.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Len(t, views[0].Members, 9)

	t.Run("repeat vote after the kick has no effect", func(t *testing.T) {
		for _, voter := range []int64{ids[3], ids[0]} {
			res, err := f.queues.VoteKick(ctx, voter, target)
			require.NoError(t, err)
			assert.Equal(t, queue.ReasonNotInFullQueue, res.Reason)
			assert.False(t, res.Kicked)
		}
		assert.Equal(t, 1, f.metrics.VoteKicks())

		after, err := f.queues.GetQueue(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, q, after)
		views, err := f.queues.GetQueueView(ctx, f.channel.ID)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Len(t, views[0].Members, 9)
	})
}

func TestStartAndClose(t *testing.T) {
	f, teardown := setup(t, queue.Config{})
	defer teardown()
	ctx := context.Background()

	ids := f.vouched(t, "g", 10, 3000)
	f.fill(t, f.channel.ID, ids[:9])
	open, err := f.queues.GetQueueView(ctx, f.channel.ID)
	require.NoError(t, err)
	queueID := open[0].Queue.ID

	_, err = f.queues.StartGame(ctx, queueID, "eu-west")
	assert.ErrorIs(t, err, queue.ErrInvalidState)

	f.fill(t, f.channel.ID, ids[9:])
	q, err := f.queues.StartGame(ctx, queueID, "eu-west")
	require.NoError(t, err)
	assert.Equal(t, queue.StateInGame, q.State)
	assert.Equal(t, "eu-west", q.GameServer)
	require.NotNil(t, q.GameStartTime)

	q, err = f.queues.Close(ctx, queueID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateClosed, q.State)
	require.NotNil(t, q.GameEndTime)

	again, err := f.queues.Close(ctx, queueID)
	require.NoError(t, err)
	assert.Equal(t, q, again, "closing twice is a no-op")

	_, err = f.queues.Close(ctx, 404)
	assert.ErrorIs(t, err, queue.ErrQueueNotFound)

	t.Run("closed queue releases its members", func(t *testing.T) {
		res, err := f.queues.Join(ctx, ids[0], f.channel.ID)
		require.NoError(t, err)
		assert.True(t, res.Joined)
	})
}

func TestChannels(t *testing.T) {
	f, teardown := setup(t, queue.Config{})
	defer teardown()
	ctx := context.Background()

	c, reason, err := f.queues.SetChannelMinMMR(ctx, f.channel.ID, 12000)
	require.NoError(t, err)
	assert.Equal(t, queue.ReasonNone, reason)
	assert.Equal(t, queue.MaxChannelMMR, c.MinMMR)

	c, _, err = f.queues.SetChannelMinMMR(ctx, f.channel.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, queue.MinChannelMMR, c.MinMMR)

	f.fill(t, f.channel.ID, f.vouched(t, "ch", 1, 3000))
	_, reason, err = f.queues.SetChannelMinMMR(ctx, f.channel.ID, 2000)
	require.NoError(t, err)
	assert.Equal(t, queue.ReasonChannelBusy, reason)

	_, err = f.queues.CreateChannel(ctx, queue.Channel{Name: "MAIN"})
	assert.ErrorIs(t, err, queue.ErrChannelExists)

	t.Run("weekday schedule", func(t *testing.T) {
		weekend, err := f.queues.CreateChannel(ctx, queue.Channel{
			Name:      "weekend",
			DiscordID: "555",
			Active:    false,
			ActiveOn:  []time.Weekday{time.Saturday, time.Sunday},
		})
		require.NoError(t, err)

		saturday := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		changed, err := f.queues.ActivateScheduled(ctx, saturday)
		require.NoError(t, err)
		assert.Equal(t, []int64{weekend.ID}, changed)

		byDiscord, err := f.queues.GetChannelByDiscordID(ctx, "555")
		require.NoError(t, err)
		assert.True(t, byDiscord.Active)
		assert.Equal(t, weekend.ActiveOn, byDiscord.ActiveOn)

		changed, err = f.queues.ActivateScheduled(ctx, saturday.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.Equal(t, []int64{weekend.ID}, changed)

		main, err := f.queues.GetChannel(ctx, f.channel.ID)
		require.NoError(t, err)
		assert.True(t, main.Active, "unscheduled channels are untouched")
	})

	channels, err := f.queues.ListChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, channels, 2)
}
