package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/auth"
	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/config"
	"github.com/mauv0809/inhouse-ladder/internal/database"
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/notifier"
	slacknotifier "github.com/mauv0809/inhouse-ladder/internal/notifier/slack"
	"github.com/mauv0809/inhouse-ladder/internal/processor"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const testSecret = "test-admin-secret"

type testEnv struct {
	server   *Server
	pubsub   *pubsub.MockPubSubClient
	counters *metrics.StoreMock
	token    string
}

// setupTestServer initializes a new server with a test database and mock clients.
func setupTestServer(t *testing.T, n notifier.Notifier) (*testEnv, func()) {
	t.Helper()

	db, dbTeardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)

	cfg := config.Config{
		Admin:  config.AdminConfig{JWTSecret: testSecret},
		Ladder: config.LadderConfig{Season: 1},
	}
	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	metricsHandler := metrics.NewMetricsHandler(reg)
	ps := pubsub.NewMock("TEST")
	counters := metrics.NewStoreMock()

	engine := balance.New(balance.Options{})
	players := roster.NewStore(db, cfg.Ladder.Season, nil)
	queues := queue.NewStore(db, engine, nil, ps, metricsSvc, queue.Config{VotekickThreshold: 3})
	matches := match.NewStore(db, cfg.Ladder.Season, match.FlatDelta(25), engine, ps, metricsSvc)
	proc := processor.New(queues, matches, n, metricsSvc, counters, 30*time.Minute)

	server := NewServer(players, queues, matches, metricsSvc, counters, metricsHandler, cfg, n, proc, ps, nil)

	token, err := auth.IssueAdminToken(testSecret, "tester", time.Hour)
	require.NoError(t, err)

	teardown := func() {
		if dbTeardown != nil {
			dbTeardown()
		}
	}
	return &testEnv{server: server, pubsub: ps, counters: counters, token: token}, teardown
}

func (e *testEnv) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.Router.ServeHTTP(rr, req)
	return rr
}

func reason(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Reason
}

// seed registers and vouches n players and returns their ids.
func (e *testEnv) seed(t *testing.T, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := range n {
		p, err := e.server.Players.Register(ctx, roster.RegisterParams{
			Name:    fmt.Sprintf("player%02d", i),
			DotaMMR: 3000 + i*100,
			DotaID:  fmt.Sprintf("dota%d", i),
		})
		require.NoError(t, err)
		require.NoError(t, e.server.Players.Vouch(ctx, p.ID))
		ids = append(ids, p.ID)
	}
	return ids
}

func (e *testEnv) channel(t *testing.T) queue.Channel {
	t.Helper()
	rr := e.do(t, "POST", "/admin/channels", queue.Channel{Name: "main", Active: true}, e.token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var c queue.Channel
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	return c
}

func pushBody(t *testing.T, event any) map[string]any {
	t.Helper()
	data, err := msgpack.Marshal(event)
	require.NoError(t, err)
	return map[string]any{
		"subscription": "projects/test/subscriptions/ladder",
		"message":      map[string]any{"data": base64.StdEncoding.EncodeToString(data), "messageId": "1"},
	}
}

func TestHealthCheckHandler(t *testing.T) {
	env, teardown := setupTestServer(t, notifier.NewMock())
	defer teardown()

	rr := env.do(t, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")
	assert.Equal(t, "OK!", rr.Body.String(), "handler returned unexpected body")
}

func TestPlayerHandlers(t *testing.T) {
	env, teardown := setupTestServer(t, notifier.NewMock())
	defer teardown()

	params := roster.RegisterParams{Name: "Alice", DotaMMR: 3500, DotaID: "123"}
	rr := env.do(t, "POST", "/players", params, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var p roster.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "Alice", p.Name)

	rr = env.do(t, "POST", "/players", params, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_registered", reason(t, rr))

	rr = env.do(t, "GET", "/players/resolve?q=ali", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resolved roster.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resolved))
	assert.Equal(t, p.ID, resolved.ID)

	rr = env.do(t, "GET", "/players/999", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "player_not_found", reason(t, rr))

	rr = env.do(t, "GET", "/players/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	t.Run("roles", func(t *testing.T) {
		rr := env.do(t, "POST", fmt.Sprintf("/players/%d/roles", p.ID), map[string]any{"role": "mid", "value": 1}, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var updated roster.Player
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		assert.Equal(t, 1, updated.Roles.Mid)

		rr = env.do(t, "POST", fmt.Sprintf("/players/%d/roles", p.ID), map[string]any{"role": "mid", "value": 9}, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "invalid_role", reason(t, rr))
	})

	t.Run("admin rename and dota id", func(t *testing.T) {
		other, err := env.server.Players.Register(context.Background(), roster.RegisterParams{Name: "Bob", DotaMMR: 3000, DotaID: "456"})
		require.NoError(t, err)
		target := fmt.Sprintf("/admin/players/%d", p.ID)

		rr := env.do(t, "POST", target+"/name", map[string]any{"name": "Alicia"}, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = env.do(t, "POST", target+"/name", map[string]any{"name": "Alicia"}, env.token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var updated roster.Player
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		assert.Equal(t, "Alicia", updated.Name)

		rr = env.do(t, "POST", target+"/name", map[string]any{"name": "BOB"}, env.token)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "name_taken", reason(t, rr))

		rr = env.do(t, "POST", target+"/dota-id", map[string]any{"dotaId": "789"}, env.token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		assert.Equal(t, "789", updated.DotaID)

		rr = env.do(t, "POST", target+"/dota-id", map[string]any{"dotaId": other.DotaID}, env.token)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "already_registered", reason(t, rr))

		rr = env.do(t, "POST", target+"/dota-id", map[string]any{"dotaId": " "}, env.token)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "missing_dota_id", reason(t, rr))

		rr = env.do(t, "POST", "/admin/players/999/name", map[string]any{"name": "Ghost"}, env.token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("leaderboard limit is validated", func(t *testing.T) {
		rr := env.do(t, "GET", "/leaderboard?limit=100", nil, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "invalid_limit", reason(t, rr))
	})
}

func TestAdminAuth(t *testing.T) {
	env, teardown := setupTestServer(t, notifier.NewMock())
	defer teardown()

	rr := env.do(t, "POST", "/admin/queues/1/close", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	forged, err := auth.IssueAdminToken("wrong-secret", "mallory", time.Hour)
	require.NoError(t, err)
	rr = env.do(t, "POST", "/admin/queues/1/close", nil, forged)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, "POST", "/admin/queues/1/close", nil, env.token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "queue_not_found", reason(t, rr))
}

func TestQueueFlow(t *testing.T) {
	notif := notifier.NewMock()
	env, teardown := setupTestServer(t, notif)
	defer teardown()

	ids := env.seed(t, 10)
	c := env.channel(t)

	var last queue.JoinResult
	for _, id := range ids {
		rr := env.do(t, "POST", "/queues/join", map[string]any{"playerId": id, "channelId": c.ID}, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &last))
	}
	require.True(t, last.Balanced)
	queueID := last.Queue.ID

	rr := env.do(t, "POST", "/queues/join", map[string]any{"player": "player00", "channelId": c.ID}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_in_this_queue", reason(t, rr))

	rr = env.do(t, "POST", "/queues/leave", map[string]any{"playerId": ids[0]}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, "GET", fmt.Sprintf("/queues?channel=%d", c.ID), nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var views []queue.QueueView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, queue.StateBalanced, views[0].Queue.State)
	require.NotNil(t, views[0].Balance)

	t.Run("candidates", func(t *testing.T) {
		rr := env.do(t, "GET", fmt.Sprintf("/queues/%d/candidates", queueID), nil, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var answers []balance.Answer
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &answers))
		require.NotEmpty(t, answers)
		assert.Equal(t, views[0].Balance.ID, answers[0].ID)
		assert.Equal(t, 0, answers[0].Rank)

		rr = env.do(t, "GET", "/queues/404/candidates", nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "queue_not_found", reason(t, rr))
	})

	t.Run("seen", func(t *testing.T) {
		rr := env.do(t, "POST", fmt.Sprintf("/players/%d/seen", ids[0]), nil, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.JSONEq(t, `{"queued":true}`, rr.Body.String())
	})

	t.Run("balanced event is announced", func(t *testing.T) {
		event := pubsub.QueueBalancedEvent{QueueID: queueID, ChannelID: c.ID, BalanceID: views[0].Balance.ID}
		rr := env.do(t, "POST", "/events/queue-balanced", pushBody(t, event), "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		require.Len(t, notif.SendQueueBalancedCalls, 1)
		assert.Equal(t, queueID, notif.SendQueueBalancedCalls[0].Queue.ID)
		assert.Equal(t, 1, env.counters.Value(metrics.KeyQueuesAnnounced))
	})

	rr = env.do(t, "POST", "/admin/matches/from-queue", map[string]any{"queueId": queueID, "winner": 2}, env.token)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "wrong_winner", reason(t, rr))

	rr = env.do(t, "POST", "/admin/matches/from-queue", map[string]any{"queueId": queueID, "winner": 0}, env.token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var m match.Match
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Equal(t, 0, m.Winner)

	rr = env.do(t, "POST", "/admin/matches/from-queue", map[string]any{"queueId": queueID, "winner": 0}, env.token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "queue_closed", reason(t, rr))

	rr = env.do(t, "GET", fmt.Sprintf("/players/%d/streak", m.Teams[0][0].PlayerID), nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var streaks match.Streaks
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &streaks))
	assert.Equal(t, 1, streaks.Current)

	rr = env.do(t, "POST", "/reports", match.ReportParams{FromPlayerID: m.Teams[0][0].PlayerID, ToPlayerID: m.Teams[1][0].PlayerID, Tip: true}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, "POST", "/reports", match.ReportParams{FromPlayerID: m.Teams[0][0].PlayerID, ToPlayerID: m.Teams[1][0].PlayerID}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "duplicate_report", reason(t, rr))

	t.Run("received tips and reports", func(t *testing.T) {
		target := fmt.Sprintf("/admin/players/%d/reports", m.Teams[1][0].PlayerID)
		rr := env.do(t, "GET", target+"?tips=true", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = env.do(t, "GET", target+"?tips=true", nil, env.token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var tips []match.Report
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tips))
		require.Len(t, tips, 1)
		assert.Equal(t, m.Teams[0][0].PlayerID, tips[0].FromPlayerID)
		assert.Equal(t, 1, tips[0].Value)

		rr = env.do(t, "GET", target, nil, env.token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.JSONEq(t, "[]", rr.Body.String())
	})
}

func TestJoinRejections(t *testing.T) {
	env, teardown := setupTestServer(t, notifier.NewMock())
	defer teardown()
	ctx := context.Background()

	c := env.channel(t)
	p, err := env.server.Players.Register(ctx, roster.RegisterParams{Name: "newbie", DotaMMR: 2000, DotaID: "n1"})
	require.NoError(t, err)

	rr := env.do(t, "POST", "/queues/join", map[string]any{"playerId": p.ID, "channelId": c.ID}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "not_vouched", reason(t, rr))

	rr = env.do(t, "POST", "/admin/queues/add", map[string]any{"playerId": p.ID, "channelId": c.ID}, env.token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, "POST", "/queues/join", map[string]any{"channelId": c.ID}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "player_required", reason(t, rr))

	rr = env.do(t, "POST", "/queues/join", map[string]any{"playerId": p.ID, "channelId": 404}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "channel_not_found", reason(t, rr))

	rr = env.do(t, "POST", "/admin/queues/kick", map[string]any{"playerId": p.ID}, env.token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res queue.LeaveResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.Left)

	t.Run("removing a player who is not queued is a no-op", func(t *testing.T) {
		for _, call := range []struct{ target, token string }{
			{"/admin/queues/kick", env.token},
			{"/queues/leave", ""},
		} {
			rr := env.do(t, "POST", call.target, map[string]any{"playerId": p.ID}, call.token)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			var res queue.LeaveResult
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
			assert.False(t, res.Left)
			assert.Equal(t, queue.ReasonNotInQueue, res.Reason)
		}

		rr := env.do(t, "POST", fmt.Sprintf("/players/%d/seen", p.ID), nil, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.JSONEq(t, `{"queued":false}`, rr.Body.String())
	})
}

func TestPushHandlers(t *testing.T) {
	env, teardown := setupTestServer(t, notifier.NewMock())
	defer teardown()

	rr := env.do(t, "POST", "/events/queue-balanced", map[string]any{"message": map[string]any{"data": "%%%"}}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, "POST", "/events/queue-balanced", pushBody(t, pubsub.QueueBalancedEvent{QueueID: 42}), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, "POST", "/events/match-recorded", pushBody(t, pubsub.MatchRecordedEvent{MatchID: "missing"}), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "match_not_found", reason(t, rr))
}

func TestRefreshHandler(t *testing.T) {
	notif := notifier.NewMock()
	env, teardown := setupTestServer(t, notif)
	defer teardown()

	rr := env.do(t, "POST", "/refresh?post=false", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, notif.SendQueuesCalls)

	rr = env.do(t, "POST", "/refresh?dry_run=true", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, notif.SendQueuesCalls, 1)
	assert.Equal(t, []bool{true}, notif.DryRuns)

	rr = env.do(t, "POST", "/refresh?post=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSlackViews(t *testing.T) {
	n := slacknotifier.NewNotifierWithAPI(nil, "C123", 15, metrics.NewMock())
	env, teardown := setupTestServer(t, n)
	defer teardown()

	rr := env.do(t, "GET", "/slack/leaderboard", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "No one has played this season yet")

	rr = env.do(t, "GET", "/slack/queues", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "No one is queueing")
}

func TestStatsHandler(t *testing.T) {
	env, teardown := setupTestServer(t, notifier.NewMock())
	defer teardown()
	env.counters.Increment(metrics.KeyQueueRefreshes)

	rr := env.do(t, "GET", "/stats", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats[metrics.KeyQueueRefreshes])
}
