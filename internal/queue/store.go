package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/database"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/samber/lo"
)

// DefaultVotekickThreshold applies when Config leaves it unset.
const DefaultVotekickThreshold = 5

// store handles queue database operations. mu serialises every membership
// transaction in this process; BEGIN IMMEDIATE covers other processes.
type store struct {
	db      *sql.DB
	mu      sync.RWMutex
	engine  *balance.Engine
	filter  roster.FilterPolicy
	pubsub  pubsub.PubSubClient
	metrics metrics.Metrics
	cfg     Config
}

// NewStore creates a QueueStore.
func NewStore(db *sql.DB, engine *balance.Engine, filter roster.FilterPolicy, pubsub pubsub.PubSubClient, metrics metrics.Metrics, cfg Config) QueueStore {
	if cfg.VotekickThreshold <= 0 {
		cfg.VotekickThreshold = DefaultVotekickThreshold
	}
	if filter == nil {
		filter = roster.LadderFilter
	}
	return &store{
		db:      db,
		engine:  engine,
		filter:  filter,
		pubsub:  pubsub,
		metrics: metrics,
		cfg:     cfg,
	}
}

// withTx runs fn in a transaction. Lock contention and constraint
// violations are retried once and then reported as ErrConflict. fn must be
// safe to run twice.
func (s *store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = s.runTx(ctx, fn)
		if !database.IsBusy(err) && !database.IsConstraint(err) {
			return err
		}
		log.Warn("Queue transaction conflicted", "attempt", attempt, "error", err)
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func (s *store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *store) publish(topic pubsub.EventType, data any) {
	if err := s.pubsub.SendMessage(topic, data); err != nil {
		log.Error("Failed to publish event", "topic", topic, "error", err)
	}
}

func (s *store) reject(reason Reason) {
	if reason != ReasonNone {
		s.metrics.IncQueueRejection(string(reason))
	}
}

func (s *store) Join(ctx context.Context, playerID, channelID int64) (JoinResult, error) {
	return s.join(ctx, playerID, channelID, true)
}

func (s *store) ForceAdd(ctx context.Context, playerID, channelID int64) (JoinResult, error) {
	return s.join(ctx, playerID, channelID, false)
}

func (s *store) join(ctx context.Context, playerID, channelID int64, checkEligibility bool) (JoinResult, error) {
	res, event, err := s.joinTx(ctx, playerID, channelID, checkEligibility)
	if errors.Is(err, ErrConflict) {
		log.Error("Giving up on join", "player", playerID, "channel", channelID, "error", err)
		res, err = JoinResult{Reason: ReasonConflict}, nil
	}
	if err != nil {
		return JoinResult{}, err
	}

	s.reject(res.Reason)
	if res.Joined {
		s.metrics.IncQueueJoins()
		log.Info("Player joined queue", "player", playerID, "queueID", res.Queue.ID, "forced", !checkEligibility)
	} else {
		log.Debug("Join rejected", "player", playerID, "channel", channelID, "reason", res.Reason)
	}
	if event != nil {
		s.metrics.IncQueuesBalanced()
		s.publish(pubsub.EventQueueBalanced, *event)
	}
	return res, nil
}

func (s *store) joinTx(ctx context.Context, playerID, channelID int64, checkEligibility bool) (JoinResult, *pubsub.QueueBalancedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		res   JoinResult
		event *pubsub.QueueBalancedEvent
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, event = JoinResult{}, nil

		channel, err := getChannel(ctx, tx, channelID)
		if err != nil {
			return err
		}
		players, err := roster.Load(ctx, tx, s.filter, playerID)
		if err != nil {
			return err
		}
		if checkEligibility {
			if reason := eligibility(players[0], *channel); reason != ReasonNone {
				res.Reason = reason
				return nil
			}
		}

		current, err := activeMemberships(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if q, ok := lo.Find(current, func(q Queue) bool { return q.ChannelID == channel.ID }); ok {
			res.Queue, res.Reason = &q, ReasonAlreadyInQueue
			return nil
		}
		if lo.ContainsBy(current, func(q Queue) bool { return q.State.Full() }) {
			res.Reason = ReasonAlreadyInFullQueue
			return nil
		}
		for _, q := range current {
			if err := removeMember(ctx, tx, q, playerID); err != nil {
				return err
			}
			log.Info("Moved player out of queue in another channel", "player", playerID, "fromQueue", q.ID)
		}

		q, err := openQueue(ctx, tx, *channel)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO queue_players (queue_id, player_id, joined_at, last_seen) VALUES (?, ?, ?, ?)",
			q.ID, playerID, now, now,
		); err != nil {
			return fmt.Errorf("failed to insert queue member: %w", err)
		}

		count, err := memberCount(ctx, tx, q.ID)
		if err != nil {
			return err
		}
		switch {
		case count > balance.QueueSize:
			return fmt.Errorf("queue %d has %d members", q.ID, count)
		case count == balance.QueueSize:
			balanceID, err := s.balanceQueue(ctx, tx, q.ID)
			if err != nil {
				return err
			}
			res.Balanced = true
			event = &pubsub.QueueBalancedEvent{QueueID: q.ID, ChannelID: channel.ID, BalanceID: balanceID}
		}

		if q, err = getQueue(ctx, tx, q.ID); err != nil {
			return err
		}
		res.Queue, res.Joined = q, true
		return nil
	})
	return res, event, err
}

// eligibility checks a player against a channel; the first failure wins.
func eligibility(p roster.Player, c Channel) Reason {
	switch {
	case !c.Active:
		return ReasonChannelInactive
	case p.IsBanned():
		return ReasonBanned
	case !p.Vouched:
		return ReasonNotVouched
	case p.FilterMMR < c.MinMMR:
		return ReasonMmrTooLow
	case c.MaxMMR > 0 && p.FilterMMR > c.MaxMMR:
		return ReasonMmrTooHigh
	}
	return ReasonNone
}

// balanceQueue ranks the splits of a full queue, stores every candidate and
// attaches the best one. It returns the attached balance id.
func (s *store) balanceQueue(ctx context.Context, tx *sql.Tx, queueID int64) (string, error) {
	members, err := listMembers(ctx, tx, queueID)
	if err != nil {
		return "", err
	}
	ids := lo.Map(members, func(m Member, _ int) int64 { return m.PlayerID })
	players, err := roster.Load(ctx, tx, s.filter, ids...)
	if err != nil {
		return "", err
	}

	start := time.Now()
	answers := s.engine.Balance(lo.Map(players, func(p roster.Player, _ int) balance.Player { return ToBalancePlayer(p) }))
	s.metrics.ObserveBalanceDuration(time.Since(start).Seconds())

	for i := range answers {
		if err := SaveBalance(ctx, tx, &queueID, &answers[i]); err != nil {
			return "", err
		}
	}
	best := answers[0]
	res, err := tx.ExecContext(ctx,
		"UPDATE queues SET state = ?, balance_id = ? WHERE id = ? AND state = ?",
		StateBalanced, best.ID, queueID, StateOpen,
	)
	if err != nil {
		return "", fmt.Errorf("failed to attach balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return "", fmt.Errorf("%w: queue %d left OPEN before balancing", ErrInvalidState, queueID)
	}
	log.Info("Queue balanced", "queueID", queueID, "balanceID", best.ID, "mmrDiff", best.MMRDiffRounded(), "candidates", len(answers))
	return best.ID, nil
}

func (s *store) Leave(ctx context.Context, playerID int64) (LeaveResult, error) {
	return s.remove(ctx, playerID, false)
}

func (s *store) ForceRemove(ctx context.Context, playerID int64) (LeaveResult, error) {
	return s.remove(ctx, playerID, true)
}

func (s *store) remove(ctx context.Context, playerID int64, force bool) (LeaveResult, error) {
	res, err := s.removeTx(ctx, playerID, force)
	if errors.Is(err, ErrConflict) {
		res, err = LeaveResult{Reason: ReasonConflict}, nil
	}
	if err != nil {
		return LeaveResult{}, err
	}
	if res.Left {
		s.metrics.IncQueueLeaves()
		log.Info("Player left queue", "player", playerID, "queueID", res.QueueID, "forced", force)
	} else if res.Reason != ReasonNotInQueue {
		s.reject(res.Reason)
	}
	return res, nil
}

func (s *store) removeTx(ctx context.Context, playerID int64, force bool) (LeaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res LeaveResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res = LeaveResult{}
		current, err := activeMemberships(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			res.Reason = ReasonNotInQueue
			return nil
		}
		if !force {
			if full, ok := lo.Find(current, func(q Queue) bool { return q.State.Full() }); ok {
				res.QueueID, res.Reason = full.ID, ReasonInGame
				return nil
			}
		}
		for _, q := range current {
			if err := removeMember(ctx, tx, q, playerID); err != nil {
				return err
			}
		}
		res.QueueID, res.Left = current[0].ID, true
		return nil
	})
	return res, err
}

// removeMember drops a membership. Removing from a full queue detaches its
// balance, clears its votes and reopens it.
func removeMember(ctx context.Context, tx *sql.Tx, q Queue, playerID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM queue_players WHERE queue_id = ? AND player_id = ?", q.ID, playerID); err != nil {
		return fmt.Errorf("failed to delete queue member: %w", err)
	}
	if !q.State.Full() {
		_, err := tx.ExecContext(ctx, "DELETE FROM queue_votes WHERE queue_id = ? AND (target_id = ? OR voter_id = ?)", q.ID, playerID, playerID)
		if err != nil {
			return fmt.Errorf("failed to clear votes: %w", err)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE queues SET state = ?, balance_id = NULL, game_start_time = NULL WHERE id = ?",
		StateOpen, q.ID,
	); err != nil {
		return fmt.Errorf("failed to reopen queue: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM queue_votes WHERE queue_id = ?", q.ID); err != nil {
		return fmt.Errorf("failed to clear votes: %w", err)
	}
	log.Warn("Balance invalidated by removal, queue reopened", "queueID", q.ID, "player", playerID)
	return nil
}

func (s *store) VoteKick(ctx context.Context, voterID, targetID int64) (VoteResult, error) {
	res, err := s.voteTx(ctx, voterID, targetID)
	if errors.Is(err, ErrConflict) {
		res, err = VoteResult{Required: s.cfg.VotekickThreshold, Reason: ReasonConflict}, nil
	}
	if err != nil {
		return VoteResult{}, err
	}
	s.reject(res.Reason)
	if res.Kicked {
		s.metrics.IncVoteKicks()
		s.metrics.IncQueueLeaves()
		log.Info("Player vote-kicked", "target", targetID, "queueID", res.QueueID, "votes", res.Votes)
	}
	return res, nil
}

func (s *store) voteTx(ctx context.Context, voterID, targetID int64) (VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res VoteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res = VoteResult{Required: s.cfg.VotekickThreshold}

		current, err := activeMemberships(ctx, tx, voterID)
		if err != nil {
			return err
		}
		q, ok := lo.Find(current, func(q Queue) bool { return q.State.Full() })
		if !ok {
			res.Reason = ReasonNotInFullQueue
			return nil
		}
		res.QueueID = q.ID

		var member int
		err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM queue_players WHERE queue_id = ? AND player_id = ?", q.ID, targetID).Scan(&member)
		if err != nil {
			return fmt.Errorf("failed to check target membership: %w", err)
		}
		if member == 0 {
			res.Reason = ReasonTargetNotInQueue
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO queue_votes (queue_id, target_id, voter_id, created_at) VALUES (?, ?, ?, ?)",
			q.ID, targetID, voterID, time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}
		if res.Voters, err = voters(ctx, tx, q.ID, targetID); err != nil {
			return err
		}
		res.Votes = len(res.Voters)

		if res.Votes >= res.Required {
			if err := removeMember(ctx, tx, q, targetID); err != nil {
				return err
			}
			res.Kicked = true
		}
		return nil
	})
	return res, err
}

func voters(ctx context.Context, tx *sql.Tx, queueID, targetID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT voter_id FROM queue_votes WHERE queue_id = ? AND target_id = ? ORDER BY created_at, voter_id", queueID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *store) StartGame(ctx context.Context, queueID int64, server string) (*Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var q *Queue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getQueue(ctx, tx, queueID)
		if err != nil {
			return err
		}
		if current.State != StateBalanced {
			return fmt.Errorf("%w: queue %d is %s", ErrInvalidState, queueID, current.State)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE queues SET state = ?, game_start_time = ?, game_server = ? WHERE id = ?",
			StateInGame, time.Now().Unix(), server, queueID,
		); err != nil {
			return fmt.Errorf("failed to start game: %w", err)
		}
		q, err = getQueue(ctx, tx, queueID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("Game started", "queueID", queueID, "server", server)
	return q, nil
}

func (s *store) Close(ctx context.Context, queueID int64) (*Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var q *Queue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getQueue(ctx, tx, queueID)
		if err != nil {
			return err
		}
		if current.State == StateClosed {
			q = current
			return nil
		}
		var gameEnd *int64
		if current.State == StateInGame {
			now := time.Now().Unix()
			gameEnd = &now
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE queues SET state = ?, game_end_time = COALESCE(?, game_end_time) WHERE id = ?",
			StateClosed, gameEnd, queueID,
		); err != nil {
			return fmt.Errorf("failed to close queue: %w", err)
		}
		q, err = getQueue(ctx, tx, queueID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("Queue closed", "queueID", queueID)
	return q, nil
}

func (s *store) GetQueue(ctx context.Context, queueID int64) (*Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getQueue(ctx, s.db, queueID)
}

// Touch records activity of a player in the queues they sit in. It reports
// whether the player is queued.
func (s *store) Touch(ctx context.Context, playerID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_players SET last_seen = MAX(last_seen, ?)
		WHERE player_id = ? AND queue_id IN (SELECT id FROM queues WHERE state != 'CLOSED')`,
		at.Unix(), playerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (s *store) Candidates(ctx context.Context, queueID int64) ([]balance.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := getQueue(ctx, s.db, queueID); err != nil {
		return nil, err
	}
	return Candidates(ctx, s.db, queueID)
}

func (s *store) GetQueueView(ctx context.Context, channelID int64) ([]QueueView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := getChannel(ctx, s.db, channelID); err != nil {
		return nil, err
	}
	return s.views(ctx, "AND q.channel_id = ?", channelID)
}

func (s *store) ListActiveViews(ctx context.Context) ([]QueueView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.views(ctx, "")
}

func (s *store) views(ctx context.Context, filter string, args ...any) ([]QueueView, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+prefixed("q.", queueColumns)+", "+prefixed("c.", channelColumns)+`
		FROM queues q JOIN channels c ON c.id = q.channel_id
		WHERE q.state != 'CLOSED' `+filter+`
		ORDER BY q.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queues: %w", err)
	}
	var views []QueueView
	for rows.Next() {
		var v QueueView
		if err := scanQueueAndChannel(rows, &v.Queue, &v.Channel); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan queue: %w", err)
		}
		views = append(views, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queues: %w", err)
	}

	for i := range views {
		v := &views[i]
		if v.Members, err = listMembers(ctx, s.db, v.Queue.ID); err != nil {
			return nil, err
		}
		if len(v.Members) > 0 {
			total := lo.SumBy(v.Members, func(m Member) int { return m.LadderMMR })
			v.AvgMMR = (total + len(v.Members)/2) / len(v.Members)
		}
		v.Underdog = balance.NoUnderdog
		if v.Queue.BalanceID != nil {
			if v.Balance, err = LoadBalance(ctx, s.db, *v.Queue.BalanceID); err != nil {
				return nil, err
			}
			v.Underdog = v.Balance.Underdog(s.cfg.UnderdogDiff)
		}
	}
	return views, nil
}
