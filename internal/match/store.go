package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/database"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/samber/lo"
)

type store struct {
	db      *sql.DB
	mu      sync.Mutex
	season  int
	policy  RatingPolicy
	engine  *balance.Engine
	pubsub  pubsub.PubSubClient
	metrics metrics.Metrics
}

// NewStore creates a MatchRecorder booking ratings into season.
func NewStore(db *sql.DB, season int, policy RatingPolicy, engine *balance.Engine, pubsub pubsub.PubSubClient, metrics metrics.Metrics) MatchRecorder {
	if policy == nil {
		policy = FlatDelta(DefaultK)
	}
	return &store{
		db:      db,
		season:  season,
		policy:  policy,
		engine:  engine,
		pubsub:  pubsub,
		metrics: metrics,
	}
}

func (s *store) Season() int {
	return s.season
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

func (s *store) RecordFromQueue(ctx context.Context, queueID int64, winner int) (*Match, error) {
	if winner != 0 && winner != 1 {
		return nil, ErrInvalidWinner
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var m *Match
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		var (
			state     queue.State
			balanceID sql.NullString
		)
		err := tx.QueryRowContext(ctx, "SELECT state, balance_id FROM queues WHERE id = ?", queueID).Scan(&state, &balanceID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrQueueNotFound, queueID)
		}
		if err != nil {
			return fmt.Errorf("failed to get queue: %w", err)
		}
		if state == queue.StateClosed {
			return fmt.Errorf("%w: %d", ErrQueueClosed, queueID)
		}
		if !state.Full() || !balanceID.Valid {
			return fmt.Errorf("%w: queue %d is %s", ErrNoBalanceAttached, queueID, state)
		}
		answer, err := queue.LoadBalance(ctx, tx, balanceID.String)
		if err != nil {
			return err
		}
		if m, err = s.record(ctx, tx, *answer, &queueID, winner, ""); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE queues SET state = ?, game_end_time = ? WHERE id = ? AND state IN (?, ?)",
			queue.StateClosed, time.Now().Unix(), queueID, queue.StateBalanced, queue.StateInGame,
		)
		if err != nil {
			return fmt.Errorf("failed to close queue: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("%w: %d", ErrQueueClosed, queueID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recorded(m)
	return m, nil
}

func (s *store) RecordManual(ctx context.Context, teamA, teamB []int64, winner int, dotaID string) (*Match, error) {
	if winner != 0 && winner != 1 {
		return nil, ErrInvalidWinner
	}
	all := append(append([]int64{}, teamA...), teamB...)
	if len(teamA) != balance.TeamSize || len(teamB) != balance.TeamSize || len(lo.Uniq(all)) != balance.QueueSize {
		return nil, ErrInvalidTeams
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var m *Match
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		players, err := roster.Load(ctx, tx, roster.LadderFilter, all...)
		if err != nil {
			return err
		}
		bp := lo.Map(players, func(p roster.Player, _ int) balance.Player { return queue.ToBalancePlayer(p) })
		answer := s.engine.Custom(bp[:balance.TeamSize], bp[balance.TeamSize:])
		if err := queue.SaveBalance(ctx, tx, nil, &answer); err != nil {
			return err
		}
		m, err = s.record(ctx, tx, answer, nil, winner, dotaID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recorded(m)
	return m, nil
}

// record inserts the match, its participants and one score change per
// player, priced from the participants' current ladder ratings.
func (s *store) record(ctx context.Context, tx *sql.Tx, answer balance.Answer, queueID *int64, winner int, dotaID string) (*Match, error) {
	sides := [2][]int64{answer.PlayerIDs(0), answer.PlayerIDs(1)}
	var current [2][]roster.Player
	for side, ids := range sides {
		players, err := roster.Load(ctx, tx, roster.LadderFilter, ids...)
		if err != nil {
			return nil, err
		}
		current[side] = players
	}
	avg := func(ps []roster.Player) int {
		total := lo.SumBy(ps, func(p roster.Player) int { return p.LadderMMR })
		return (total + len(ps)/2) / len(ps)
	}
	gain, loss := s.policy(avg(current[winner]), avg(current[1-winner]))

	m := &Match{
		ID:        uuid.New().String(),
		BalanceID: answer.ID,
		QueueID:   queueID,
		Winner:    winner,
		Season:    s.season,
		DotaID:    dotaID,
		CreatedAt: time.Now(),
	}
	var dota *string
	if dotaID != "" {
		dota = &dotaID
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO matches (id, balance_id, queue_id, winner, season, dota_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.BalanceID, queueID, winner, s.season, dota, m.CreatedAt.Unix(),
	)
	if err != nil {
		if database.IsConstraint(err) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRecorded, answer.ID)
		}
		return nil, fmt.Errorf("failed to insert match: %w", err)
	}

	for side, players := range current {
		delta := -loss
		if side == winner {
			delta = gain
		}
		for _, p := range players {
			mp := MatchPlayer{PlayerID: p.ID, Name: p.Name, Team: side, MMRBefore: p.LadderMMR, MMRChange: delta}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO match_players (match_id, player_id, team, mmr_before, mmr_change) VALUES (?, ?, ?, ?, ?)",
				m.ID, mp.PlayerID, mp.Team, mp.MMRBefore, mp.MMRChange,
			); err != nil {
				return nil, fmt.Errorf("failed to insert match player: %w", err)
			}
			if _, err := roster.ApplyRatingChange(ctx, tx, p.ID, delta, s.season, "Match "+m.ID, &m.ID); err != nil {
				return nil, err
			}
			m.Teams[side] = append(m.Teams[side], mp)
		}
	}
	return m, nil
}

func (s *store) recorded(m *Match) {
	s.metrics.IncMatchesRecorded()
	log.Info("Match recorded", "matchID", m.ID, "winner", m.Winner, "season", m.Season, "queueID", lo.FromPtr(m.QueueID))

	event := pubsub.MatchRecordedEvent{MatchID: m.ID, QueueID: lo.FromPtr(m.QueueID), Winner: m.Winner, Season: m.Season}
	if err := s.pubsub.SendMessage(pubsub.EventMatchRecorded, event); err != nil {
		log.Error("Failed to publish event", "topic", pubsub.EventMatchRecorded, "error", err)
	}
}

func (s *store) GetMatch(ctx context.Context, id string) (*Match, error) {
	m := Match{ID: id}
	var (
		queueID   sql.NullInt64
		dotaID    sql.NullString
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT balance_id, queue_id, winner, season, dota_id, created_at FROM matches WHERE id = ?", id,
	).Scan(&m.BalanceID, &queueID, &m.Winner, &m.Season, &dotaID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if queueID.Valid {
		m.QueueID = &queueID.Int64
	}
	m.DotaID = dotaID.String
	m.CreatedAt = time.Unix(createdAt, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT mp.player_id, p.name, mp.team, mp.mmr_before, mp.mmr_change
		FROM match_players mp JOIN players p ON p.id = mp.player_id
		WHERE mp.match_id = ?
		ORDER BY mp.rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query match players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mp MatchPlayer
		if err := rows.Scan(&mp.PlayerID, &mp.Name, &mp.Team, &mp.MMRBefore, &mp.MMRChange); err != nil {
			return nil, fmt.Errorf("failed to scan match player: %w", err)
		}
		m.Teams[mp.Team] = append(m.Teams[mp.Team], mp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match players: %w", err)
	}
	return &m, nil
}

func (s *store) RecentMatches(ctx context.Context, playerID int64, limit int) ([]PlayedMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, COALESCE(m.dota_id, ''), m.winner = mp.team, mp.mmr_change, m.created_at
		FROM match_players mp JOIN matches m ON m.id = mp.match_id
		WHERE mp.player_id = ?
		ORDER BY m.created_at DESC, m.rowid DESC
		LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent matches: %w", err)
	}
	defer rows.Close()

	var matches []PlayedMatch
	for rows.Next() {
		var (
			pm        PlayedMatch
			won       bool
			createdAt int64
		)
		if err := rows.Scan(&pm.MatchID, &pm.DotaID, &won, &pm.MMRChange, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent match: %w", err)
		}
		pm.Outcome = outcome(won)
		pm.CreatedAt = time.Unix(createdAt, 0)
		matches = append(matches, pm)
	}
	return matches, rows.Err()
}

func outcome(won bool) Outcome {
	if won {
		return Win
	}
	return Loss
}

func (s *store) AdjustRating(ctx context.Context, playerID int64, newValue int, reason string) (*ScoreChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var change *ScoreChange
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		players, err := roster.Load(ctx, tx, roster.LadderFilter, playerID)
		if err != nil {
			return err
		}
		info := "Admin action"
		if reason != "" {
			info += ": " + reason
		}
		delta := newValue - players[0].LadderMMR
		id, err := roster.ApplyRatingChange(ctx, tx, playerID, delta, s.season, info, nil)
		if err != nil {
			return err
		}
		change = &ScoreChange{ID: id, PlayerID: playerID, MMRChange: delta, Season: s.season, Info: info, CreatedAt: time.Now()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRatingAdjustments()
	log.Info("Rating adjusted", "player", playerID, "delta", change.MMRChange, "newValue", newValue)
	event := pubsub.RatingAdjustedEvent{PlayerID: playerID, ScoreChangeID: change.ID, Delta: change.MMRChange, Reason: reason}
	if err := s.pubsub.SendMessage(pubsub.EventRatingAdjusted, event); err != nil {
		log.Error("Failed to publish event", "topic", pubsub.EventRatingAdjusted, "error", err)
	}
	return change, nil
}

// History lists a player's outcomes in season, most recent first.
func (s *store) History(ctx context.Context, playerID int64, season int) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.winner = mp.team
		FROM match_players mp JOIN matches m ON m.id = mp.match_id
		WHERE mp.player_id = ? AND m.season = ?
		ORDER BY m.created_at DESC, m.rowid DESC`, playerID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var won bool
		if err := rows.Scan(&won); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome(won))
	}
	return outcomes, rows.Err()
}

func (s *store) PlayerStreaks(ctx context.Context, playerID int64, season int) (Streaks, error) {
	outcomes, err := s.History(ctx, playerID, season)
	if err != nil {
		return Streaks{}, err
	}
	return summarize(outcomes), nil
}

func (s *store) RecomputeRating(ctx context.Context, playerID int64, season int) (int, error) {
	return roster.SeasonRating(ctx, s.db, playerID, season)
}
