package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/samber/lo"
)

type scanner interface {
	Scan(dest ...any) error
}

const (
	queueColumns   = "id, channel_id, state, min_mmr, max_mmr, balance_id, game_server, created_at, game_start_time, game_end_time"
	channelColumns = "id, discord_id, name, min_mmr, max_mmr, active, active_on"
)

func prefixed(prefix, columns string) string {
	cols := strings.Split(columns, ", ")
	return strings.Join(lo.Map(cols, func(c string, _ int) string { return prefix + c }), ", ")
}

type queueRow struct {
	q         *Queue
	balanceID sql.NullString
	createdAt int64
	start     sql.NullInt64
	end       sql.NullInt64
}

func (r *queueRow) dest() []any {
	return []any{&r.q.ID, &r.q.ChannelID, &r.q.State, &r.q.MinMMR, &r.q.MaxMMR, &r.balanceID,
		&r.q.GameServer, &r.createdAt, &r.start, &r.end}
}

func (r *queueRow) finish() {
	r.q.BalanceID = nil
	if r.balanceID.Valid {
		id := r.balanceID.String
		r.q.BalanceID = &id
	}
	r.q.CreatedAt = time.Unix(r.createdAt, 0)
	r.q.GameStartTime = unixPtr(r.start)
	r.q.GameEndTime = unixPtr(r.end)
}

type channelRow struct {
	c         *Channel
	discordID sql.NullString
	activeOn  string
}

func (r *channelRow) dest() []any {
	return []any{&r.c.ID, &r.discordID, &r.c.Name, &r.c.MinMMR, &r.c.MaxMMR, &r.c.Active, &r.activeOn}
}

func (r *channelRow) finish() error {
	r.c.DiscordID = r.discordID.String
	r.c.ActiveOn = nil
	if err := json.Unmarshal([]byte(r.activeOn), &r.c.ActiveOn); err != nil {
		return fmt.Errorf("failed to unmarshal schedule of channel %d: %w", r.c.ID, err)
	}
	return nil
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func scanQueue(row scanner) (*Queue, error) {
	var q Queue
	r := queueRow{q: &q}
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	r.finish()
	return &q, nil
}

func scanChannel(row scanner) (*Channel, error) {
	var c Channel
	r := channelRow{c: &c}
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanQueueAndChannel(row scanner, q *Queue, c *Channel) error {
	qr, cr := queueRow{q: q}, channelRow{c: c}
	if err := row.Scan(append(qr.dest(), cr.dest()...)...); err != nil {
		return err
	}
	qr.finish()
	return cr.finish()
}

func getQueue(ctx context.Context, q roster.Querier, id int64) (*Queue, error) {
	queue, err := scanQueue(q.QueryRowContext(ctx, "SELECT "+queueColumns+" FROM queues WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrQueueNotFound, id)
		}
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}
	return queue, nil
}

func getChannel(ctx context.Context, q roster.Querier, id int64) (*Channel, error) {
	c, err := scanChannel(q.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return c, nil
}

// activeMemberships lists the non-closed queues a player sits in.
func activeMemberships(ctx context.Context, q roster.Querier, playerID int64) ([]Queue, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+prefixed("q.", queueColumns)+`
		FROM queues q JOIN queue_players qp ON qp.queue_id = q.id
		WHERE qp.player_id = ? AND q.state != 'CLOSED'
		ORDER BY q.id`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var queues []Queue
	for rows.Next() {
		queue, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue: %w", err)
		}
		queues = append(queues, *queue)
	}
	return queues, rows.Err()
}

// openQueue returns the fullest OPEN queue of a channel with room left,
// creating one from the channel window if there is none.
func openQueue(ctx context.Context, tx *sql.Tx, c Channel) (*Queue, error) {
	q, err := scanQueue(tx.QueryRowContext(ctx, `
		SELECT `+prefixed("q.", queueColumns)+`
		FROM queues q LEFT JOIN queue_players qp ON qp.queue_id = q.id
		WHERE q.channel_id = ? AND q.state = 'OPEN'
		GROUP BY q.id
		HAVING COUNT(qp.player_id) < ?
		ORDER BY COUNT(qp.player_id) DESC, q.id
		LIMIT 1`, c.ID, balance.QueueSize))
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find open queue: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO queues (channel_id, state, min_mmr, max_mmr, created_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, StateOpen, c.MinMMR, c.MaxMMR, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue id: %w", err)
	}
	return getQueue(ctx, tx, id)
}

func memberCount(ctx context.Context, q roster.Querier, queueID int64) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM queue_players WHERE queue_id = ?", queueID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue members: %w", err)
	}
	return n, nil
}

// listMembers returns members in join order.
func listMembers(ctx context.Context, q roster.Querier, queueID int64) ([]Member, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.name, p.ladder_mmr, qp.joined_at, qp.last_seen
		FROM queue_players qp JOIN players p ON p.id = qp.player_id
		WHERE qp.queue_id = ?
		ORDER BY qp.joined_at, qp.rowid`, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var (
			m        Member
			joinedAt int64
			lastSeen int64
		)
		if err := rows.Scan(&m.PlayerID, &m.Name, &m.LadderMMR, &joinedAt, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan queue member: %w", err)
		}
		m.JoinedAt = time.Unix(joinedAt, 0)
		m.LastSeen = time.Unix(lastSeen, 0)
		members = append(members, m)
	}
	return members, rows.Err()
}
