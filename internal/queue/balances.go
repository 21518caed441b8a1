package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
)

var ErrBalanceNotFound = errors.New("balance not found")

// ToBalancePlayer converts a roster player into a balancing input using the
// ladder rating.
func ToBalancePlayer(p roster.Player) balance.Player {
	roles := p.Roles.Values()
	return balance.Player{ID: p.ID, Name: p.Name, MMR: p.LadderMMR, Roles: &roles}
}

// SaveBalance stores an answer, assigning it an id if it has none.
// queueID is nil for matches assembled outside a queue.
func SaveBalance(ctx context.Context, q roster.Querier, queueID *int64, a *balance.Answer) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	teams, err := json.Marshal(a.Teams)
	if err != nil {
		return fmt.Errorf("failed to marshal teams: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO balance_answers (id, queue_id, rank, teams_json, mmr_diff, role_cost, cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, queueID, a.Rank, string(teams), a.MMRDiff, a.RoleCost, a.Cost, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert balance answer: %w", err)
	}
	return nil
}

const balanceColumns = "id, rank, teams_json, mmr_diff, role_cost, cost"

func scanBalance(row scanner) (*balance.Answer, error) {
	var (
		a     balance.Answer
		teams string
	)
	if err := row.Scan(&a.ID, &a.Rank, &teams, &a.MMRDiff, &a.RoleCost, &a.Cost); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(teams), &a.Teams); err != nil {
		return nil, fmt.Errorf("failed to unmarshal teams of balance %s: %w", a.ID, err)
	}
	return &a, nil
}

func LoadBalance(ctx context.Context, q roster.Querier, id string) (*balance.Answer, error) {
	a, err := scanBalance(q.QueryRowContext(ctx, "SELECT "+balanceColumns+" FROM balance_answers WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBalanceNotFound, id)
		}
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	return a, nil
}

// Candidates returns the ranked answers of the latest balancing of a queue,
// best first. A queue that reopened after a kick keeps its older answers, but
// they are not returned.
func Candidates(ctx context.Context, q roster.Querier, queueID int64) ([]balance.Answer, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+balanceColumns+` FROM balance_answers
		WHERE queue_id = ?
		AND rowid >= (SELECT MAX(rowid) FROM balance_answers WHERE queue_id = ? AND rank = 0)
		ORDER BY rank`, queueID, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var answers []balance.Answer
	for rows.Next() {
		a, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *a)
	}
	return answers, rows.Err()
}
