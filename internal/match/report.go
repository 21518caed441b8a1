package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/inhouse-ladder/internal/database"
)

// Report files a report or tip. An empty MatchID targets the reporter's
// most recent match.
func (s *store) Report(ctx context.Context, params ReportParams) (*Report, error) {
	if params.FromPlayerID == params.ToPlayerID {
		return nil, ErrSelfReport
	}

	matchID := params.MatchID
	if matchID == "" {
		err := s.db.QueryRowContext(ctx, `
			SELECT m.id FROM match_players mp JOIN matches m ON m.id = mp.match_id
			WHERE mp.player_id = ?
			ORDER BY m.created_at DESC, m.rowid DESC LIMIT 1`, params.FromPlayerID,
		).Scan(&matchID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoMatchToReport
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find last match: %w", err)
		}
	}

	var (
		createdAt    int64
		participants int
	)
	err := s.db.QueryRowContext(ctx, "SELECT created_at FROM matches WHERE id = ?", matchID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if time.Since(time.Unix(createdAt, 0)) > ReportWindow {
		return nil, fmt.Errorf("%w: %s", ErrMatchTooOld, matchID)
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM match_players WHERE match_id = ? AND player_id IN (?, ?)",
		matchID, params.FromPlayerID, params.ToPlayerID,
	).Scan(&participants)
	if err != nil {
		return nil, fmt.Errorf("failed to check participants: %w", err)
	}
	if participants != 2 {
		return nil, fmt.Errorf("%w: %s", ErrNotPlayedTogether, matchID)
	}

	r := &Report{
		ID:           uuid.New().String(),
		FromPlayerID: params.FromPlayerID,
		ToPlayerID:   params.ToPlayerID,
		MatchID:      matchID,
		Value:        -1,
		Comment:      strings.TrimSpace(params.Comment),
		CreatedAt:    time.Now(),
	}
	if params.Tip {
		r.Value = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO player_reports (id, from_player_id, to_player_id, match_id, value, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FromPlayerID, r.ToPlayerID, r.MatchID, r.Value, r.Comment, r.CreatedAt.Unix(),
	)
	if err != nil {
		if database.IsConstraint(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReport, matchID)
		}
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}
	log.Info("Player reported", "from", r.FromPlayerID, "to", r.ToPlayerID, "matchID", matchID, "value", r.Value)
	return r, nil
}

func (s *store) Reports(ctx context.Context, playerID int64, tips bool) ([]Report, error) {
	sign := "value < 0"
	if tips {
		sign = "value > 0"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_player_id, to_player_id, match_id, value, comment, created_at
		FROM player_reports WHERE to_player_id = ? AND `+sign+`
		ORDER BY created_at DESC, rowid DESC`, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var (
			r         Report
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.FromPlayerID, &r.ToPlayerID, &r.MatchID, &r.Value, &r.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}
