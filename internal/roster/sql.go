package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so the helpers below can
// run inside another package's transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const playerColumns = `id, discord_id, name, dota_id, dota_mmr, ladder_mmr, banned, vouched,
	role_carry, role_mid, role_offlane, role_pos4, role_pos5, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner, filter FilterPolicy, extra ...any) (Player, error) {
	var (
		p         Player
		discordID sql.NullString
		banned    string
		createdAt int64
	)
	dest := []any{
		&p.ID, &discordID, &p.Name, &p.DotaID, &p.DotaMMR, &p.LadderMMR, &banned, &p.Vouched,
		&p.Roles.Carry, &p.Roles.Mid, &p.Roles.Offlane, &p.Roles.Pos4, &p.Roles.Pos5, &createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Player{}, err
	}
	p.DiscordID = discordID.String
	p.Banned = BanStatus(banned)
	p.CreatedAt = time.Unix(createdAt, 0)
	if filter == nil {
		filter = LadderFilter
	}
	p.FilterMMR = filter(p)
	return p, nil
}

// Load fetches players by id and returns them in the order of ids.
// A missing id yields ErrPlayerNotFound.
func Load(ctx context.Context, q Querier, filter FilterPolicy, ids ...int64) ([]Player, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	unique := lo.Uniq(ids)
	query := fmt.Sprintf("SELECT %s FROM players WHERE id IN (%s)", playerColumns, placeholders(len(unique)))
	rows, err := q.QueryContext(ctx, query, lo.ToAnySlice(unique)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]Player, len(unique))
	for rows.Next() {
		p, err := scanPlayer(rows, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}

	players := make([]Player, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrPlayerNotFound, id)
		}
		players = append(players, p)
	}
	return players, nil
}

// SeasonCarryOver is the info of the score change that opens a player's
// ledger in a new season with their rating from the previous ones.
const SeasonCarryOver = "Season carry-over"

// ApplyRatingChange appends a score change row and moves the cached ladder
// rating by the same delta, keeping ladder_mmr equal to the running sum of
// the season. The first change booked into a season is preceded by a
// carry-over of the current rating. It returns the id of the score change.
func ApplyRatingChange(ctx context.Context, q Querier, playerID int64, delta, season int, info string, matchID *string) (string, error) {
	if err := carryOver(ctx, q, playerID, season); err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err := q.ExecContext(ctx, `
		INSERT INTO score_changes (id, player_id, mmr_change, season, info, match_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, playerID, delta, season, info, matchID, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert score change: %w", err)
	}
	res, err := q.ExecContext(ctx, "UPDATE players SET ladder_mmr = ladder_mmr + ? WHERE id = ?", delta, playerID)
	if err != nil {
		return "", fmt.Errorf("failed to update ladder mmr: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("%w: id %d", ErrPlayerNotFound, playerID)
	}
	return id, nil
}

// carryOver opens the season ledger of a player who already holds a rating
// from earlier seasons.
func carryOver(ctx context.Context, q Querier, playerID int64, season int) error {
	var booked bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM score_changes WHERE player_id = ? AND season = ?)",
		playerID, season,
	).Scan(&booked)
	if err != nil {
		return fmt.Errorf("failed to check season ledger: %w", err)
	}
	if booked {
		return nil
	}
	var rating int
	err = q.QueryRowContext(ctx, "SELECT ladder_mmr FROM players WHERE id = ?", playerID).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", ErrPlayerNotFound, playerID)
	}
	if err != nil {
		return fmt.Errorf("failed to read ladder mmr: %w", err)
	}
	if rating == 0 {
		return nil
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO score_changes (id, player_id, mmr_change, season, info, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), playerID, rating, season, SeasonCarryOver, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to carry rating into season %d: %w", season, err)
	}
	log.Info("Carried rating into new season", "player", playerID, "season", season, "rating", rating)
	return nil
}

// SeasonRating sums a player's score changes for a season.
func SeasonRating(ctx context.Context, q Querier, playerID int64, season int) (int, error) {
	var total int
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(mmr_change), 0) FROM score_changes WHERE player_id = ? AND season = ?",
		playerID, season,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum score changes: %w", err)
	}
	return total, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
