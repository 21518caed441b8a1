package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/database"
	"github.com/samber/lo"
)

// store handles player database operations.
type store struct {
	db     *sql.DB
	mu     sync.RWMutex
	season int
	filter FilterPolicy
}

// NewStore creates a PlayerRoster. season is the season initial ratings are
// booked against; a nil filter uses LadderFilter.
func NewStore(db *sql.DB, season int, filter FilterPolicy) PlayerRoster {
	if filter == nil {
		filter = LadderFilter
	}
	return &store{
		db:     db,
		season: season,
		filter: filter,
	}
}

func (s *store) Register(ctx context.Context, params RegisterParams) (*Player, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if params.DotaMMR < 0 || params.DotaMMR >= MaxRegisterMMR {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMMR, params.DotaMMR)
	}
	if strings.TrimSpace(params.DotaID) == "" {
		return nil, ErrMissingDotaID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var discordID *string
	if params.DiscordID != "" {
		discordID = &params.DiscordID
	}
	roles := DefaultRoles()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO players (discord_id, name, name_key, dota_id, dota_mmr, ladder_mmr,
			role_carry, role_mid, role_offlane, role_pos4, role_pos5, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		discordID, name, NameKey(name), params.DotaID, params.DotaMMR,
		roles.Carry, roles.Mid, roles.Offlane, roles.Pos4, roles.Pos5, time.Now().Unix(),
	)
	if err != nil {
		if database.IsConstraint(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to insert player: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read player id: %w", err)
	}
	if _, err := ApplyRatingChange(ctx, tx, id, params.DotaMMR, s.season, "Initial rating", nil); err != nil {
		return nil, err
	}
	players, err := Load(ctx, tx, s.filter, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	log.Info("Registered player", "id", id, "name", name, "mmr", params.DotaMMR)
	return &players[0], nil
}

func (s *store) Get(ctx context.Context, id int64) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players, err := Load(ctx, s.db, s.filter, id)
	if err != nil {
		return nil, err
	}
	return &players[0], nil
}

func (s *store) GetMany(ctx context.Context, ids []int64) ([]Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Load(ctx, s.db, s.filter, ids...)
}

func (s *store) GetByDiscordID(ctx context.Context, discordID string) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+playerColumns+" FROM players WHERE discord_id = ?", discordID)
	p, err := scanPlayer(row, s.filter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: discord id %s", ErrPlayerNotFound, discordID)
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}

func (s *store) Resolve(ctx context.Context, query string) (*Player, error) {
	if id, ok := ParseMention(query); ok {
		return s.GetByDiscordID(ctx, id)
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrPlayerNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Every strategy is a refinement of substring, so narrow in SQL first.
	// SQLite only folds ASCII, so match against the stored Go-folded key.
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+playerColumns+" FROM players WHERE instr(name_key, ?) > 0 ORDER BY name_key, id",
		NameKey(q),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search players: %w", err)
	}
	defer rows.Close()

	var candidates []Player
	for rows.Next() {
		p, err := scanPlayer(rows, s.filter)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}

	names := lo.Map(candidates, func(p Player, _ int) string { return p.Name })
	idx, ok := ResolveName(names, q)
	if !ok {
		log.Debug("No player matched query", "query", q)
		return nil, fmt.Errorf("%w: %q", ErrPlayerNotFound, q)
	}
	return &candidates[idx], nil
}

func (s *store) List(ctx context.Context) ([]Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+playerColumns+" FROM players ORDER BY ladder_mmr DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		p, err := scanPlayer(rows, s.filter)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *store) SetRoles(ctx context.Context, id int64, roles Roles) (*Player, error) {
	if err := roles.Validate(); err != nil {
		return nil, err
	}
	err := s.update(ctx, id, `UPDATE players SET role_carry = ?, role_mid = ?, role_offlane = ?, role_pos4 = ?, role_pos5 = ? WHERE id = ?`,
		roles.Carry, roles.Mid, roles.Offlane, roles.Pos4, roles.Pos5, id)
	if err != nil {
		return nil, err
	}
	log.Info("Updated player roles", "id", id, "roles", roles)
	return s.Get(ctx, id)
}

func (s *store) SetRole(ctx context.Context, id int64, role string, value int) (*Player, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	roles, err := ApplyRole(p.Roles, role, value)
	if err != nil {
		return nil, err
	}
	return s.SetRoles(ctx, id, roles)
}

func (s *store) Vouch(ctx context.Context, id int64) error {
	if err := s.update(ctx, id, "UPDATE players SET vouched = 1 WHERE id = ?", id); err != nil {
		return err
	}
	log.Info("Player vouched", "id", id)
	return nil
}

func (s *store) Ban(ctx context.Context, id int64, status BanStatus) error {
	if !status.Valid() || status == BanNone {
		return fmt.Errorf("%w: %q", ErrInvalidBanStatus, status)
	}
	if err := s.update(ctx, id, "UPDATE players SET banned = ? WHERE id = ?", string(status), id); err != nil {
		return err
	}
	log.Info("Player banned", "id", id, "status", status)
	return nil
}

func (s *store) Unban(ctx context.Context, id int64) error {
	if err := s.update(ctx, id, "UPDATE players SET banned = ? WHERE id = ?", string(BanNone), id); err != nil {
		return err
	}
	log.Info("Player unbanned", "id", id)
	return nil
}

func (s *store) Rename(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	err := s.update(ctx, id, "UPDATE players SET name = ?, name_key = ? WHERE id = ?", name, NameKey(name), id)
	if database.IsConstraint(err) {
		return ErrNameTaken
	}
	return err
}

func (s *store) SetDotaID(ctx context.Context, id int64, dotaID string) error {
	err := s.update(ctx, id, "UPDATE players SET dota_id = ? WHERE id = ?", dotaID, id)
	if database.IsConstraint(err) {
		return ErrAlreadyRegistered
	}
	return err
}

// update runs a single-row UPDATE and maps "no rows" to ErrPlayerNotFound.
func (s *store) update(ctx context.Context, id int64, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update player %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrPlayerNotFound, id)
	}
	return nil
}

func (s *store) Leaderboard(ctx context.Context, season, limit int, bottom bool) ([]Standing, error) {
	if limit < 1 || limit > MaxLeaderboardLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	order := "ASC"
	if bottom {
		order = "DESC"
	}
	cols := "p." + strings.ReplaceAll(strings.Join(strings.Fields(playerColumns), " "), ", ", ", p.")
	query := fmt.Sprintf(`
		WITH stats AS (
			SELECT mp.player_id,
				SUM(CASE WHEN mp.team = m.winner THEN 1 ELSE 0 END) AS wins,
				SUM(CASE WHEN mp.team != m.winner THEN 1 ELSE 0 END) AS losses
			FROM match_players mp
			JOIN matches m ON m.id = mp.match_id
			WHERE m.season = ?
			GROUP BY mp.player_id
		)
		SELECT %s, s.wins, s.losses,
			ROW_NUMBER() OVER (ORDER BY s.wins - s.losses DESC, p.ladder_mmr DESC, p.id ASC) AS pos
		FROM players p
		JOIN stats s ON s.player_id = p.id
		ORDER BY pos %s
		LIMIT ?`, cols, order)

	rows, err := s.db.QueryContext(ctx, query, season, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var standings []Standing
	for rows.Next() {
		var st Standing
		p, err := scanPlayer(rows, s.filter, &st.Wins, &st.Losses, &st.Rank)
		if err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		st.Player = p
		st.Score = st.Wins - st.Losses
		standings = append(standings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard: %w", err)
	}
	if bottom {
		standings = lo.Reverse(standings)
	}
	return standings, nil
}
