package roster

import "context"

// PlayerRoster owns player identity, rating cache, role preferences and
// moderation flags.
type PlayerRoster interface {
	Register(ctx context.Context, params RegisterParams) (*Player, error)
	Get(ctx context.Context, id int64) (*Player, error)
	GetMany(ctx context.Context, ids []int64) ([]Player, error)
	GetByDiscordID(ctx context.Context, discordID string) (*Player, error)
	// Resolve finds a player by chat mention or by name, trying exact, prefix
	// and substring matches in that order.
	Resolve(ctx context.Context, query string) (*Player, error)
	List(ctx context.Context) ([]Player, error)

	SetRoles(ctx context.Context, id int64, roles Roles) (*Player, error)
	SetRole(ctx context.Context, id int64, role string, value int) (*Player, error)
	Vouch(ctx context.Context, id int64) error
	Ban(ctx context.Context, id int64, status BanStatus) error
	Unban(ctx context.Context, id int64) error
	Rename(ctx context.Context, id int64, name string) error
	SetDotaID(ctx context.Context, id int64, dotaID string) error

	// Leaderboard ranks the players who played in season by wins minus
	// losses, then by ladder rating. bottom returns the tail of the ranking.
	Leaderboard(ctx context.Context, season, limit int, bottom bool) ([]Standing, error)
}
