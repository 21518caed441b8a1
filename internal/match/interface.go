package match

import "context"

// MatchRecorder turns balanced queues or hand-picked teams into recorded
// matches and keeps the rating ledger.
type MatchRecorder interface {
	RecordFromQueue(ctx context.Context, queueID int64, winner int) (*Match, error)
	RecordManual(ctx context.Context, teamA, teamB []int64, winner int, dotaID string) (*Match, error)
	GetMatch(ctx context.Context, id string) (*Match, error)
	RecentMatches(ctx context.Context, playerID int64, limit int) ([]PlayedMatch, error)
	Report(ctx context.Context, params ReportParams) (*Report, error)
	// Reports lists what a player received, tips or reports, newest first.
	Reports(ctx context.Context, playerID int64, tips bool) ([]Report, error)

	RatingUpdater
}

// RatingUpdater covers manual rating changes and season statistics.
type RatingUpdater interface {
	// AdjustRating sets a player's ladder rating to newValue by booking the
	// difference as a score change in the current season.
	AdjustRating(ctx context.Context, playerID int64, newValue int, reason string) (*ScoreChange, error)
	History(ctx context.Context, playerID int64, season int) ([]Outcome, error)
	PlayerStreaks(ctx context.Context, playerID int64, season int) (Streaks, error)
	// RecomputeRating sums the ledger for a season.
	RecomputeRating(ctx context.Context, playerID int64, season int) (int, error)
	Season() int
}
