package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/config"
	"github.com/mauv0809/inhouse-ladder/internal/database"
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	dbName     string
	numPlayers int
	numMatches int
	meanMMR    float64
	spreadMMR  float64
	channel    string
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Seed the ladder database with vouched players, a channel and optional match history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return seed(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&dbName, "db", "", "Local database file, defaults to DB_NAME")
	rootCmd.Flags().IntVar(&numPlayers, "players", 20, "Number of players to register")
	rootCmd.Flags().IntVar(&numMatches, "matches", 0, "Number of random matches to record")
	rootCmd.Flags().Float64Var(&meanMMR, "mean", 3500, "Mean of the generated ratings")
	rootCmd.Flags().Float64Var(&spreadMMR, "spread", 800, "Standard deviation of the generated ratings")
	rootCmd.Flags().StringVar(&channel, "channel", "main", "Name of the default channel")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context) error {
	log.Info("Starting database seeder...")
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}
	if dbName == "" {
		dbName = os.Getenv("DB_NAME")
	}
	ladder := config.LoadLadder()

	db, teardown, err := database.InitDB(dbName, os.Getenv("TURSO_PRIMARY_URL"), os.Getenv("TURSO_AUTH_TOKEN"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer teardown()

	engine := balance.New(balance.Options{TopK: 1})
	events := pubsub.New("")
	counters := metrics.NewMock()
	players := roster.NewStore(db, ladder.Season, nil)
	queues := queue.NewStore(db, engine, nil, events, counters, queue.Config{})
	matches := match.NewStore(db, ladder.Season, match.FlatDelta(ladder.RatingK), engine, events, counters)

	if _, err := queues.CreateChannel(ctx, queue.Channel{Name: channel, Active: true}); err != nil {
		log.Warn("Channel not created", "name", channel, "error", err)
	}

	startTime := time.Now()
	ids := make([]int64, 0, numPlayers)
	for i := range numPlayers {
		mmr := int(rand.NormFloat64()*spreadMMR + meanMMR)
		mmr = min(max(mmr, 1), roster.MaxRegisterMMR-1)
		p, err := players.Register(ctx, roster.RegisterParams{
			Name:    fmt.Sprintf("Seeder Player %02d", i+1),
			DotaMMR: mmr,
			DotaID:  uuid.NewString()[:8],
		})
		if err != nil {
			return fmt.Errorf("failed to register player %d: %w", i+1, err)
		}
		if err := players.Vouch(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to vouch player %d: %w", p.ID, err)
		}
		ids = append(ids, p.ID)
	}
	log.Info("Registered players", "count", len(ids), "duration", time.Since(startTime))

	if numMatches > 0 && len(ids) < balance.QueueSize {
		return fmt.Errorf("need at least %d players to record matches, have %d", balance.QueueSize, len(ids))
	}
	for i := range numMatches {
		picked := lo.Samples(ids, balance.QueueSize)
		m, err := matches.RecordManual(ctx, picked[:5], picked[5:], rand.IntN(2), "")
		if err != nil {
			return fmt.Errorf("failed to record match %d: %w", i+1, err)
		}
		log.Debug("Recorded match", "id", m.ID, "winner", m.Winner)
	}

	log.Info("Seeding finished", "players", len(ids), "matches", numMatches, "duration", time.Since(startTime))
	return nil
}
