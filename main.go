package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/inngest/inngestgo"
	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/config"
	"github.com/mauv0809/inhouse-ladder/internal/database"
	server "github.com/mauv0809/inhouse-ladder/internal/http"
	"github.com/mauv0809/inhouse-ladder/internal/inngest"
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/notifier/slack"
	"github.com/mauv0809/inhouse-ladder/internal/processor"
	"github.com/mauv0809/inhouse-ladder/internal/pubsub"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()

	ladder := cfg.Ladder
	filter, err := roster.FilterByName(ladder.FilterPolicy)
	if err != nil {
		log.Fatalf("Invalid FILTER_POLICY: %s", err)
	}
	policy, err := match.PolicyByName(ladder.RatingPolicy, ladder.RatingK)
	if err != nil {
		log.Fatalf("Invalid RATING_POLICY: %s", err)
	}

	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()
	counters := metrics.New(db)
	pubsub := pubsub.New(cfg.ProjectID)
	engine := balance.New(balance.Options{
		TopK:       ladder.TopK,
		UseRoles:   ladder.UseRoles,
		RoleWeight: ladder.RoleWeight,
		TieEpsilon: ladder.TieEpsilon,
	})

	players := roster.NewStore(db, ladder.Season, filter)
	queues := queue.NewStore(db, engine, filter, pubsub, metricsSvc, queue.Config{
		VotekickThreshold: ladder.VotekickThreshold,
		UnderdogDiff:      ladder.UnderdogDiff,
	})
	matches := match.NewStore(db, ladder.Season, policy, engine, pubsub, metricsSvc)
	notifier := slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, ladder.WaitingTimeMins, metricsSvc)
	processor := processor.New(queues, matches, notifier, metricsSvc, counters, time.Duration(ladder.AFKAfterMins)*time.Minute)

	var inngestClient inngest.InngestClient
	if cfg.Inngest.Enabled() {
		dev := cfg.Inngest.SigningKey == ""
		options := inngestgo.ClientOpts{
			AppID:      cfg.Inngest.AppID,
			SigningKey: &cfg.Inngest.SigningKey,
			EventKey:   &cfg.Inngest.EventKey,
			Dev:        &dev,
		}
		inngestProvider, err := inngestgo.NewClient(options)
		if err != nil {
			log.Fatalf("Failed to initialize inngest: %s", err)
		}
		inngestClient = inngest.New(inngestProvider, processor)
	}

	s := server.NewServer(
		players,
		queues,
		matches,
		metricsSvc,
		counters,
		metricsHandler,
		cfg,
		notifier,
		processor,
		pubsub,
		inngestClient,
	)

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds(), "season", ladder.Season)

	// --- Graceful shutdown setup ---
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s.Handler(),
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine
	go func() {
		log.Info("Server started", "port", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
	}

	log.Info("Server process shutting down")
}
