package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/fable/cliparse"
	"github.com/danielhkuo/fable/db"
	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/events"
	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/notify"
	"github.com/danielhkuo/fable/policy"
	"github.com/danielhkuo/fable/polls"
	"github.com/danielhkuo/fable/router"
	"github.com/danielhkuo/fable/tracking"
	"github.com/danielhkuo/fable/watcher"
)

const metadataStatsInterval = time.Hour

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	logger := slog.Default()

	dbConn, err := sql.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "driver", cfg.DatabaseType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the lifecycle components
	eng := engine.New(dbConn, cfg.DatabaseType)
	tracker := tracking.New(dbConn, cfg.DatabaseType)
	meta := metadata.NewClient(cfg.MetadataAPIURL, cfg.MetadataAPIKey, logger)
	pol := policy.NewDefault(dbConn, nil)

	var announcer notify.Announcer
	if cfg.GatewayAPIURL != "" {
		announcer = notify.NewGateway(cfg.GatewayAPIURL, logger)
	} else {
		slog.Warn("No gateway API configured, announcements go to the log only")
		announcer = notify.NewLog(logger)
	}

	selection := polls.NewSelection(dbConn, eng, announcer, meta, pol, logger)
	rating := polls.NewRating(dbConn, eng, announcer, meta, pol, logger, cfg.RatingWindow)

	// Background loops
	go watcher.NewDeadline(dbConn, eng, rating, logger, cfg.DeadlineInterval).Run(ctx)
	go watcher.NewSelectionPolls(selection, logger, cfg.PollInterval).Run(ctx)
	go meta.LogStatsLoop(ctx, metadataStatsInterval)

	if cfg.GatewayFeedURL != "" {
		dispatcher := events.NewDispatcher(selection, rating, logger)
		go events.NewConsumer(cfg.GatewayFeedURL, dispatcher, logger).Run(ctx)
	} else {
		slog.Warn("No gateway feed configured, poll votes will not be consumed")
	}

	mux := router.NewRouter(eng, selection, rating, tracker, meta, pol, cfg)

	server := http.Server{
		Handler: mux,
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		cancel()
		server.Close()
	}()

	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
