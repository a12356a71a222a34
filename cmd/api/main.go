// Package main is the entry point for the TripWatch API server.
// Its sole responsibility is wiring dependencies together and starting the
// server. No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/hopoff/tripwatch/internal/config"
	"github.com/hopoff/tripwatch/internal/handler"
	"github.com/hopoff/tripwatch/internal/maps"
	"github.com/hopoff/tripwatch/internal/middleware"
	"github.com/hopoff/tripwatch/internal/notify"
	"github.com/hopoff/tripwatch/internal/repo"
	"github.com/hopoff/tripwatch/internal/service"
	"github.com/hopoff/tripwatch/internal/stream"
	"github.com/hopoff/tripwatch/migrations"
	"github.com/hopoff/tripwatch/spec"
)

// maxRequestBody caps incoming request bodies. Position ticks and trip
// plans are small; anything near this limit is abuse.
const maxRequestBody int64 = 1 << 20

func main() {
	// --- Config -----------------------------------------------------------
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// --- Services ---------------------------------------------------------
	trips := repo.NewTripRepo(pool)
	claims := repo.NewClaimRepo(pool)
	positions := repo.NewPositionRepo(pool)

	hub := service.NewEventHub()
	gate := service.NewNotificationGate(claims, logger)
	dispatcher := notify.NewClient()
	geo := maps.NewClient(cfg.MapsAPIKey)

	tracker := service.NewTracker(service.TrackerOpts{
		Trips:      trips,
		Positions:  positions,
		Gate:       gate,
		Dispatcher: dispatcher,
		Settings:   cfg.Settings,
		Hub:        hub,
		Log:        logger,
		SMSEcho:    cfg.SMSEcho,
	})

	// Pick up a trip that was tracking when the previous process died.
	if err := tracker.Resume(context.Background()); err != nil {
		slog.Error("failed to resume active trip", "error", err)
		os.Exit(1)
	}

	// --- Position stream --------------------------------------------------
	var subscriber *stream.Subscriber
	if cfg.MQTTBrokerURL != "" {
		subscriber = stream.NewSubscriber(cfg.MQTTBrokerURL, cfg.MQTTClientID, tracker, logger)
		if err := subscriber.Start(); err != nil {
			slog.Error("failed to connect to MQTT broker", "error", err)
			os.Exit(1)
		}
		slog.Info("MQTT position stream connected", "broker", cfg.MQTTBrokerURL)
	}

	// --- Router -----------------------------------------------------------
	// Middleware order: RequestID → RealIP → Logger → Recoverer, then CORS
	// and the body size cap.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(maxRequestBody))

	srv := handler.NewServer(tracker, positions, geo, hub)
	r.Mount("/", srv.Routes())

	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(spec.OpenAPI)
	})

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	// WriteTimeout stays at zero because the events websocket holds its
	// connection open indefinitely; per-write deadlines are set there.
	httpSrv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	if subscriber != nil {
		subscriber.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// runMigrations applies pending schema migrations from the embedded
// filesystem. goose needs a database/sql handle, not the pgx pool.
func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		return err
	}
	for _, res := range results {
		slog.Info("migration applied", "source", res.Source.Path)
	}
	return nil
}
