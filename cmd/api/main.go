package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/pinmap/internal/adapters/http"
	"github.com/samirrijal/pinmap/internal/adapters/mapbox"
	natsadapter "github.com/samirrijal/pinmap/internal/adapters/nats"
	"github.com/samirrijal/pinmap/internal/adapters/postgres"
	"github.com/samirrijal/pinmap/internal/adapters/valkey"
	"github.com/samirrijal/pinmap/internal/adapters/wordpress"
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/core/usecases"
	"github.com/samirrijal/pinmap/internal/pkg/config"
	"github.com/samirrijal/pinmap/internal/pkg/logging"
	"github.com/samirrijal/pinmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("pinmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", "pinmap-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	deps := &http.Dependencies{
		Logger: logger,
		DB:     db,
	}

	// Cache
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix); err != nil {
		slog.Warn("valkey unavailable, serving uncached", "error", err)
	} else {
		defer c.Close()
		cache = c
		deps.Cache = c
	}

	// NATS
	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer p.Close()
		publisher = p
		deps.Events = p
		deps.Broker = http.PingerFunc(func(context.Context) error { return p.Ping() })
	}

	// Upstreams
	pinSource := wordpress.NewPinSource(cfg.CMS.BaseURL, cfg.CMS.PerPage, cfg.CMS.Timeout, logger)
	if cfg.Mapbox.AccessToken == "" {
		slog.Warn("mapbox access token missing, directions disabled")
	} else {
		routing := mapbox.NewDirections(cfg.Mapbox.DirectionsURL, cfg.Mapbox.AccessToken, cfg.Mapbox.Timeout)
		deps.Directions = usecases.NewDirectionsService(routing, cache, cfg.Mapbox.DrivingProfile)
	}

	// Use cases
	deps.Pins = usecases.NewPinService(pinSource, cache)
	deps.Experiences = usecases.NewExperienceService(postgres.NewExperienceRepo(db), publisher)
	if deps.Directions != nil {
		deps.Itineraries = usecases.NewItineraryPlanner(deps.Experiences, deps.Pins, deps.Directions, cfg.Mapbox.ItineraryProfile)
	}

	deps.Sessions = http.SessionConfig{
		Options: usecases.SessionOptions{
			Style:            cfg.Mapbox.StyleURL,
			Icons:            domain.IconSet{ByCategory: cfg.Session.Icons, Default: cfg.Session.DefaultIcon},
			Strategy:         usecases.ReconcileStrategy(cfg.Session.ReconcileStrategy),
			DrivingProfile:   cfg.Mapbox.DrivingProfile,
			ItineraryProfile: cfg.Mapbox.ItineraryProfile,
			RouteTimeout:     cfg.Session.RouteTimeout,
			LocateTimeout:    cfg.Session.GeolocationTimeout,
			Logger:           logger,
		},
		MaxSessions: cfg.Session.MaxSessions,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Pinmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Owner-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	// Open map sockets and in-flight requests get up to 10s.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
