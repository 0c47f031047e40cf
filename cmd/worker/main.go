package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

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
	"github.com/samirrijal/pinmap/internal/workflows"
)

func main() {
	cfg, err := config.Load("pinmap-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", "pinmap-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Activities never publish; the worker is the consumer of those events.
	experiences := usecases.NewExperienceService(postgres.NewExperienceRepo(db), nil)

	// Routes computed here are cached under the same keys the API reads.
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix); err != nil {
		slog.Warn("valkey unavailable, routes will not be cached", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}
	pins := usecases.NewPinService(wordpress.NewPinSource(cfg.CMS.BaseURL, cfg.CMS.PerPage, cfg.CMS.Timeout, logger), cache)
	routing := usecases.NewDirectionsService(
		mapbox.NewDirections(cfg.Mapbox.DirectionsURL, cfg.Mapbox.AccessToken, cfg.Mapbox.Timeout),
		cache, cfg.Mapbox.ItineraryProfile,
	)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ExperienceRouteWorkflow)
	w.RegisterActivity(&workflows.ExperienceActivities{
		Planner:     usecases.NewItineraryPlanner(experiences, pins, routing, cfg.Mapbox.ItineraryProfile),
		Experiences: experiences,
	})

	// Event consumers
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeExperienceSaved(ctx, func(ctx context.Context, exp *domain.Experience) error {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:                       workflows.WorkflowID(exp.ID),
			TaskQueue:                cfg.Temporal.TaskQueue,
			WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			WorkflowExecutionTimeout: 5 * time.Minute,
		}, workflows.ExperienceRouteWorkflow, workflows.ExperienceRouteInput{
			ExperienceID: exp.ID,
			Trigger:      "experience.saved",
		})
		if err != nil {
			return err
		}
		slog.Debug("route workflow started", "experience_id", exp.ID, "run_id", run.GetRunID())
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe experiences: %v", err)
	}

	events := postgres.NewMapEventRepo(db)
	if err := sub.SubscribeMapEvents(ctx, events.Record); err != nil {
		log.Fatalf("subscribe map events: %v", err)
	}

	slog.Info("experience worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
	slog.Info("worker stopped")
}
