//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	handler "github.com/samirrijal/pinmap/internal/adapters/http"
	"github.com/samirrijal/pinmap/internal/adapters/postgres"
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
	"github.com/samirrijal/pinmap/internal/pkg/config"
)

// setupTestDB connects to the database configured through PINMAP_DATABASE_*.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("pinmap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// setupTestDeps wires real experience storage behind stubbed CMS and routing.
func setupTestDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	pins := usecases.NewPinService(defaultSource(), nil)
	routing := straightRoute()
	experiences := usecases.NewExperienceService(postgres.NewExperienceRepo(db), nil)
	return &handler.Dependencies{
		Pins:        pins,
		Directions:  usecases.NewDirectionsService(routing, nil, ""),
		Experiences: experiences,
		Itineraries: usecases.NewItineraryPlanner(experiences, pins, routing, ""),
		DB:          db,
	}
}

func TestIntegration_ExperienceRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))
	owner := "it-" + uuid.NewString()

	exp := createExperience(t, app, owner, `{"name":"Integration walk","stops":["1","2"]}`)
	t.Cleanup(func() { _ = postgres.NewExperienceRepo(db).Delete(context.Background(), exp.ID) })

	status, body := doJSON(t, app, "POST", "/v1/experiences/"+exp.ID+"/stops", owner, `{"pin_id":"3"}`)
	if status != 200 {
		t.Fatalf("add stop: expected 200, got %d: %s", status, body)
	}

	status, body = doJSON(t, app, "GET", "/v1/experiences/"+exp.ID+"/route", owner, "")
	if status != 200 {
		t.Fatalf("route: expected 200, got %d: %s", status, body)
	}

	status, body = doJSON(t, app, "GET", "/v1/experiences", owner, "")
	if status != 200 {
		t.Fatalf("list: expected 200, got %d", status)
	}
	var list []domain.Experience
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one experience, got %d", len(list))
	}
	got := list[0]
	if len(got.Stops) != 3 || got.Stops[2] != "3" {
		t.Errorf("stops not persisted in order: %v", got.Stops)
	}
	if got.DistanceMeters == nil || *got.DistanceMeters != 850 {
		t.Errorf("route summary not persisted: %v", got.DistanceMeters)
	}
}

func TestIntegration_Ready(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))

	if status, body := doJSON(t, app, "GET", "/v1/ready", "", ""); status != 200 {
		t.Errorf("expected ready, got %d: %s", status, body)
	}
}
