package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

func newPlanner(t *testing.T, routing *mockRouting) (*usecases.ItineraryPlanner, *usecases.ExperienceService) {
	t.Helper()
	byID := map[string]domain.GeoPoint{"a": jemaa, "b": bahia, "c": majorel}
	source := &mockPinSource{getPinFn: func(ctx context.Context, id string) (*domain.Pin, error) {
		p, ok := byID[id]
		if !ok {
			return nil, domain.ErrNotFound
		}
		return &domain.Pin{ID: id, Location: p}, nil
	}}
	experiences := usecases.NewExperienceService(newMemExperienceRepo(), nil)
	planner := usecases.NewItineraryPlanner(experiences, usecases.NewPinService(source, nil), routing, "")
	return planner, experiences
}

func TestItineraryPlanner_PlanRecordsSummary(t *testing.T) {
	routing := &mockRouting{directionFn: func(ctx context.Context, req domain.DirectionsRequest) (*domain.DirectionsResult, error) {
		return routeResult(req.Waypoints...), nil
	}}
	planner, experiences := newPlanner(t, routing)

	exp, err := experiences.Create(context.Background(), "user-1", "Medina", []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}

	route, err := planner.Plan(context.Background(), exp.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route == nil || len(route.Geometry.Coordinates) != 3 {
		t.Fatalf("expected a 3-point route, got %+v", route)
	}
	if routing.calls[0].Profile != "walking" {
		t.Errorf("expected walking profile, got %q", routing.calls[0].Profile)
	}
	if got := routing.calls[0].Waypoints; got[0] != jemaa || got[2] != majorel {
		t.Errorf("waypoints out of order: %v", got)
	}

	stored, _ := experiences.Get(context.Background(), exp.ID)
	if stored.DistanceMeters == nil || *stored.DistanceMeters != 1200 {
		t.Errorf("expected recorded distance, got %+v", stored.DistanceMeters)
	}
}

func TestItineraryPlanner_SingleStopIsNotRouted(t *testing.T) {
	routing := &mockRouting{}
	planner, experiences := newPlanner(t, routing)
	exp, _ := experiences.Create(context.Background(), "user-1", "Solo", []string{"a"})

	route, err := planner.Plan(context.Background(), exp.ID)
	if err != nil || route != nil {
		t.Fatalf("expected nil route without error, got %+v, %v", route, err)
	}
	if routing.callCount() != 0 {
		t.Error("routing must not be called for a single stop")
	}
}

func TestItineraryPlanner_Errors(t *testing.T) {
	routing := &mockRouting{directionFn: func(ctx context.Context, req domain.DirectionsRequest) (*domain.DirectionsResult, error) {
		return &domain.DirectionsResult{}, nil
	}}
	planner, experiences := newPlanner(t, routing)

	if _, err := planner.Plan(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown experience, got %v", err)
	}

	exp, _ := experiences.Create(context.Background(), "user-1", "Ghost", []string{"a", "zzz"})
	if _, err := planner.Plan(context.Background(), exp.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown stop, got %v", err)
	}

	exp, _ = experiences.Create(context.Background(), "user-1", "Empty", []string{"a", "b"})
	if _, err := planner.Plan(context.Background(), exp.ID); !errors.Is(err, domain.ErrNoRoute) {
		t.Errorf("expected ErrNoRoute, got %v", err)
	}
}
