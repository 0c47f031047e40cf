package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

// Non-retryable failure types raised by the experience activities.
const (
	ErrTypeNotFound = "NotFound"
	ErrTypeNoRoute  = "NoRoute"
)

// ExperienceActivities holds the activity implementations for the experience
// route workflow.
type ExperienceActivities struct {
	Planner     *usecases.ItineraryPlanner
	Experiences *usecases.ExperienceService
}

// LoadWaypoints resolves the experience's stops to coordinates, in order.
func (a *ExperienceActivities) LoadWaypoints(ctx context.Context, experienceID string) ([]domain.GeoPoint, error) {
	waypoints, err := a.Planner.Waypoints(ctx, experienceID)
	if err != nil {
		return nil, classify(fmt.Errorf("load waypoints of %s: %w", experienceID, err))
	}
	activity.GetLogger(ctx).Info("waypoints loaded", "experienceID", experienceID, "count", len(waypoints))
	return waypoints, nil
}

// ComputeRoute routes through the waypoints. Fewer than two waypoints yield an
// empty summary.
func (a *ExperienceActivities) ComputeRoute(ctx context.Context, waypoints []domain.GeoPoint) (RouteSummary, error) {
	route, err := a.Planner.Route(ctx, waypoints)
	if err != nil {
		return RouteSummary{}, classify(fmt.Errorf("compute route: %w", err))
	}
	if route == nil {
		return RouteSummary{}, nil
	}
	return RouteSummary{
		Routed:          true,
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
		Points:          len(route.Geometry.Coordinates),
	}, nil
}

// RecordSummary stores the route length and duration on the experience.
func (a *ExperienceActivities) RecordSummary(ctx context.Context, experienceID string, summary RouteSummary) error {
	if err := a.Experiences.RecordRouteSummary(ctx, experienceID, summary.DistanceMeters, summary.DurationSeconds); err != nil {
		return classify(err)
	}
	return nil
}

// classify marks permanent domain failures as non-retryable.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidArgument):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNotFound, err)
	case errors.Is(err, domain.ErrNoRoute):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNoRoute, err)
	}
	return err
}
