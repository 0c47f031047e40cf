package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// ItineraryPlanner routes saved experiences outside of any map session.
type ItineraryPlanner struct {
	experiences *ExperienceService
	pins        *PinService
	routing     ports.RoutingService
	profile     string
}

// NewItineraryPlanner creates a planner routing with profile (default "walking").
func NewItineraryPlanner(experiences *ExperienceService, pins *PinService, routing ports.RoutingService, profile string) *ItineraryPlanner {
	if profile == "" {
		profile = "walking"
	}
	return &ItineraryPlanner{experiences: experiences, pins: pins, routing: routing, profile: profile}
}

// Waypoints resolves the experience's stops to coordinates, in visiting order.
func (p *ItineraryPlanner) Waypoints(ctx context.Context, experienceID string) ([]domain.GeoPoint, error) {
	exp, err := p.experiences.Get(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	pins, err := p.pins.Resolve(ctx, exp.Stops, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.GeoPoint, len(pins))
	for i, pin := range pins {
		out[i] = pin.Location
	}
	return out, nil
}

// Route computes the route through waypoints. Fewer than two waypoints yield
// a nil route and no error.
func (p *ItineraryPlanner) Route(ctx context.Context, waypoints []domain.GeoPoint) (*domain.RouteCandidate, error) {
	if len(waypoints) < 2 {
		return nil, nil
	}
	res, err := p.routing.Directions(ctx, domain.DirectionsRequest{Profile: p.profile, Waypoints: waypoints})
	if err != nil {
		return nil, err
	}
	return firstDrawable(res)
}

// Plan resolves, routes and stores the summary of one experience.
func (p *ItineraryPlanner) Plan(ctx context.Context, experienceID string) (*domain.RouteCandidate, error) {
	waypoints, err := p.Waypoints(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	route, err := p.Route(ctx, waypoints)
	if err != nil {
		return nil, fmt.Errorf("route experience %s: %w", experienceID, err)
	}
	if route == nil {
		return nil, nil
	}
	if err := p.experiences.RecordRouteSummary(ctx, experienceID, route.DistanceMeters, route.DurationSeconds); err != nil {
		return nil, err
	}
	return route, nil
}
