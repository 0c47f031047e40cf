package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// ExperienceRouteInput is the input for the experience route workflow.
type ExperienceRouteInput struct {
	ExperienceID string
	// Trigger names what started the run, e.g. "saved" or "api".
	Trigger string
}

// RouteSummary is the outcome of routing one experience.
type RouteSummary struct {
	Routed          bool
	DistanceMeters  float64
	DurationSeconds float64
	Points          int
}

// WorkflowID is the per-experience workflow id, so a newer save supersedes an
// older run of the same experience.
func WorkflowID(experienceID string) string {
	return "experience-route-" + experienceID
}

// ExperienceRouteWorkflow resolves an experience's stops, routes them in order
// and records the route summary. Experiences with fewer than two stops, or
// for which the provider finds no route, complete without a summary.
func ExperienceRouteWorkflow(ctx workflow.Context, input ExperienceRouteInput) (RouteSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting experience route workflow", "experienceID", input.ExperienceID, "trigger", input.Trigger)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	var points []domain.GeoPoint
	if err := workflow.ExecuteActivity(ctx, "LoadWaypoints", input.ExperienceID).Get(ctx, &points); err != nil {
		return RouteSummary{}, err
	}
	if len(points) < 2 {
		logger.Info("Experience has fewer than two stops, nothing to route", "stops", len(points))
		return RouteSummary{}, nil
	}

	var summary RouteSummary
	err := workflow.ExecuteActivity(ctx, "ComputeRoute", points).Get(ctx, &summary)
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == ErrTypeNoRoute {
		logger.Warn("No route for experience", "experienceID", input.ExperienceID)
		return RouteSummary{}, nil
	}
	if err != nil {
		return RouteSummary{}, err
	}

	if err := workflow.ExecuteActivity(ctx, "RecordSummary", input.ExperienceID, summary).Get(ctx, nil); err != nil {
		return RouteSummary{}, err
	}

	logger.Info("Experience route recorded", "distanceMeters", summary.DistanceMeters)
	return summary, nil
}
