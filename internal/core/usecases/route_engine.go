package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

const (
	routeSourceID = "route"
	routeLayerID  = "route"

	// RouteFailedMessage is shown once per failed route request.
	RouteFailedMessage = "Sorry, could not calculate the route."
)

// RouteEngineOptions configures a RouteEngine.
type RouteEngineOptions struct {
	Profile string
	Timeout time.Duration
	Padding *domain.Padding
	Logger  *slog.Logger
}

// RouteEngine requests routes and keeps the single route overlay in sync with
// the most recently issued request.
type RouteEngine struct {
	viewport *ViewportController
	routing  ports.RoutingService
	notifier ports.Notifier
	opts     RouteEngineOptions
	logger   *slog.Logger

	seq atomic.Uint64

	mu   sync.Mutex
	last *domain.RouteCandidate
}

// NewRouteEngine creates a RouteEngine drawing through viewport.
func NewRouteEngine(viewport *ViewportController, routing ports.RoutingService, notifier ports.Notifier, opts RouteEngineOptions) *RouteEngine {
	if opts.Profile == "" {
		opts.Profile = "driving-traffic"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Padding == nil {
		p := domain.RoutePadding
		opts.Padding = &p
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteEngine{
		viewport: viewport,
		routing:  routing,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// Draw routes waypoints with the default profile.
func (e *RouteEngine) Draw(ctx context.Context, waypoints []domain.GeoPoint) (*domain.RouteCandidate, error) {
	return e.DrawWithProfile(ctx, e.opts.Profile, waypoints)
}

// DrawWithProfile requests a route through waypoints and draws it. Fewer than
// two waypoints clears the overlay. A response that arrives after a newer
// request was issued is discarded with domain.ErrStaleRoute.
func (e *RouteEngine) DrawWithProfile(ctx context.Context, profile string, waypoints []domain.GeoPoint) (*domain.RouteCandidate, error) {
	if !e.viewport.Ready() {
		return nil, domain.ErrNotReady
	}
	if err := e.viewport.Mutate(ensureRouteLayer); err != nil {
		return nil, fmt.Errorf("prepare route layer: %w", err)
	}

	seq := e.seq.Add(1)

	if len(waypoints) < 2 {
		if err := e.commit(seq, emptyRoute(), nil); err != nil {
			return nil, err
		}
		e.setLast(nil)
		metrics.RouteRequests.WithLabelValues("cleared").Inc()
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	start := time.Now()
	res, err := e.routing.Directions(callCtx, domain.DirectionsRequest{Profile: profile, Waypoints: waypoints})
	cancel()
	metrics.DirectionsDuration.WithLabelValues(profile).Observe(time.Since(start).Seconds())

	if seq != e.seq.Load() {
		metrics.RouteRequests.WithLabelValues("stale").Inc()
		e.logger.Debug("discarding superseded route response", "seq", seq)
		return nil, domain.ErrStaleRoute
	}

	var route *domain.RouteCandidate
	if err == nil {
		route, err = firstDrawable(res)
	}
	if err != nil {
		return nil, e.fail(ctx, err)
	}

	feature := geojson.NewFeature(route.Geometry.Orb())
	feature.Properties["distance"] = route.DistanceMeters
	feature.Properties["duration"] = route.DurationSeconds
	bounds := route.Geometry.Bounds()
	if err := e.commit(seq, feature, &bounds); err != nil {
		return nil, err
	}
	e.setLast(route)
	metrics.RouteRequests.WithLabelValues("drawn").Inc()
	return route, nil
}

// Clear removes the drawn route and supersedes any in-flight request.
func (e *RouteEngine) Clear(ctx context.Context) error {
	_, err := e.Draw(ctx, nil)
	return err
}

// commit writes data to the route source and frames bounds, if any, unless
// seq has been superseded. The check, the write and the fit share one
// viewport critical section.
func (e *RouteEngine) commit(seq uint64, data *geojson.Feature, bounds *domain.Bounds) error {
	err := e.viewport.Mutate(func(r ports.Renderer) error {
		if seq != e.seq.Load() {
			return domain.ErrStaleRoute
		}
		if err := r.SetSourceData(routeSourceID, data); err != nil {
			return err
		}
		if bounds != nil {
			if err := e.viewport.fitLocked(*bounds, *e.opts.Padding); err != nil {
				e.logger.Warn("fit route bounds", "error", err)
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrStaleRoute) {
		metrics.RouteRequests.WithLabelValues("stale").Inc()
		return err
	}
	if err != nil {
		return fmt.Errorf("update route source: %w", err)
	}
	return nil
}

func (e *RouteEngine) fail(ctx context.Context, err error) error {
	metrics.RouteRequests.WithLabelValues("failed").Inc()
	e.logger.Warn("route request failed", "error", err)
	if ctx.Err() == nil && e.notifier != nil {
		e.notifier.Notify(ctx, domain.Notice{Level: domain.NoticeError, Message: RouteFailedMessage})
	}
	if errors.Is(err, domain.ErrNoRoute) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrNoRoute, err)
}

func (e *RouteEngine) setLast(route *domain.RouteCandidate) {
	e.mu.Lock()
	e.last = route
	e.mu.Unlock()
}

// Current returns the route on display, or nil.
func (e *RouteEngine) Current() *domain.RouteCandidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func firstDrawable(res *domain.DirectionsResult) (*domain.RouteCandidate, error) {
	if res == nil || len(res.Routes) == 0 {
		return nil, domain.ErrNoRoute
	}
	route := res.Routes[0]
	if !route.Geometry.Drawable() {
		return nil, fmt.Errorf("%w: route geometry has fewer than two valid points", domain.ErrNoRoute)
	}
	return &route, nil
}

func ensureRouteLayer(r ports.Renderer) error {
	if !r.HasSource(routeSourceID) {
		if err := r.AddSource(routeSourceID, ports.SourceSpec{Type: "geojson", Data: emptyRoute()}); err != nil {
			return err
		}
	}
	if r.HasLayer(routeLayerID) {
		return nil
	}
	return r.AddLayer(ports.LayerSpec{
		ID:     routeLayerID,
		Type:   "line",
		Source: routeSourceID,
		Layout: map[string]any{
			"line-join": "round",
			"line-cap":  "round",
		},
		Paint: map[string]any{
			"line-color":   "#EFBF04",
			"line-width":   5,
			"line-opacity": 0.75,
		},
	})
}

func emptyRoute() *geojson.Feature {
	return geojson.NewFeature(orb.LineString{})
}
