package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// SessionDeps are the collaborators of a MapSession.
type SessionDeps struct {
	Renderers   ports.RendererFactory
	Routing     ports.RoutingService
	Locator     ports.Geolocator
	Notifier    ports.Notifier
	Pins        *PinService
	Experiences *ExperienceService
	Events      ports.EventPublisher
}

// SessionOptions configures a MapSession.
type SessionOptions struct {
	Style            string
	Icons            domain.IconSet
	Strategy         ReconcileStrategy
	DrivingProfile   string
	ItineraryProfile string
	RouteTimeout     time.Duration
	LocateTimeout    time.Duration

	// OnPinClick receives the clicked pin's content.
	OnPinClick func(domain.Pin)
	// OnAnimationEnd fires when a city or world transition settles.
	OnAnimationEnd func()
	OnReady        func(*ViewportController)
	Logger         *slog.Logger
}

// MapSession composes the viewport, markers, route engine and location probe
// serving one connected map.
type MapSession struct {
	ID       string
	Viewport *ViewportController
	Markers  *MarkerReconciler
	Routes   *RouteEngine
	Location *LocationProbe

	deps   SessionDeps
	opts   SessionOptions
	logger *slog.Logger

	mu      sync.Mutex
	city    *domain.City
	all     []domain.Pin
	filters []string

	// selection counts SelectCity calls; applyMu orders pin application
	// against it so only the latest selection's pins are shown.
	selection atomic.Uint64
	applyMu   sync.Mutex
}

// NewMapSession wires a session. Nothing is rendered until Start.
func NewMapSession(deps SessionDeps, opts SessionOptions) *MapSession {
	if opts.DrivingProfile == "" {
		opts.DrivingProfile = "driving-traffic"
	}
	if opts.ItineraryProfile == "" {
		opts.ItineraryProfile = "walking"
	}
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)

	s := &MapSession{ID: id, deps: deps, opts: opts, logger: logger}
	s.Viewport = NewViewportController(deps.Renderers, ViewportOptions{
		Style:   opts.Style,
		OnReady: opts.OnReady,
		Logger:  logger,
	})
	s.Markers = NewMarkerReconciler(s.Viewport, MarkerOptions{
		Icons:    opts.Icons,
		Strategy: opts.Strategy,
		OnClick:  s.handlePinClick,
		Logger:   logger,
	})
	s.Routes = NewRouteEngine(s.Viewport, deps.Routing, deps.Notifier, RouteEngineOptions{
		Profile: opts.DrivingProfile,
		Timeout: opts.RouteTimeout,
		Logger:  logger,
	})
	s.Location = NewLocationProbe(s.Viewport, deps.Locator, deps.Notifier, LocationProbeOptions{
		Timeout: opts.LocateTimeout,
		Logger:  logger,
	})
	return s
}

// Start creates the renderer.
func (s *MapSession) Start(ctx context.Context) error {
	if err := s.Viewport.Init(ctx); err != nil {
		return err
	}
	s.publish(ctx, domain.MapEvent{Type: domain.EventSessionStarted})
	return nil
}

// SelectCity flies to the city and loads its pins. An empty key returns to the world view.
// When a newer selection starts before the pins arrive, the result is dropped
// and domain.ErrStaleSelection is returned.
func (s *MapSession) SelectCity(ctx context.Context, key string) error {
	seq := s.selection.Add(1)
	if key == "" {
		s.mu.Lock()
		s.city = nil
		s.mu.Unlock()
		if err := s.Viewport.FlyTo(nil, s.opts.OnAnimationEnd); err != nil {
			return err
		}
		return s.applySelection(seq, nil)
	}

	city, ok := domain.LookupCity(key)
	if !ok {
		return fmt.Errorf("city %q: %w", key, domain.ErrNotFound)
	}
	s.mu.Lock()
	s.city = &city
	s.mu.Unlock()

	if err := s.Viewport.FlyTo(&city, s.opts.OnAnimationEnd); err != nil {
		return err
	}
	if s.deps.Pins == nil {
		return nil
	}
	pins, err := s.deps.Pins.CityPins(ctx, city.Key)
	if err != nil {
		return err
	}
	return s.applySelection(seq, pins)
}

func (s *MapSession) applySelection(seq uint64, pins []domain.Pin) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if seq != s.selection.Load() {
		s.logger.Debug("dropping pins of superseded city selection")
		return domain.ErrStaleSelection
	}
	return s.SetPins(pins)
}

// SetPins replaces the pin collection and clears any active filter.
func (s *MapSession) SetPins(pins []domain.Pin) error {
	pins = ValidPins(pins)
	s.mu.Lock()
	s.all = pins
	s.filters = nil
	s.mu.Unlock()
	return s.Markers.Reconcile(pins)
}

// FilterPins shows only pins in the named sub-categories. No names shows every pin.
func (s *MapSession) FilterPins(ctx context.Context, names []string) error {
	s.mu.Lock()
	all := s.all
	s.filters = append([]string(nil), names...)
	s.mu.Unlock()

	shown := all
	if len(names) > 0 {
		if s.deps.Pins == nil {
			return fmt.Errorf("filtering requires a pin source")
		}
		var err error
		if shown, err = s.deps.Pins.Filter(ctx, all, names); err != nil {
			return err
		}
	}
	return s.Markers.Reconcile(shown)
}

// GoToUserLocation flies to the user's position and marks it.
func (s *MapSession) GoToUserLocation(ctx context.Context) error {
	_, err := s.Location.GoToUserLocation(ctx)
	return err
}

// FocusPin frames a single pin closely.
func (s *MapSession) FocusPin(ctx context.Context, pinID string) error {
	pin, err := s.pin(ctx, pinID)
	if err != nil {
		return err
	}
	return s.Viewport.FlyToPose(s.Viewport.Mode(), domain.FocusPose(pin.Location), nil)
}

// DirectionsToPin routes from the user's position to a pin.
func (s *MapSession) DirectionsToPin(ctx context.Context, pinID string) (*domain.RouteCandidate, error) {
	if !s.Viewport.Ready() {
		return nil, domain.ErrNotReady
	}
	pin, err := s.pin(ctx, pinID)
	if err != nil {
		return nil, err
	}
	from, err := s.Location.Locate(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Location.PlaceMarker(from); err != nil {
		s.logger.Warn("place user marker", "error", err)
	}
	route, err := s.Routes.DrawWithProfile(ctx, s.opts.DrivingProfile, []domain.GeoPoint{from, pin.Location})
	s.publishRoute(ctx, pin.ID, 2, route, err)
	return route, err
}

// ViewItinerary routes through the given pins in order.
func (s *MapSession) ViewItinerary(ctx context.Context, pinIDs []string) (*domain.RouteCandidate, error) {
	if !s.Viewport.Ready() {
		return nil, domain.ErrNotReady
	}
	waypoints := make([]domain.GeoPoint, 0, len(pinIDs))
	if len(pinIDs) > 0 {
		if s.deps.Pins == nil {
			return nil, fmt.Errorf("itineraries require a pin source")
		}
		s.mu.Lock()
		known := s.all
		s.mu.Unlock()
		pins, err := s.deps.Pins.Resolve(ctx, pinIDs, known)
		if err != nil {
			return nil, err
		}
		for _, p := range pins {
			waypoints = append(waypoints, p.Location)
		}
	}
	route, err := s.Routes.DrawWithProfile(ctx, s.opts.ItineraryProfile, waypoints)
	s.publishRoute(ctx, "", len(waypoints), route, err)
	return route, err
}

// ViewExperience draws a saved experience's itinerary.
func (s *MapSession) ViewExperience(ctx context.Context, experienceID string) (*domain.RouteCandidate, error) {
	if s.deps.Experiences == nil {
		return nil, fmt.Errorf("experiences are not configured")
	}
	exp, err := s.deps.Experiences.Get(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	return s.ViewItinerary(ctx, exp.Stops)
}

// ClearRoute removes the drawn route.
func (s *MapSession) ClearRoute(ctx context.Context) error {
	_, err := s.Routes.Draw(ctx, nil)
	s.publishRoute(ctx, "", 0, nil, err)
	return err
}

// City returns the selected city, or nil in world mode.
func (s *MapSession) City() *domain.City {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.city
}

// Close tears the renderer down.
func (s *MapSession) Close(ctx context.Context) error {
	err := s.Viewport.Teardown()
	s.publish(ctx, domain.MapEvent{Type: domain.EventSessionEnded})
	return err
}

func (s *MapSession) pin(ctx context.Context, pinID string) (*domain.Pin, error) {
	if p, ok := s.Markers.Lookup(pinID); ok {
		return &p, nil
	}
	if s.deps.Pins == nil {
		return nil, fmt.Errorf("pin %s: %w", pinID, domain.ErrNotFound)
	}
	return s.deps.Pins.GetPin(ctx, pinID)
}

func (s *MapSession) handlePinClick(pin domain.Pin) {
	s.publish(context.Background(), domain.MapEvent{Type: domain.EventPinClicked, PinID: pin.ID})
	if s.opts.OnPinClick != nil {
		s.opts.OnPinClick(pin)
	}
}

func (s *MapSession) publishRoute(ctx context.Context, pinID string, waypoints int, route *domain.RouteCandidate, err error) {
	ev := domain.MapEvent{PinID: pinID, Waypoints: waypoints}
	switch {
	case errors.Is(err, domain.ErrStaleRoute), errors.Is(err, domain.ErrNotReady), errors.Is(err, domain.ErrDestroyed):
		return
	case err != nil:
		ev.Type = domain.EventRouteFailed
		ev.Error = err.Error()
	case route == nil:
		ev.Type = domain.EventRouteCleared
	default:
		ev.Type = domain.EventRouteDrawn
		ev.DistanceMeters = route.DistanceMeters
	}
	s.publish(ctx, ev)
}

func (s *MapSession) publish(ctx context.Context, ev domain.MapEvent) {
	if s.deps.Events == nil {
		return
	}
	ev.SessionID = s.ID
	ev.Time = time.Now().UTC()
	if err := s.deps.Events.PublishMapEvent(ctx, &ev); err != nil {
		s.logger.Debug("publish map event failed", "type", ev.Type, "error", err)
	}
}
