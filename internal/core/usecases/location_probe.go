package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

// LocationUnavailableMessage is shown when a position cannot be obtained.
const LocationUnavailableMessage = "Could not get your location. Please enable location services."

// LocationProbeOptions configures a LocationProbe.
type LocationProbeOptions struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// LocationProbe obtains the user's position and keeps a single user marker on the map.
type LocationProbe struct {
	viewport *ViewportController
	locator  ports.Geolocator
	notifier ports.Notifier
	opts     LocationProbeOptions
	logger   *slog.Logger

	mu      sync.Mutex
	marker  ports.Marker
	pending *domain.GeoPoint
	last    *domain.GeoPoint
}

// NewLocationProbe creates a probe. A marker placed before the renderer is
// ready is created once it becomes ready.
func NewLocationProbe(viewport *ViewportController, locator ports.Geolocator, notifier ports.Notifier, opts LocationProbeOptions) *LocationProbe {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &LocationProbe{
		viewport: viewport,
		locator:  locator,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
	viewport.OnReady(p.flushPending)
	return p
}

// Locate asks the host for a single position fix. On failure the user is
// notified once and domain.ErrLocationUnavailable is returned.
func (p *LocationProbe) Locate(ctx context.Context) (domain.GeoPoint, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	pos, err := p.locator.CurrentPosition(callCtx)
	if err == nil && !pos.Valid() {
		err = domain.ErrInvalidCoordinates
	}
	if err != nil {
		metrics.GeolocationFailures.Inc()
		p.logger.Info("geolocation failed", "error", err)
		if ctx.Err() == nil && p.notifier != nil {
			p.notifier.Notify(ctx, domain.Notice{Level: domain.NoticeError, Message: LocationUnavailableMessage})
		}
		return domain.GeoPoint{}, fmt.Errorf("%w: %w", domain.ErrLocationUnavailable, err)
	}

	p.mu.Lock()
	p.last = &pos
	p.mu.Unlock()
	return pos, nil
}

// GoToUserLocation locates the user, flies to the position and shows the user marker.
func (p *LocationProbe) GoToUserLocation(ctx context.Context) (domain.GeoPoint, error) {
	if p.viewport.State() == StateDestroyed {
		return domain.GeoPoint{}, domain.ErrDestroyed
	}
	pos, err := p.Locate(ctx)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	if err := p.viewport.FlyToPose(domain.ModeUserLocation, domain.UserPose(pos), nil); err != nil {
		return pos, err
	}
	if err := p.PlaceMarker(pos); err != nil {
		return pos, err
	}
	return pos, nil
}

// PlaceMarker moves the user marker to pos, creating it on first use.
func (p *LocationProbe) PlaceMarker(pos domain.GeoPoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.viewport.Mutate(func(r ports.Renderer) error {
		return p.placeLocked(r, pos)
	})
	if errors.Is(err, domain.ErrNotReady) {
		p.pending = &pos
		return nil
	}
	return err
}

func (p *LocationProbe) placeLocked(r ports.Renderer, pos domain.GeoPoint) error {
	if p.marker != nil {
		if err := p.marker.SetPosition(pos); err != nil {
			return fmt.Errorf("move user marker: %w", err)
		}
		return nil
	}
	m, err := r.AddMarker(ports.MarkerSpec{Position: pos, Color: "#3887be", ClassName: "user-marker"}, nil)
	if err != nil {
		return fmt.Errorf("add user marker: %w", err)
	}
	p.marker = m
	return nil
}

func (p *LocationProbe) flushPending() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return
	}
	pos := *p.pending
	p.pending = nil
	if err := p.viewport.Mutate(func(r ports.Renderer) error {
		return p.placeLocked(r, pos)
	}); err != nil {
		p.logger.Warn("place deferred user marker", "error", err)
	}
}

// HasMarker reports whether the user marker exists.
func (p *LocationProbe) HasMarker() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marker != nil
}

// Last returns the most recent successful fix.
func (p *LocationProbe) Last() (domain.GeoPoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return domain.GeoPoint{}, false
	}
	return *p.last, true
}
