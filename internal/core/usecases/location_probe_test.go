package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

func TestLocationProbe_GoToUserLocation(t *testing.T) {
	vc, f := newReadyViewport(t)
	pos := domain.GeoPoint{Lat: 31.6300, Lon: -7.9900}
	loc := &mockLocator{positionFn: func(ctx context.Context) (domain.GeoPoint, error) { return pos, nil }}
	notes := &recordingNotifier{}
	probe := usecases.NewLocationProbe(vc, loc, notes, usecases.LocationProbeOptions{})

	got, err := probe.GoToUserLocation(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != pos {
		t.Errorf("expected %v, got %v", pos, got)
	}
	flight := f.renderer.lastFlight()
	if flight.Center != pos || flight.Zoom != 16 || flight.Pitch != 75 {
		t.Errorf("unexpected user pose: %+v", flight.Pose)
	}
	if vc.Mode() != domain.ModeUserLocation {
		t.Errorf("expected user-location mode, got %s", vc.Mode())
	}
	live := f.renderer.liveMarkers()
	if len(live) != 1 || live[0].spec.Position != pos {
		t.Fatalf("expected one user marker at %v, got %d markers", pos, len(live))
	}
	if notes.count() != 0 {
		t.Errorf("expected no notices, got %d", notes.count())
	}
}

func TestLocationProbe_MarkerMovesInsteadOfDuplicating(t *testing.T) {
	vc, f := newReadyViewport(t)
	fixes := []domain.GeoPoint{{Lat: 31.63, Lon: -7.99}, {Lat: 31.64, Lon: -7.98}}
	i := 0
	loc := &mockLocator{positionFn: func(ctx context.Context) (domain.GeoPoint, error) {
		p := fixes[i]
		i++
		return p, nil
	}}
	probe := usecases.NewLocationProbe(vc, loc, nil, usecases.LocationProbeOptions{})

	_, _ = probe.GoToUserLocation(context.Background())
	_, _ = probe.GoToUserLocation(context.Background())

	if len(f.renderer.markers) != 1 {
		t.Fatalf("expected a single user marker ever created, got %d", len(f.renderer.markers))
	}
	if got := f.renderer.markers[0].spec.Position; got != fixes[1] {
		t.Errorf("expected marker at %v, got %v", fixes[1], got)
	}
}

func TestLocationProbe_FailureNotifiesAndLeavesMapAlone(t *testing.T) {
	cases := map[string]func(ctx context.Context) (domain.GeoPoint, error){
		"denied": func(ctx context.Context) (domain.GeoPoint, error) {
			return domain.GeoPoint{}, errors.New("permission denied")
		},
		"nan": func(ctx context.Context) (domain.GeoPoint, error) {
			return domain.GeoPoint{Lat: math.NaN(), Lon: 1}, nil
		},
		"timeout": func(ctx context.Context) (domain.GeoPoint, error) {
			<-ctx.Done()
			return domain.GeoPoint{}, ctx.Err()
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			vc, f := newReadyViewport(t)
			notes := &recordingNotifier{}
			probe := usecases.NewLocationProbe(vc, &mockLocator{positionFn: fn}, notes, usecases.LocationProbeOptions{Timeout: 20 * time.Millisecond})

			_, err := probe.GoToUserLocation(context.Background())
			if !errors.Is(err, domain.ErrLocationUnavailable) {
				t.Fatalf("expected ErrLocationUnavailable, got %v", err)
			}
			if notes.count() != 1 {
				t.Fatalf("expected one notice, got %d", notes.count())
			}
			if notes.notices[0].Message != usecases.LocationUnavailableMessage {
				t.Errorf("unexpected message: %q", notes.notices[0].Message)
			}
			if f.renderer.flightCount() != 0 {
				t.Error("camera moved on failure")
			}
			if probe.HasMarker() {
				t.Error("user marker created on failure")
			}
		})
	}
}

func TestLocationProbe_MarkerDeferredUntilReady(t *testing.T) {
	f := &fakeFactory{}
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{})
	_ = vc.Init(context.Background())
	pos := domain.GeoPoint{Lat: 34.03, Lon: -5.0}
	probe := usecases.NewLocationProbe(vc, &mockLocator{positionFn: func(ctx context.Context) (domain.GeoPoint, error) {
		return pos, nil
	}}, nil, usecases.LocationProbeOptions{})

	if _, err := probe.GoToUserLocation(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probe.HasMarker() {
		t.Fatal("marker created before ready")
	}

	f.load()

	if !probe.HasMarker() {
		t.Error("deferred marker not created on ready")
	}
	if f.renderer.lastFlight().Center != pos {
		t.Error("deferred flight not applied on ready")
	}
}
