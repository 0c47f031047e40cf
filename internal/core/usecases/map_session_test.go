package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

type sessionFixture struct {
	session *usecases.MapSession
	factory *fakeFactory
	routing *mockRouting
	notes   *recordingNotifier
	events  *recordingPublisher
	clicked []domain.Pin
	ended   int
}

func newSessionFixture(t *testing.T, source *mockPinSource) *sessionFixture {
	t.Helper()
	fx := &sessionFixture{
		factory: &fakeFactory{},
		routing: &mockRouting{directionFn: func(ctx context.Context, req domain.DirectionsRequest) (*domain.DirectionsResult, error) {
			return routeResult(req.Waypoints...), nil
		}},
		notes:  &recordingNotifier{},
		events: &recordingPublisher{},
	}
	user := domain.GeoPoint{Lat: 31.6300, Lon: -7.9900}
	fx.session = usecases.NewMapSession(usecases.SessionDeps{
		Renderers: fx.factory,
		Routing:   fx.routing,
		Locator:   &mockLocator{positionFn: func(ctx context.Context) (domain.GeoPoint, error) { return user, nil }},
		Notifier:  fx.notes,
		Pins:      usecases.NewPinService(source, nil),
		Events:    fx.events,
	}, usecases.SessionOptions{
		Icons:          testIcons,
		OnPinClick:     func(p domain.Pin) { fx.clicked = append(fx.clicked, p) },
		OnAnimationEnd: func() { fx.ended++ },
	})
	if err := fx.session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	fx.factory.load()
	return fx
}

func marrakechSource() *mockPinSource {
	return &mockPinSource{
		cityPinsFn: func(ctx context.Context, city string) ([]domain.Pin, error) {
			if city != "marrakech" {
				return nil, nil
			}
			return testPins(), nil
		},
		categoriesFn: func(ctx context.Context) ([]domain.Category, error) {
			return []domain.Category{
				{ID: "1", Name: "Stay"},
				{ID: "12", Name: "Riads", ParentID: "1"},
				{ID: "2", Name: "Shop"},
				{ID: "21", Name: "Souks", ParentID: "2"},
			}, nil
		},
	}
}

func TestMapSession_SelectCityLoadsPins(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())

	if err := fx.session.SelectCity(context.Background(), "marrakech"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fx.session.City(); got == nil || got.Key != "marrakech" {
		t.Fatalf("expected marrakech selected, got %v", got)
	}
	if n := len(fx.factory.renderer.liveMarkers()); n != 3 {
		t.Errorf("expected 3 markers, got %d", n)
	}
	fx.factory.renderer.settle()
	if fx.ended != 1 {
		t.Errorf("expected animation end once, got %d", fx.ended)
	}
}

func TestMapSession_SupersededCitySelectionDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	source := &mockPinSource{cityPinsFn: func(ctx context.Context, city string) ([]domain.Pin, error) {
		if city == "marrakech" {
			close(entered)
			<-release
			return testPins(), nil
		}
		return []domain.Pin{{ID: "fes-1", Location: domain.GeoPoint{Lat: 34.0650, Lon: -4.9730}}}, nil
	}}
	fx := newSessionFixture(t, source)

	done := make(chan error, 1)
	go func() { done <- fx.session.SelectCity(context.Background(), "marrakech") }()
	<-entered

	if err := fx.session.SelectCity(context.Background(), "fes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, domain.ErrStaleSelection) {
		t.Fatalf("expected ErrStaleSelection for the older selection, got %v", err)
	}

	if got := fx.session.City(); got == nil || got.Key != "fes" {
		t.Fatalf("expected fes selected, got %v", got)
	}
	if n := len(fx.factory.renderer.liveMarkers()); n != 1 {
		t.Errorf("expected only the fes marker, got %d", n)
	}
	if pins := fx.session.Markers.Pins(); len(pins) != 1 || pins[0].ID != "fes-1" {
		t.Errorf("expected fes pins on display, got %+v", pins)
	}
}

func TestMapSession_SelectWorldClearsPins(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())
	_ = fx.session.SelectCity(context.Background(), "marrakech")

	if err := fx.session.SelectCity(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.session.City() != nil {
		t.Error("expected no city in world mode")
	}
	if n := len(fx.factory.renderer.liveMarkers()); n != 0 {
		t.Errorf("expected no markers, got %d", n)
	}
	if fx.session.Viewport.Mode() != domain.ModeWorld {
		t.Errorf("expected world mode, got %s", fx.session.Viewport.Mode())
	}
}

func TestMapSession_UnknownCity(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())
	err := fx.session.SelectCity(context.Background(), "atlantis")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMapSession_SetPinsDropsInvalid(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())
	pins := append(testPins(), domain.Pin{ID: "bad", Location: domain.GeoPoint{Lat: 200, Lon: 0}})

	if err := fx.session.SetPins(pins); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(fx.factory.renderer.liveMarkers()); n != 3 {
		t.Errorf("expected invalid pin dropped, got %d markers", n)
	}
}

func TestMapSession_FilterPins(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())
	pins := testPins()
	pins[0].Categories = []string{"12"}
	pins[1].Categories = []string{"21"}
	_ = fx.session.SetPins(pins)

	if err := fx.session.FilterPins(context.Background(), []string{"Riads"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	live := fx.factory.renderer.liveMarkers()
	if len(live) != 1 || live[0].spec.Position != pins[0].Location {
		t.Fatalf("expected only the riad, got %d markers", len(live))
	}

	_ = fx.session.FilterPins(context.Background(), nil)
	if n := len(fx.factory.renderer.liveMarkers()); n != 3 {
		t.Errorf("expected all pins after reset, got %d", n)
	}
}

func TestMapSession_PinClick(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())
	_ = fx.session.SetPins(testPins())

	fx.factory.renderer.liveMarkers()[0].click()

	if len(fx.clicked) != 1 || fx.clicked[0].Content.Title != "Riad A" {
		t.Fatalf("unexpected clicks: %+v", fx.clicked)
	}
	types := fx.events.eventTypes()
	if types[len(types)-1] != domain.EventPinClicked {
		t.Errorf("expected pin.clicked event, got %v", types)
	}
}

func TestMapSession_DirectionsToPin(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())
	_ = fx.session.SetPins(testPins())

	route, err := fx.session.DirectionsToPin(context.Background(), "c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route == nil {
		t.Fatal("expected a route")
	}
	req := fx.routing.calls[0]
	if req.Profile != "driving-traffic" {
		t.Errorf("expected driving-traffic, got %q", req.Profile)
	}
	if len(req.Waypoints) != 2 || req.Waypoints[1] != testPins()[2].Location {
		t.Errorf("expected [user, pin c], got %v", req.Waypoints)
	}
	if !fx.session.Location.HasMarker() {
		t.Error("user marker not placed")
	}
	types := fx.events.eventTypes()
	if types[len(types)-1] != domain.EventRouteDrawn {
		t.Errorf("expected route.drawn event, got %v", types)
	}
}

func TestMapSession_ViewItinerary(t *testing.T) {
	source := marrakechSource()
	source.getPinFn = func(ctx context.Context, id string) (*domain.Pin, error) {
		return &domain.Pin{ID: id, Location: majorel}, nil
	}
	fx := newSessionFixture(t, source)
	_ = fx.session.SetPins(testPins())

	if _, err := fx.session.ViewItinerary(context.Background(), []string{"a", "b", "remote"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := fx.routing.calls[0]
	if req.Profile != "walking" {
		t.Errorf("expected walking profile, got %q", req.Profile)
	}
	if len(req.Waypoints) != 3 || req.Waypoints[2] != majorel {
		t.Errorf("unexpected waypoints: %v", req.Waypoints)
	}
}

func TestMapSession_ClearRoute(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())
	_ = fx.session.SetPins(testPins())
	_, _ = fx.session.DirectionsToPin(context.Background(), "a")

	if err := fx.session.ClearRoute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := fx.factory.renderer.routeCoords(); n != 0 {
		t.Errorf("expected route cleared, got %d coordinates", n)
	}
}

func TestMapSession_Close(t *testing.T) {
	fx := newSessionFixture(t, marrakechSource())
	if err := fx.session.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fx.factory.renderer.removed {
		t.Error("renderer not removed")
	}
	types := fx.events.eventTypes()
	if types[0] != domain.EventSessionStarted || types[len(types)-1] != domain.EventSessionEnded {
		t.Errorf("unexpected event sequence: %v", types)
	}
	if err := fx.session.SelectCity(context.Background(), "fes"); !errors.Is(err, domain.ErrDestroyed) {
		t.Errorf("expected ErrDestroyed after close, got %v", err)
	}
}
