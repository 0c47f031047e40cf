package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

func newReadyViewport(t *testing.T) (*usecases.ViewportController, *fakeFactory) {
	t.Helper()
	f := &fakeFactory{}
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{Style: "mapbox://styles/test"})
	if err := vc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	f.load()
	if !vc.Ready() {
		t.Fatalf("expected ready, got %s", vc.State())
	}
	return vc, f
}

func TestViewport_InitialOptions(t *testing.T) {
	f := &fakeFactory{}
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{Style: "mapbox://styles/test"})
	if vc.State() != usecases.StateUninitialized {
		t.Fatalf("expected uninitialized, got %s", vc.State())
	}
	if err := vc.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vc.State() != usecases.StateInitializing {
		t.Errorf("expected initializing, got %s", vc.State())
	}
	if f.opts.Style != "mapbox://styles/test" {
		t.Errorf("style not passed through: %q", f.opts.Style)
	}
	if f.opts.Zoom != 5.5 || f.opts.Center != domain.WorldPose.Center {
		t.Errorf("expected world pose, got zoom=%v center=%v", f.opts.Zoom, f.opts.Center)
	}
	if f.opts.MaxBounds == nil || *f.opts.MaxBounds != domain.MaxBounds {
		t.Errorf("expected max bounds %v, got %v", domain.MaxBounds, f.opts.MaxBounds)
	}
}

func TestViewport_InitIsIdempotent(t *testing.T) {
	f := &fakeFactory{}
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{})
	_ = vc.Init(context.Background())
	_ = vc.Init(context.Background())
	f.load()
	_ = vc.Init(context.Background())
	if f.calls != 1 {
		t.Errorf("expected one renderer, got %d", f.calls)
	}
}

func TestViewport_InitFailureIsTerminal(t *testing.T) {
	f := &fakeFactory{err: errors.New("webgl unavailable")}
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{})

	err := vc.Init(context.Background())
	if !errors.Is(err, domain.ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed, got %v", err)
	}
	if vc.State() != usecases.StateDestroyed {
		t.Errorf("expected destroyed, got %s", vc.State())
	}
	if err := vc.FlyTo(nil, nil); !errors.Is(err, domain.ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
}

func TestViewport_DecoratesOnLoad(t *testing.T) {
	_, f := newReadyViewport(t)
	r := f.renderer

	src, ok := r.sources["mapbox-dem"]
	if !ok {
		t.Fatal("terrain source not added")
	}
	if src.Type != "raster-dem" || src.TileSize != 512 || src.MaxZoom != 14 {
		t.Errorf("unexpected terrain source: %+v", src)
	}
	if r.terrain == nil || r.terrain.Exaggeration != 1.5 {
		t.Errorf("expected terrain exaggeration 1.5, got %+v", r.terrain)
	}
	if !r.fog {
		t.Error("fog not set")
	}
	if !r.HasLayer("3d-buildings") {
		t.Error("buildings layer not added")
	}
}

func TestViewport_DeferredCommandLatestWins(t *testing.T) {
	f := &fakeFactory{}
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{})
	_ = vc.Init(context.Background())

	fes, _ := domain.LookupCity("fes")
	rabat, _ := domain.LookupCity("rabat")
	if err := vc.FlyTo(&fes, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := vc.FlyTo(&rabat, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := f.renderer.flightCount(); n != 0 {
		t.Fatalf("expected no flights before load, got %d", n)
	}

	f.load()

	if n := f.renderer.flightCount(); n != 1 {
		t.Fatalf("expected exactly one flight after load, got %d", n)
	}
	got := f.renderer.lastFlight()
	if got.Center != rabat.Center {
		t.Errorf("expected flight to rabat, got %v", got.Center)
	}
	if vc.Mode() != domain.ModeCity {
		t.Errorf("expected city mode, got %s", vc.Mode())
	}
}

func TestViewport_CityPose(t *testing.T) {
	vc, f := newReadyViewport(t)
	city, _ := domain.LookupCity("Marrakech")

	if err := vc.FlyTo(&city, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := f.renderer.lastFlight()
	want := ports.CameraOptions{Pose: domain.CityPose(city), Essential: true}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if got.Zoom != 15 || got.Pitch != 75 || got.Bearing != -17.6 || got.Speed != 1.2 {
		t.Errorf("unexpected city pose: %+v", got.Pose)
	}
}

func TestViewport_FlyToWorld(t *testing.T) {
	vc, f := newReadyViewport(t)
	city, _ := domain.LookupCity("fes")
	_ = vc.FlyTo(&city, nil)

	if err := vc.FlyTo(nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vc.Mode() != domain.ModeWorld {
		t.Errorf("expected world mode, got %s", vc.Mode())
	}
	if got := f.renderer.lastFlight().Pose; got != domain.WorldPose {
		t.Errorf("expected world pose, got %+v", got)
	}
}

func TestViewport_SupersededAnimationEndIsDropped(t *testing.T) {
	vc, f := newReadyViewport(t)
	fes, _ := domain.LookupCity("fes")
	rabat, _ := domain.LookupCity("rabat")

	var fesEnded, rabatEnded int
	_ = vc.FlyTo(&fes, func() { fesEnded++ })
	_ = vc.FlyTo(&rabat, func() { rabatEnded++ })

	f.renderer.settle()
	f.renderer.settle()

	if fesEnded != 0 {
		t.Errorf("superseded transition reported completion %d times", fesEnded)
	}
	if rabatEnded != 1 {
		t.Errorf("expected latest transition to complete once, got %d", rabatEnded)
	}
}

func TestViewport_FitBoundsSupersedesFlight(t *testing.T) {
	vc, f := newReadyViewport(t)
	fes, _ := domain.LookupCity("fes")

	ended := 0
	_ = vc.FlyTo(&fes, func() { ended++ })
	if err := vc.FitBounds(domain.BoundsOf(fes.Center), domain.RoutePadding); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.renderer.settle()
	if ended != 0 {
		t.Errorf("expected superseded completion to be dropped, got %d", ended)
	}
}

func TestViewport_MutateRequiresReady(t *testing.T) {
	f := &fakeFactory{}
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{})
	called := false
	fn := func(ports.Renderer) error { called = true; return nil }

	if err := vc.Mutate(fn); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("expected ErrNotReady before init, got %v", err)
	}
	_ = vc.Init(context.Background())
	if err := vc.Mutate(fn); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("expected ErrNotReady while initializing, got %v", err)
	}
	if err := vc.FitBounds(domain.MaxBounds, domain.Padding{}); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("expected ErrNotReady from FitBounds, got %v", err)
	}
	if called {
		t.Error("mutation ran before ready")
	}
	f.load()
	if err := vc.Mutate(fn); err != nil || !called {
		t.Errorf("expected mutation to run once ready, err=%v", err)
	}
}

func TestViewport_OnReadyFiresOnce(t *testing.T) {
	f := &fakeFactory{}
	var got *usecases.ViewportController
	calls := 0
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{
		OnReady: func(c *usecases.ViewportController) { got = c; calls++ },
	})
	hook := 0
	vc.OnReady(func() { hook++ })

	_ = vc.Init(context.Background())
	f.load()
	f.load()

	if calls != 1 || got != vc {
		t.Errorf("expected OnReady once with the controller, got %d calls", calls)
	}
	if hook != 1 {
		t.Errorf("expected registered hook once, got %d", hook)
	}

	late := 0
	vc.OnReady(func() { late++ })
	if late != 1 {
		t.Error("hook registered after ready should run immediately")
	}
}

func TestViewport_Teardown(t *testing.T) {
	vc, f := newReadyViewport(t)
	city, _ := domain.LookupCity("tangier")
	ended := 0
	_ = vc.FlyTo(&city, func() { ended++ })

	if err := vc.Teardown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.renderer.removed {
		t.Error("renderer not removed")
	}
	f.renderer.settle()
	if ended != 0 {
		t.Error("completion fired after teardown")
	}
	if err := vc.Teardown(); err != nil {
		t.Errorf("second teardown should be a no-op, got %v", err)
	}
	if err := vc.Init(context.Background()); !errors.Is(err, domain.ErrDestroyed) {
		t.Errorf("expected ErrDestroyed from Init, got %v", err)
	}
	if err := vc.Mutate(func(ports.Renderer) error { return nil }); !errors.Is(err, domain.ErrDestroyed) {
		t.Errorf("expected ErrDestroyed from Mutate, got %v", err)
	}
}

func TestViewport_TeardownBeforeLoad(t *testing.T) {
	f := &fakeFactory{}
	vc := usecases.NewViewportController(f, usecases.ViewportOptions{})
	_ = vc.Init(context.Background())
	_ = vc.Teardown()
	f.load()
	if vc.State() != usecases.StateDestroyed {
		t.Errorf("late load revived a destroyed controller: %s", vc.State())
	}
	if n := f.renderer.flightCount(); n != 0 {
		t.Errorf("expected no flights, got %d", n)
	}
}
