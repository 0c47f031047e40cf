package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// --- Fake renderer ---

type fakeFactory struct {
	mu       sync.Mutex
	err      error
	calls    int
	opts     ports.RendererOptions
	renderer *fakeRenderer
	onLoad   func()
}

func (f *fakeFactory) NewRenderer(ctx context.Context, opts ports.RendererOptions, onLoad func()) (ports.Renderer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.opts = opts
	f.onLoad = onLoad
	f.renderer = newFakeRenderer()
	return f.renderer, nil
}

// load fires the readiness signal the way a real engine would.
func (f *fakeFactory) load() {
	f.mu.Lock()
	fn := f.onLoad
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeRenderer struct {
	mu         sync.Mutex
	sources    map[string]ports.SourceSpec
	sourceData map[string]*geojson.Feature
	layers     map[string]ports.LayerSpec
	terrain    *ports.TerrainSpec
	fog        bool
	flights    []ports.CameraOptions
	fits       []ports.FitOptions
	fitBounds  []domain.Bounds
	moveEnd    []func()
	markers    []*fakeMarker
	removed    bool
	setDataErr error
	// onSetData runs after each successful SetSourceData, outside r.mu.
	onSetData func(id string)
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		sources:    make(map[string]ports.SourceSpec),
		sourceData: make(map[string]*geojson.Feature),
		layers:     make(map[string]ports.LayerSpec),
	}
}

func (r *fakeRenderer) AddSource(id string, spec ports.SourceSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[id]; ok {
		return errors.New("source exists: " + id)
	}
	r.sources[id] = spec
	if spec.Data != nil {
		r.sourceData[id] = spec.Data
	}
	return nil
}

func (r *fakeRenderer) HasSource(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[id]
	return ok
}

func (r *fakeRenderer) SetSourceData(id string, data *geojson.Feature) error {
	r.mu.Lock()
	if r.setDataErr != nil {
		r.mu.Unlock()
		return r.setDataErr
	}
	if _, ok := r.sources[id]; !ok {
		r.mu.Unlock()
		return errors.New("no such source: " + id)
	}
	r.sourceData[id] = data
	hook := r.onSetData
	r.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return nil
}

func (r *fakeRenderer) AddLayer(spec ports.LayerSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.layers[spec.ID]; ok {
		return errors.New("layer exists: " + spec.ID)
	}
	r.layers[spec.ID] = spec
	return nil
}

func (r *fakeRenderer) HasLayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.layers[id]
	return ok
}

func (r *fakeRenderer) SetTerrain(spec ports.TerrainSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terrain = &spec
	return nil
}

func (r *fakeRenderer) SetFog() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fog = true
	return nil
}

func (r *fakeRenderer) FlyTo(opts ports.CameraOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flights = append(r.flights, opts)
	return nil
}

func (r *fakeRenderer) FitBounds(b domain.Bounds, opts ports.FitOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fitBounds = append(r.fitBounds, b)
	r.fits = append(r.fits, opts)
	return nil
}

func (r *fakeRenderer) OnceMoveEnd(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moveEnd = append(r.moveEnd, fn)
}

// settle emits one moveend.
func (r *fakeRenderer) settle() {
	r.mu.Lock()
	fns := r.moveEnd
	r.moveEnd = nil
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (r *fakeRenderer) AddMarker(spec ports.MarkerSpec, onClick func()) (ports.Marker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &fakeMarker{r: r, spec: spec, onClick: onClick}
	r.markers = append(r.markers, m)
	return m, nil
}

func (r *fakeRenderer) Remove() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = true
	return nil
}

func (r *fakeRenderer) liveMarkers() []*fakeMarker {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*fakeMarker
	for _, m := range r.markers {
		if !m.removed {
			out = append(out, m)
		}
	}
	return out
}

func (r *fakeRenderer) flightCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flights)
}

func (r *fakeRenderer) lastFlight() ports.CameraOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flights[len(r.flights)-1]
}

func (r *fakeRenderer) routeCoords() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.sourceData["route"]
	if f == nil || f.Geometry == nil {
		return -1
	}
	return len(domainLine(f).Coordinates)
}

type fakeMarker struct {
	r       *fakeRenderer
	spec    ports.MarkerSpec
	onClick func()
	removed bool
}

func (m *fakeMarker) SetPosition(p domain.GeoPoint) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	m.spec.Position = p
	return nil
}

func (m *fakeMarker) Remove() error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	m.removed = true
	return nil
}

func (m *fakeMarker) click() {
	if m.onClick != nil {
		m.onClick()
	}
}

// --- Collaborators ---

type mockRouting struct {
	mu          sync.Mutex
	calls       []domain.DirectionsRequest
	directionFn func(ctx context.Context, req domain.DirectionsRequest) (*domain.DirectionsResult, error)
}

func (m *mockRouting) Directions(ctx context.Context, req domain.DirectionsRequest) (*domain.DirectionsResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.directionFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return nil, nil
}

func (m *mockRouting) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockLocator struct {
	positionFn func(ctx context.Context) (domain.GeoPoint, error)
}

func (m *mockLocator) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	if m.positionFn != nil {
		return m.positionFn(ctx)
	}
	return domain.GeoPoint{}, errors.New("no position")
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (n *recordingNotifier) Notify(ctx context.Context, notice domain.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type mockPinSource struct {
	cityPinsFn   func(ctx context.Context, city string) ([]domain.Pin, error)
	getPinFn     func(ctx context.Context, id string) (*domain.Pin, error)
	categoriesFn func(ctx context.Context) ([]domain.Category, error)
}

func (m *mockPinSource) CityPins(ctx context.Context, city string) ([]domain.Pin, error) {
	if m.cityPinsFn != nil {
		return m.cityPinsFn(ctx, city)
	}
	return nil, nil
}

func (m *mockPinSource) GetPin(ctx context.Context, id string) (*domain.Pin, error) {
	if m.getPinFn != nil {
		return m.getPinFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPinSource) Categories(ctx context.Context) ([]domain.Category, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return nil, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.MapEvent
	saved  []domain.Experience
}

func (p *recordingPublisher) PublishMapEvent(ctx context.Context, ev *domain.MapEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

func (p *recordingPublisher) PublishExperienceSaved(ctx context.Context, exp *domain.Experience) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, *exp)
	return nil
}

func (p *recordingPublisher) eventTypes() []domain.MapEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.MapEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// --- Helpers ---

func line(points ...domain.GeoPoint) domain.GeoLineString {
	return domain.GeoLineString{Coordinates: points}
}

func routeResult(points ...domain.GeoPoint) *domain.DirectionsResult {
	return &domain.DirectionsResult{Routes: []domain.RouteCandidate{{
		Geometry:        line(points...),
		DistanceMeters:  1200,
		DurationSeconds: 300,
	}}}
}

func domainLine(f *geojson.Feature) domain.GeoLineString {
	ls, ok := f.Geometry.(orb.LineString)
	if !ok {
		return domain.GeoLineString{}
	}
	return domain.LineFromOrb(ls)
}
