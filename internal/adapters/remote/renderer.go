package remote

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// ErrRemoved is returned by renderer calls after Remove.
var ErrRemoved = errors.New("renderer removed")

// Renderer implements ports.Renderer by forwarding calls to the client.
// Source and layer ids are tracked locally so Has* never round-trips.
type Renderer struct {
	out *Outbox

	mu      sync.Mutex
	removed bool
	sources map[string]bool
	layers  map[string]bool
	markers map[string]func()

	// move is the id of the latest flyTo or fitBounds; the client echoes it
	// in the moveend that ends that move.
	moveSeq uint64
	move    string
	moveEnd []moveListener
}

type moveListener struct {
	move string
	fn   func()
}

var _ ports.Renderer = (*Renderer)(nil)

func newRenderer(out *Outbox) *Renderer {
	return &Renderer{
		out:     out,
		sources: make(map[string]bool),
		layers:  make(map[string]bool),
		markers: make(map[string]func()),
	}
}

func (r *Renderer) send(cmd Command) error {
	r.mu.Lock()
	removed := r.removed
	r.mu.Unlock()
	if removed {
		return ErrRemoved
	}
	return r.out.Send(cmd)
}

func (r *Renderer) AddSource(id string, spec ports.SourceSpec) error {
	if r.HasSource(id) {
		return fmt.Errorf("source %q already exists", id)
	}
	if err := r.send(Command{Op: OpAddSource, ID: id, Data: addSourcePayload{ID: id, Source: spec}}); err != nil {
		return err
	}
	r.mu.Lock()
	r.sources[id] = true
	r.mu.Unlock()
	return nil
}

func (r *Renderer) HasSource(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sources[id]
}

func (r *Renderer) SetSourceData(id string, data *geojson.Feature) error {
	if !r.HasSource(id) {
		return fmt.Errorf("source %q: %w", id, domain.ErrNotFound)
	}
	return r.send(Command{Op: OpSetSourceData, ID: id, Data: data})
}

func (r *Renderer) AddLayer(spec ports.LayerSpec) error {
	if r.HasLayer(spec.ID) {
		return fmt.Errorf("layer %q already exists", spec.ID)
	}
	if err := r.send(Command{Op: OpAddLayer, ID: spec.ID, Data: spec}); err != nil {
		return err
	}
	r.mu.Lock()
	r.layers[spec.ID] = true
	r.mu.Unlock()
	return nil
}

func (r *Renderer) HasLayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layers[id]
}

func (r *Renderer) SetTerrain(spec ports.TerrainSpec) error {
	return r.send(Command{Op: OpSetTerrain, Data: spec})
}

func (r *Renderer) SetFog() error {
	return r.send(Command{Op: OpSetFog})
}

func (r *Renderer) FlyTo(opts ports.CameraOptions) error {
	return r.send(Command{Op: OpFlyTo, ID: r.startMove(), Data: newCameraPayload(opts)})
}

func (r *Renderer) FitBounds(b domain.Bounds, opts ports.FitOptions) error {
	return r.send(Command{Op: OpFitBounds, ID: r.startMove(), Data: fitBoundsPayload{Bounds: b.SouthWestNorthEast(), Options: opts}})
}

func (r *Renderer) startMove() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moveSeq++
	r.move = "move-" + strconv.FormatUint(r.moveSeq, 10)
	return r.move
}

// OnceMoveEnd queues fn until the client reports the end of the latest move.
// A moveend for an earlier, interrupted move does not fire it.
func (r *Renderer) OnceMoveEnd(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed {
		return
	}
	r.moveEnd = append(r.moveEnd, moveListener{move: r.move, fn: fn})
}

func (r *Renderer) AddMarker(spec ports.MarkerSpec, onClick func()) (ports.Marker, error) {
	id := uuid.NewString()
	r.mu.Lock()
	r.markers[id] = onClick
	r.mu.Unlock()

	err := r.send(Command{Op: OpAddMarker, ID: id, Data: markerPayload{MarkerSpec: spec, LngLat: spec.Position.LngLat()}})
	if err != nil {
		r.mu.Lock()
		delete(r.markers, id)
		r.mu.Unlock()
		return nil, err
	}
	return &marker{r: r, id: id}, nil
}

// Remove tears the client map down. Pending move-end listeners are dropped.
func (r *Renderer) Remove() error {
	r.mu.Lock()
	if r.removed {
		r.mu.Unlock()
		return nil
	}
	r.removed = true
	r.moveEnd = nil
	r.markers = make(map[string]func())
	r.mu.Unlock()

	err := r.out.Send(Command{Op: OpRemove})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// takeMoveEnd removes and returns the listeners of move. Listeners of the
// latest move stay queued; those of other superseded moves are dropped.
// Untagged moveends come from user gestures and fire nothing.
func (r *Renderer) takeMoveEnd(move string) []func() {
	if move == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var fns []func()
	kept := r.moveEnd[:0]
	for _, l := range r.moveEnd {
		switch l.move {
		case move:
			fns = append(fns, l.fn)
		case r.move:
			kept = append(kept, l)
		}
	}
	r.moveEnd = kept
	return fns
}

func (r *Renderer) clickHandler(markerID string) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markers[markerID]
}

// MarkerCount returns the number of live markers.
func (r *Renderer) MarkerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers)
}

type marker struct {
	r  *Renderer
	id string
}

func (m *marker) SetPosition(p domain.GeoPoint) error {
	return m.r.send(Command{Op: OpSetMarkerPosition, ID: m.id, Data: positionPayload{LngLat: p.LngLat()}})
}

func (m *marker) Remove() error {
	m.r.mu.Lock()
	_, live := m.r.markers[m.id]
	delete(m.r.markers, m.id)
	m.r.mu.Unlock()
	if !live {
		return nil
	}
	return m.r.send(Command{Op: OpRemoveMarker, ID: m.id})
}
