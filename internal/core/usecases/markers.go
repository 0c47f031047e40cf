package usecases

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

// ReconcileStrategy selects how a new pin collection is applied. Under either
// strategy pins sharing an id collapse to the last occurrence, drawn at the
// first occurrence's place in the order.
type ReconcileStrategy string

const (
	// StrategyRebuild removes every marker and recreates one per pin.
	StrategyRebuild ReconcileStrategy = "rebuild"
	// StrategyKeyed diffs by pin id and only touches changed markers.
	StrategyKeyed ReconcileStrategy = "keyed"
)

// MarkerOptions configures a MarkerReconciler.
type MarkerOptions struct {
	Icons    domain.IconSet
	Strategy ReconcileStrategy
	OnClick  func(domain.Pin)
	Logger   *slog.Logger
}

type renderedMarker struct {
	pinID  string
	icon   string
	pos    domain.GeoPoint
	marker ports.Marker
}

// MarkerReconciler keeps the rendered markers in one-to-one correspondence
// with the latest pin collection.
type MarkerReconciler struct {
	viewport *ViewportController
	opts     MarkerOptions
	logger   *slog.Logger

	mu       sync.Mutex
	latest   []domain.Pin
	pins     map[string]domain.Pin
	rendered []renderedMarker
}

// NewMarkerReconciler creates a reconciler that resyncs when viewport becomes ready.
func NewMarkerReconciler(viewport *ViewportController, opts MarkerOptions) *MarkerReconciler {
	if opts.Strategy == "" {
		opts.Strategy = StrategyRebuild
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &MarkerReconciler{
		viewport: viewport,
		opts:     opts,
		logger:   logger,
		pins:     make(map[string]domain.Pin),
	}
	viewport.OnReady(func() {
		if err := r.Resync(); err != nil {
			r.logger.Warn("marker resync failed", "error", err)
		}
	})
	return r
}

// Reconcile replaces the displayed markers with pins. Before the renderer is
// ready the collection is remembered and applied on readiness.
func (r *MarkerReconciler) Reconcile(pins []domain.Pin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest = append([]domain.Pin(nil), pins...)
	return r.applyLocked()
}

// Resync reapplies the most recent collection.
func (r *MarkerReconciler) Resync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked()
}

func (r *MarkerReconciler) applyLocked() error {
	err := r.viewport.Mutate(func(rd ports.Renderer) error {
		if r.opts.Strategy == StrategyKeyed {
			return r.diffLocked(rd)
		}
		return r.rebuildLocked(rd)
	})
	switch {
	case errors.Is(err, domain.ErrNotReady):
		metrics.Reconciliations.WithLabelValues("deferred").Inc()
		return nil
	case errors.Is(err, domain.ErrDestroyed):
		metrics.Reconciliations.WithLabelValues("skipped").Inc()
		r.rendered = nil
		return nil
	case err != nil:
		metrics.Reconciliations.WithLabelValues("error").Inc()
		return err
	}
	metrics.Reconciliations.WithLabelValues("applied").Inc()
	metrics.MarkersPerPass.Observe(float64(len(r.rendered)))
	return nil
}

func (r *MarkerReconciler) rebuildLocked(rd ports.Renderer) error {
	for _, m := range r.rendered {
		if err := m.marker.Remove(); err != nil {
			r.logger.Warn("remove marker", "pin_id", m.pinID, "error", err)
		}
	}
	r.rendered = r.rendered[:0]
	var order []string
	r.pins, order = byID(r.latest)

	for _, id := range order {
		m, err := r.addLocked(rd, r.pins[id])
		if err != nil {
			return err
		}
		r.rendered = append(r.rendered, m)
	}
	return nil
}

func (r *MarkerReconciler) diffLocked(rd ports.Renderer) error {
	next, order := byID(r.latest)

	existing := make(map[string]renderedMarker, len(r.rendered))
	for _, m := range r.rendered {
		pin, keep := next[m.pinID]
		if keep && m.icon == r.opts.Icons.Resolve(pin.CategoryID) {
			existing[m.pinID] = m
			continue
		}
		if err := m.marker.Remove(); err != nil {
			r.logger.Warn("remove marker", "pin_id", m.pinID, "error", err)
		}
	}

	r.pins = next
	r.rendered = r.rendered[:0]
	for _, id := range order {
		pin := next[id]
		if m, ok := existing[id]; ok {
			if m.pos != pin.Location {
				if err := m.marker.SetPosition(pin.Location); err != nil {
					return fmt.Errorf("move marker %s: %w", id, err)
				}
				m.pos = pin.Location
			}
			r.rendered = append(r.rendered, m)
			continue
		}
		m, err := r.addLocked(rd, pin)
		if err != nil {
			return err
		}
		r.rendered = append(r.rendered, m)
	}
	return nil
}

// byID indexes pins by id, keeping the last pin for each id and the order of
// first appearance.
func byID(pins []domain.Pin) (map[string]domain.Pin, []string) {
	index := make(map[string]domain.Pin, len(pins))
	order := make([]string, 0, len(pins))
	for _, pin := range pins {
		if _, seen := index[pin.ID]; !seen {
			order = append(order, pin.ID)
		}
		index[pin.ID] = pin
	}
	return index, order
}

func (r *MarkerReconciler) addLocked(rd ports.Renderer, pin domain.Pin) (renderedMarker, error) {
	icon := r.opts.Icons.Resolve(pin.CategoryID)
	m, err := rd.AddMarker(ports.MarkerSpec{
		Position:  pin.Location,
		Icon:      icon,
		ClassName: "pin-marker",
	}, r.clickHandler(pin.ID))
	if err != nil {
		return renderedMarker{}, fmt.Errorf("add marker %s: %w", pin.ID, err)
	}
	return renderedMarker{pinID: pin.ID, icon: icon, pos: pin.Location, marker: m}, nil
}

// clickHandler resolves the pin at click time so a stale marker never reports old content.
func (r *MarkerReconciler) clickHandler(pinID string) func() {
	return func() {
		r.mu.Lock()
		pin, ok := r.pins[pinID]
		cb := r.opts.OnClick
		r.mu.Unlock()
		if ok && cb != nil {
			cb(pin)
		}
	}
}

// Count returns the number of markers currently rendered.
func (r *MarkerReconciler) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rendered)
}

// Pins returns a copy of the most recent collection.
func (r *MarkerReconciler) Pins() []domain.Pin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Pin(nil), r.latest...)
}

// Lookup returns the displayed pin with the given id.
func (r *MarkerReconciler) Lookup(pinID string) (domain.Pin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pin, ok := r.pins[pinID]
	return pin, ok
}
