package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

// ViewportState is the lifecycle state of a ViewportController.
type ViewportState int32

const (
	StateUninitialized ViewportState = iota
	StateInitializing
	StateReady
	StateDestroyed
)

func (s ViewportState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("ViewportState(%d)", int32(s))
	}
}

const (
	demSourceID      = "mapbox-dem"
	buildingsLayerID = "3d-buildings"
)

// ViewportOptions configures a ViewportController.
type ViewportOptions struct {
	Style   string
	OnReady func(*ViewportController)
	Logger  *slog.Logger
}

type cameraCommand struct {
	mode  domain.ViewMode
	pose  domain.Pose
	onEnd func()
}

// ViewportController owns the renderer and mediates every camera change and
// source/layer mutation against it.
type ViewportController struct {
	factory ports.RendererFactory
	opts    ViewportOptions
	logger  *slog.Logger

	mu         sync.Mutex
	state      ViewportState
	renderer   ports.Renderer
	loadSeen   bool
	mode       domain.ViewMode
	pose       domain.Pose
	pending    *cameraCommand
	readyHooks []func()

	transition atomic.Uint64
}

// NewViewportController creates a controller in the Uninitialized state.
func NewViewportController(factory ports.RendererFactory, opts ViewportOptions) *ViewportController {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewportController{
		factory: factory,
		opts:    opts,
		logger:  logger,
		mode:    domain.ModeWorld,
		pose:    domain.WorldPose,
	}
}

// Init constructs the renderer. Calling it again while initializing or ready is a no-op.
func (c *ViewportController) Init(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateDestroyed:
		c.mu.Unlock()
		return domain.ErrDestroyed
	case StateInitializing, StateReady:
		c.mu.Unlock()
		return nil
	}
	c.state = StateInitializing
	c.mu.Unlock()

	bounds := domain.MaxBounds
	r, err := c.factory.NewRenderer(ctx, ports.RendererOptions{
		Style:     c.opts.Style,
		Center:    domain.WorldPose.Center,
		Zoom:      domain.WorldPose.Zoom,
		Pitch:     domain.WorldPose.Pitch,
		MaxBounds: &bounds,
	}, c.handleLoad)

	c.mu.Lock()
	if err != nil {
		c.state = StateDestroyed
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", domain.ErrInitFailed, err)
	}
	if c.state == StateDestroyed {
		// torn down while the renderer was being built
		c.mu.Unlock()
		_ = r.Remove()
		return domain.ErrDestroyed
	}
	c.renderer = r
	if !c.loadSeen {
		c.mu.Unlock()
		return nil
	}
	hooks := c.becomeReadyLocked()
	c.mu.Unlock()
	c.runHooks(hooks)
	return nil
}

// handleLoad is the renderer's readiness signal.
func (c *ViewportController) handleLoad() {
	c.mu.Lock()
	if c.state != StateInitializing {
		c.mu.Unlock()
		return
	}
	if c.renderer == nil {
		c.loadSeen = true
		c.mu.Unlock()
		return
	}
	hooks := c.becomeReadyLocked()
	c.mu.Unlock()
	c.runHooks(hooks)
}

func (c *ViewportController) becomeReadyLocked() []func() {
	c.state = StateReady
	c.decorateLocked()

	if cmd := c.pending; cmd != nil {
		c.pending = nil
		if err := c.applyLocked(*cmd); err != nil {
			c.logger.Warn("deferred camera move failed", "error", err)
		}
	}

	hooks := c.readyHooks
	c.readyHooks = nil
	if c.opts.OnReady != nil {
		hooks = append(hooks, func() { c.opts.OnReady(c) })
	}
	c.logger.Debug("map ready")
	return hooks
}

// decorateLocked adds terrain, fog and extruded buildings. Failures are cosmetic.
func (c *ViewportController) decorateLocked() {
	r := c.renderer
	if !r.HasSource(demSourceID) {
		if err := r.AddSource(demSourceID, ports.SourceSpec{
			Type:     "raster-dem",
			URL:      "mapbox://mapbox.terrain-rgb",
			TileSize: 512,
			MaxZoom:  14,
		}); err != nil {
			c.logger.Warn("add terrain source", "error", err)
			return
		}
	}
	if err := r.SetTerrain(ports.TerrainSpec{Source: demSourceID, Exaggeration: 1.5}); err != nil {
		c.logger.Warn("set terrain", "error", err)
	}
	if err := r.SetFog(); err != nil {
		c.logger.Warn("set fog", "error", err)
	}
	if !r.HasLayer(buildingsLayerID) {
		if err := r.AddLayer(ports.LayerSpec{
			ID:          buildingsLayerID,
			Type:        "fill-extrusion",
			Source:      "composite",
			SourceLayer: "building",
			Filter:      []any{"==", "extrude", "true"},
			MinZoom:     15,
			Paint: map[string]any{
				"fill-extrusion-color":   "#aaa",
				"fill-extrusion-height":  []any{"get", "height"},
				"fill-extrusion-base":    []any{"get", "min_height"},
				"fill-extrusion-opacity": 0.6,
			},
		}); err != nil {
			c.logger.Warn("add buildings layer", "error", err)
		}
	}
}

func (c *ViewportController) runHooks(hooks []func()) {
	for _, h := range hooks {
		h()
	}
}

// OnReady runs fn once the renderer is ready, immediately if it already is.
func (c *ViewportController) OnReady(fn func()) {
	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.mu.Unlock()
		fn()
		return
	case StateDestroyed:
		c.mu.Unlock()
		return
	}
	c.readyHooks = append(c.readyHooks, fn)
	c.mu.Unlock()
}

// FlyTo moves the camera to city, or back to the world pose when city is nil.
// onEnd, if set, is called once when this transition settles; it is dropped
// if a later transition supersedes this one.
func (c *ViewportController) FlyTo(city *domain.City, onEnd func()) error {
	if city == nil {
		return c.FlyToPose(domain.ModeWorld, domain.WorldPose, onEnd)
	}
	return c.FlyToPose(domain.ModeCity, domain.CityPose(*city), onEnd)
}

// FlyToPose issues an animated transition to pose. Before the renderer is
// ready only the latest request is kept and applied on readiness.
func (c *ViewportController) FlyToPose(mode domain.ViewMode, pose domain.Pose, onEnd func()) error {
	if pose.Speed == 0 {
		pose.Speed = domain.DefaultFlySpeed
	}
	cmd := cameraCommand{mode: mode, pose: pose, onEnd: onEnd}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateDestroyed:
		return domain.ErrDestroyed
	case StateReady:
		return c.applyLocked(cmd)
	}
	if c.pending != nil {
		c.logger.Debug("deferred camera move superseded", "mode", c.pending.mode)
	}
	c.pending = &cmd
	metrics.DeferredCommands.Inc()
	return nil
}

func (c *ViewportController) applyLocked(cmd cameraCommand) error {
	token := c.transition.Add(1)
	if err := c.renderer.FlyTo(ports.CameraOptions{Pose: cmd.pose, Essential: true}); err != nil {
		return fmt.Errorf("fly to: %w", err)
	}
	if cmd.onEnd != nil {
		onEnd := cmd.onEnd
		c.renderer.OnceMoveEnd(func() {
			if c.transition.Load() == token {
				onEnd()
			}
		})
	}
	c.mode = cmd.mode
	c.pose = cmd.pose
	metrics.CameraTransitions.WithLabelValues(string(cmd.mode)).Inc()
	return nil
}

// FitBounds animates the camera to enclose b. It supersedes any in-flight transition.
func (c *ViewportController) FitBounds(b domain.Bounds, padding domain.Padding) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyErrLocked(); err != nil {
		return err
	}
	return c.fitLocked(b, padding)
}

func (c *ViewportController) fitLocked(b domain.Bounds, padding domain.Padding) error {
	c.transition.Add(1)
	if err := c.renderer.FitBounds(b, ports.FitOptions{Padding: padding, Animate: true}); err != nil {
		return fmt.Errorf("fit bounds: %w", err)
	}
	return nil
}

// Mutate runs fn against the renderer while holding the controller lock.
// It fails with domain.ErrNotReady before the renderer has loaded.
func (c *ViewportController) Mutate(fn func(r ports.Renderer) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyErrLocked(); err != nil {
		return err
	}
	return fn(c.renderer)
}

func (c *ViewportController) readyErrLocked() error {
	switch c.state {
	case StateReady:
		return nil
	case StateDestroyed:
		return domain.ErrDestroyed
	default:
		return domain.ErrNotReady
	}
}

// Teardown removes the renderer. The controller cannot be used afterwards.
func (c *ViewportController) Teardown() error {
	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDestroyed
	c.pending = nil
	c.readyHooks = nil
	c.transition.Add(1)
	r := c.renderer
	c.renderer = nil
	c.mu.Unlock()

	if r == nil {
		return nil
	}
	if err := r.Remove(); err != nil {
		return fmt.Errorf("remove renderer: %w", err)
	}
	return nil
}

// State returns the current lifecycle state.
func (c *ViewportController) State() ViewportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether the renderer accepts mutations.
func (c *ViewportController) Ready() bool {
	return c.State() == StateReady
}

// Mode returns the mode of the last applied transition.
func (c *ViewportController) Mode() domain.ViewMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Pose returns the target of the last applied transition.
func (c *ViewportController) Pose() domain.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pose
}
