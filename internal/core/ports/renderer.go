package ports

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// RendererOptions configures a new map renderer.
type RendererOptions struct {
	Style     string          `json:"style"`
	Center    domain.GeoPoint `json:"center"`
	Zoom      float64         `json:"zoom"`
	Pitch     float64         `json:"pitch"`
	MaxBounds *domain.Bounds  `json:"max_bounds,omitempty"`
}

// RendererFactory constructs renderers. onLoad must be called once, after the
// renderer's style and resources have finished loading, and never from inside
// a Renderer method call.
type RendererFactory interface {
	NewRenderer(ctx context.Context, opts RendererOptions, onLoad func()) (Renderer, error)
}

// SourceSpec describes a data source.
type SourceSpec struct {
	Type     string           `json:"type"`
	URL      string           `json:"url,omitempty"`
	TileSize int              `json:"tileSize,omitempty"`
	MaxZoom  int              `json:"maxzoom,omitempty"`
	Data     *geojson.Feature `json:"data,omitempty"`
}

// LayerSpec describes a style layer.
type LayerSpec struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Source      string         `json:"source"`
	SourceLayer string         `json:"source-layer,omitempty"`
	Filter      []any          `json:"filter,omitempty"`
	MinZoom     float64        `json:"minzoom,omitempty"`
	Layout      map[string]any `json:"layout,omitempty"`
	Paint       map[string]any `json:"paint,omitempty"`
}

// TerrainSpec enables 3D terrain from a raster-dem source.
type TerrainSpec struct {
	Source       string  `json:"source"`
	Exaggeration float64 `json:"exaggeration"`
}

// CameraOptions is an animated camera move.
type CameraOptions struct {
	domain.Pose
	Essential bool `json:"essential"`
}

// FitOptions controls a bounds fit.
type FitOptions struct {
	Padding domain.Padding `json:"padding"`
	Animate bool           `json:"animate"`
}

// MarkerSpec describes an on-map marker.
type MarkerSpec struct {
	Position  domain.GeoPoint `json:"position"`
	Icon      string          `json:"icon,omitempty"`
	Color     string          `json:"color,omitempty"`
	ClassName string          `json:"className,omitempty"`
}

// Renderer is the minimal surface the map core needs from a map engine.
type Renderer interface {
	AddSource(id string, spec SourceSpec) error
	HasSource(id string) bool
	SetSourceData(id string, data *geojson.Feature) error
	AddLayer(spec LayerSpec) error
	HasLayer(id string) bool
	SetTerrain(spec TerrainSpec) error
	SetFog() error
	FlyTo(opts CameraOptions) error
	FitBounds(b domain.Bounds, opts FitOptions) error
	// OnceMoveEnd registers a listener fired once, at the end of the next camera move.
	OnceMoveEnd(fn func())
	AddMarker(spec MarkerSpec, onClick func()) (Marker, error)
	Remove() error
}

// Marker is a single rendered marker.
type Marker interface {
	SetPosition(p domain.GeoPoint) error
	Remove() error
}
