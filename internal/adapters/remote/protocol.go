// Package remote drives a map engine running in a connected client. Every
// renderer call becomes a Command sent to the client, and the client answers
// with Messages (load, moveend, marker clicks, geolocation results).
package remote

import (
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// Command operations sent to the client.
const (
	OpInit              = "init"
	OpAddSource         = "addSource"
	OpSetSourceData     = "setSourceData"
	OpAddLayer          = "addLayer"
	OpSetTerrain        = "setTerrain"
	OpSetFog            = "setFog"
	OpFlyTo             = "flyTo"
	OpFitBounds         = "fitBounds"
	OpAddMarker         = "addMarker"
	OpSetMarkerPosition = "setMarkerPosition"
	OpRemoveMarker      = "removeMarker"
	OpRemove            = "remove"
	OpLocate            = "locate"
	OpNotice            = "notice"

	// Session output, not renderer calls.
	OpPins         = "pins"
	OpPinClicked   = "pinClicked"
	OpAnimationEnd = "animationEnd"
	OpRoute        = "route"
	OpFilters      = "filters"
	OpError        = "error"
)

// Message types received from the client.
const (
	MsgLoad          = "load"
	MsgMoveEnd       = "moveend"
	MsgMarkerClick   = "marker_click"
	MsgPosition      = "position"
	MsgPositionError = "position_error"
)

// Command is one server to client instruction.
type Command struct {
	Op   string `json:"op"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Message is a client to server frame. Renderer and geolocation callbacks use
// Type, ID, Lat, Lng and Error; the remaining fields carry user actions.
// A moveend carries the id of the flyTo or fitBounds command whose move ended.
type Message struct {
	Type  string   `json:"type"`
	ID    string   `json:"id,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
	Error string   `json:"error,omitempty"`

	City         string   `json:"city,omitempty"`
	PinID        string   `json:"pin_id,omitempty"`
	PinIDs       []string `json:"pin_ids,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	ExperienceID string   `json:"experience_id,omitempty"`
}

// IsRendererMessage reports whether m is a callback consumed by the Bridge
// rather than a user action.
func (m Message) IsRendererMessage() bool {
	switch m.Type {
	case MsgLoad, MsgMoveEnd, MsgMarkerClick, MsgPosition, MsgPositionError:
		return true
	}
	return false
}

type addSourcePayload struct {
	ID     string           `json:"id"`
	Source ports.SourceSpec `json:"source"`
}

type fitBoundsPayload struct {
	Bounds  [2][2]float64    `json:"bounds"`
	Options ports.FitOptions `json:"options"`
}

type markerPayload struct {
	ports.MarkerSpec
	LngLat [2]float64 `json:"lngLat"`
}

type positionPayload struct {
	LngLat [2]float64 `json:"lngLat"`
}

type cameraPayload struct {
	Center    [2]float64 `json:"center"`
	Zoom      float64    `json:"zoom"`
	Pitch     float64    `json:"pitch"`
	Bearing   float64    `json:"bearing"`
	Speed     float64    `json:"speed,omitempty"`
	Essential bool       `json:"essential"`
}

type initPayload struct {
	Style     string         `json:"style"`
	Center    [2]float64     `json:"center"`
	Zoom      float64        `json:"zoom"`
	Pitch     float64        `json:"pitch"`
	MaxBounds *[2][2]float64 `json:"maxBounds,omitempty"`
}

func newInitPayload(opts ports.RendererOptions) initPayload {
	p := initPayload{
		Style:  opts.Style,
		Center: opts.Center.LngLat(),
		Zoom:   opts.Zoom,
		Pitch:  opts.Pitch,
	}
	if opts.MaxBounds != nil {
		b := opts.MaxBounds.SouthWestNorthEast()
		p.MaxBounds = &b
	}
	return p
}

func newCameraPayload(opts ports.CameraOptions) cameraPayload {
	return cameraPayload{
		Center:    opts.Center.LngLat(),
		Zoom:      opts.Zoom,
		Pitch:     opts.Pitch,
		Bearing:   opts.Bearing,
		Speed:     opts.Speed,
		Essential: opts.Essential,
	}
}

// point returns the position carried by a position message.
func (m Message) point() (domain.GeoPoint, bool) {
	if m.Lat == nil || m.Lng == nil {
		return domain.GeoPoint{}, false
	}
	p := domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lng}
	return p, p.Valid()
}
