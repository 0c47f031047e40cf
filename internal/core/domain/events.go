package domain

import "time"

// MapEventType names events emitted by map sessions.
type MapEventType string

const (
	EventSessionStarted MapEventType = "session.started"
	EventSessionEnded   MapEventType = "session.ended"
	EventPinClicked     MapEventType = "pin.clicked"
	EventRouteDrawn     MapEventType = "route.drawn"
	EventRouteCleared   MapEventType = "route.cleared"
	EventRouteFailed    MapEventType = "route.failed"
)

// MapEvent is published for analytics and downstream workers.
type MapEvent struct {
	Type           MapEventType `json:"type"`
	SessionID      string       `json:"session_id"`
	Time           time.Time    `json:"time"`
	PinID          string       `json:"pin_id,omitempty"`
	Waypoints      int          `json:"waypoints,omitempty"`
	DistanceMeters float64      `json:"distance_meters,omitempty"`
	Error          string       `json:"error,omitempty"`
}
