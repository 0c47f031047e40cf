package domain

import (
	"time"
)

// Pin is a point of interest shown on the map.
type Pin struct {
	ID         string     `json:"id"`
	Location   GeoPoint   `json:"location"`
	CategoryID string     `json:"category_id,omitempty"` // drives the marker icon
	Categories []string   `json:"categories,omitempty"`  // every assigned category, used for filtering
	City       string     `json:"city,omitempty"`
	Content    PinContent `json:"content"`
}

// PinContent is carried through the map core without interpretation.
type PinContent struct {
	Title               string `json:"title"`
	Description         string `json:"description,omitempty"`
	FeaturedImage       string `json:"featured_image,omitempty"`
	ConnectorID         string `json:"connector_id,omitempty"`
	CategoryConnectorID string `json:"category_connector_id,omitempty"`
	StoryID             string `json:"story_id,omitempty"`
}

// Category is a CMS location category. ParentID is empty for top-level categories.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// City is a named camera target.
type City struct {
	Key    string   `json:"key"`
	Name   string   `json:"name"`
	Center GeoPoint `json:"center"`
}

// Experience is a saved, ordered itinerary of pins.
type Experience struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Name            string    `json:"name"`
	Stops           []string  `json:"stops"` // pin ids, in visiting order
	DistanceMeters  *float64  `json:"distance_meters,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasStop reports whether pinID is already part of the experience.
func (e *Experience) HasStop(pinID string) bool {
	for _, s := range e.Stops {
		if s == pinID {
			return true
		}
	}
	return false
}

// DirectionsRequest is sent to the routing service.
type DirectionsRequest struct {
	Profile   string     `json:"profile"`
	Waypoints []GeoPoint `json:"waypoints"`
}

// DirectionsResult holds candidate routes, best first.
type DirectionsResult struct {
	Routes []RouteCandidate `json:"routes"`
}

// RouteCandidate is one routed path.
type RouteCandidate struct {
	Geometry        GeoLineString `json:"geometry"`
	DistanceMeters  float64       `json:"distance_meters"`
	DurationSeconds float64       `json:"duration_seconds"`
}

// NoticeLevel classifies user-facing notices.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible message.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title,omitempty"`
	Message string      `json:"message"`
}
