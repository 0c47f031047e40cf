// Package mapbox implements ports.RoutingService on the Mapbox Directions API.
package mapbox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pinmap/internal/adapters/upstream"
	"github.com/samirrijal/pinmap/internal/core/domain"
)

const defaultBaseURL = "https://api.mapbox.com"

// Directions calls /directions/v5/mapbox/{profile}/{coordinates}.
type Directions struct {
	client  *upstream.Client
	baseURL string
	token   string
}

// NewDirections creates a Directions client. baseURL may be empty.
func NewDirections(baseURL, token string, timeout time.Duration) *Directions {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Directions{
		client:  upstream.New("pinmap-directions", timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry *geojson.Geometry `json:"geometry"`
		Distance float64           `json:"distance"`
		Duration float64           `json:"duration"`
	} `json:"routes"`
}

// Directions requests full-overview GeoJSON geometry for req.
func (d *Directions) Directions(ctx context.Context, req domain.DirectionsRequest) (*domain.DirectionsResult, error) {
	if req.Profile == "" {
		return nil, errors.New("mapbox directions: profile is required")
	}

	var body directionsResponse
	_, err := d.client.GetJSON(ctx, "mapbox.directions", d.url(req), &body)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) && se.Status == 404 {
			return nil, fmt.Errorf("mapbox directions: %w: %w", domain.ErrNoRoute, err)
		}
		return nil, fmt.Errorf("mapbox directions: %w", err)
	}

	switch body.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, fmt.Errorf("mapbox directions: %w: %s", domain.ErrNoRoute, body.Code)
	default:
		return nil, fmt.Errorf("mapbox directions: %s: %s", body.Code, body.Message)
	}

	res := &domain.DirectionsResult{Routes: make([]domain.RouteCandidate, 0, len(body.Routes))}
	for _, r := range body.Routes {
		if r.Geometry == nil {
			continue
		}
		ls, ok := r.Geometry.Geometry().(orb.LineString)
		if !ok {
			continue
		}
		res.Routes = append(res.Routes, domain.RouteCandidate{
			Geometry:        domain.LineFromOrb(ls),
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
		})
	}
	return res, nil
}

func (d *Directions) url(req domain.DirectionsRequest) string {
	coords := make([]string, len(req.Waypoints))
	for i, w := range req.Waypoints {
		coords[i] = strconv.FormatFloat(w.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(w.Lat, 'f', -1, 64)
	}

	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("access_token", d.token)

	return fmt.Sprintf("%s/directions/v5/mapbox/%s/%s?%s",
		d.baseURL, url.PathEscape(req.Profile), strings.Join(coords, ";"), q.Encode())
}
