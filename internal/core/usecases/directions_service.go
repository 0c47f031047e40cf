package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

// MaxWaypoints is the routing provider's per-request waypoint limit.
const MaxWaypoints = 25

// DirectionsService validates routing requests and caches their results.
// It satisfies ports.RoutingService so it can sit in front of any provider.
type DirectionsService struct {
	client         ports.RoutingService
	cache          ports.CacheService
	defaultProfile string
}

// NewDirectionsService creates a new DirectionsService.
func NewDirectionsService(client ports.RoutingService, cache ports.CacheService, defaultProfile string) *DirectionsService {
	if defaultProfile == "" {
		defaultProfile = "driving-traffic"
	}
	return &DirectionsService{client: client, cache: cache, defaultProfile: defaultProfile}
}

// Directions returns candidate routes through req.Waypoints.
func (s *DirectionsService) Directions(ctx context.Context, req domain.DirectionsRequest) (*domain.DirectionsResult, error) {
	if req.Profile == "" {
		req.Profile = s.defaultProfile
	}
	if len(req.Waypoints) < 2 {
		return nil, fmt.Errorf("%w: at least two waypoints are required", domain.ErrInvalidArgument)
	}
	if len(req.Waypoints) > MaxWaypoints {
		return nil, fmt.Errorf("%w: at most %d waypoints are allowed", domain.ErrInvalidArgument, MaxWaypoints)
	}
	for i, w := range req.Waypoints {
		if !w.Valid() {
			return nil, fmt.Errorf("waypoint %d: %w", i, domain.ErrInvalidCoordinates)
		}
	}

	cacheKey := directionsKey(req)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var res domain.DirectionsResult
			if err := json.Unmarshal(data, &res); err == nil {
				metrics.CacheHits.WithLabelValues("directions").Inc()
				return &res, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("directions").Inc()
	}

	res, err := s.client.Directions(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Routes) == 0 {
		return nil, domain.ErrNoRoute
	}

	// traffic-aware routes go stale quickly
	ttl := 600
	if strings.HasSuffix(req.Profile, "-traffic") {
		ttl = 60
	}
	if s.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, ttl)
		}
	}
	return res, nil
}

func directionsKey(req domain.DirectionsRequest) string {
	var b strings.Builder
	b.WriteString("directions:")
	b.WriteString(req.Profile)
	for i, w := range req.Waypoints {
		if i == 0 {
			b.WriteByte(':')
		} else {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%.5f,%.5f", w.Lon, w.Lat)
	}
	return b.String()
}
