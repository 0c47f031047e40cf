package ports

import (
	"context"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// RoutingService computes routes between ordered waypoints.
type RoutingService interface {
	Directions(ctx context.Context, req domain.DirectionsRequest) (*domain.DirectionsResult, error)
}

// Geolocator asks the host environment for the device's current position.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (domain.GeoPoint, error)
}

// Notifier delivers user-visible notices.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notice)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishMapEvent(ctx context.Context, event *domain.MapEvent) error
	PublishExperienceSaved(ctx context.Context, exp *domain.Experience) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeExperienceSaved(ctx context.Context, handler func(ctx context.Context, exp *domain.Experience) error) error
	SubscribeMapEvents(ctx context.Context, handler func(ctx context.Context, event *domain.MapEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
