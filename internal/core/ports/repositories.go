package ports

import (
	"context"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// PinSource supplies pins and categories from the content-management system.
type PinSource interface {
	// CityPins returns the pins of a city. Pins with unparseable coordinates are omitted.
	CityPins(ctx context.Context, city string) ([]domain.Pin, error)
	GetPin(ctx context.Context, id string) (*domain.Pin, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

// ExperienceRepository persists saved itineraries.
type ExperienceRepository interface {
	Create(ctx context.Context, exp *domain.Experience) error
	GetByID(ctx context.Context, id string) (*domain.Experience, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Experience, error)
	UpdateStops(ctx context.Context, id string, stops []string) error
	UpdateRouteSummary(ctx context.Context, id string, distanceMeters, durationSeconds float64) error
	Delete(ctx context.Context, id string) error
}

// MapEventStore records map session events for analytics.
type MapEventStore interface {
	Record(ctx context.Context, event *domain.MapEvent) error
}
