package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// ExperienceService manages saved itineraries.
type ExperienceService struct {
	repo      ports.ExperienceRepository
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewExperienceService creates a new ExperienceService. publisher may be nil.
func NewExperienceService(repo ports.ExperienceRepository, publisher ports.EventPublisher) *ExperienceService {
	return &ExperienceService{repo: repo, publisher: publisher, now: time.Now}
}

// Create stores a new experience. Duplicate stops are dropped, keeping the first occurrence.
func (s *ExperienceService) Create(ctx context.Context, ownerID, name string, stops []string) (*domain.Experience, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: experience name must not be empty", domain.ErrInvalidArgument)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner must not be empty", domain.ErrInvalidArgument)
	}

	now := s.now().UTC()
	exp := &domain.Experience{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Stops:     dedupeStops(stops),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("create experience: %w", err)
	}
	s.publishSaved(ctx, exp)
	return exp, nil
}

// Get returns one experience.
func (s *ExperienceService) Get(ctx context.Context, id string) (*domain.Experience, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByOwner returns the experiences of one user.
func (s *ExperienceService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Experience, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner must not be empty", domain.ErrInvalidArgument)
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

// AddStop appends pinID to the itinerary. Adding a stop twice fails with domain.ErrDuplicateStop.
func (s *ExperienceService) AddStop(ctx context.Context, id, pinID string) (*domain.Experience, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.HasStop(pinID) {
		return exp, domain.ErrDuplicateStop
	}
	return s.setStops(ctx, exp, append(exp.Stops, pinID))
}

// RemoveStop drops pinID from the itinerary. Removing an absent stop is a no-op.
func (s *ExperienceService) RemoveStop(ctx context.Context, id, pinID string) (*domain.Experience, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exp.HasStop(pinID) {
		return exp, nil
	}
	stops := make([]string, 0, len(exp.Stops)-1)
	for _, st := range exp.Stops {
		if st != pinID {
			stops = append(stops, st)
		}
	}
	return s.setStops(ctx, exp, stops)
}

// ClearStops empties the itinerary.
func (s *ExperienceService) ClearStops(ctx context.Context, id string) (*domain.Experience, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setStops(ctx, exp, []string{})
}

// Delete removes an experience.
func (s *ExperienceService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// RecordRouteSummary stores the computed route length and duration.
func (s *ExperienceService) RecordRouteSummary(ctx context.Context, id string, distanceMeters, durationSeconds float64) error {
	if err := s.repo.UpdateRouteSummary(ctx, id, distanceMeters, durationSeconds); err != nil {
		return fmt.Errorf("record route summary for %s: %w", id, err)
	}
	return nil
}

func (s *ExperienceService) setStops(ctx context.Context, exp *domain.Experience, stops []string) (*domain.Experience, error) {
	if err := s.repo.UpdateStops(ctx, exp.ID, stops); err != nil {
		return nil, fmt.Errorf("update stops for %s: %w", exp.ID, err)
	}
	exp.Stops = stops
	exp.UpdatedAt = s.now().UTC()
	// the stored summary no longer matches the stops
	exp.DistanceMeters = nil
	exp.DurationSeconds = nil
	s.publishSaved(ctx, exp)
	return exp, nil
}

func (s *ExperienceService) publishSaved(ctx context.Context, exp *domain.Experience) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExperienceSaved(ctx, exp); err != nil {
		slog.Warn("publish experience saved failed", "experience_id", exp.ID, "error", err)
	}
}

func dedupeStops(stops []string) []string {
	seen := make(map[string]struct{}, len(stops))
	out := make([]string, 0, len(stops))
	for _, st := range stops {
		if st == "" {
			continue
		}
		if _, ok := seen[st]; ok {
			continue
		}
		seen[st] = struct{}{}
		out = append(out, st)
	}
	return out
}
