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

const categoriesKey = "pins:categories"

// PinService handles pin and category lookups against the CMS.
type PinService struct {
	source ports.PinSource
	cache  ports.CacheService
}

// NewPinService creates a new PinService.
func NewPinService(source ports.PinSource, cache ports.CacheService) *PinService {
	return &PinService{source: source, cache: cache}
}

// CityPins returns the valid pins of a city.
func (s *PinService) CityPins(ctx context.Context, city string) ([]domain.Pin, error) {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return nil, fmt.Errorf("%w: city must not be empty", domain.ErrInvalidArgument)
	}

	cacheKey := cityPinsKey(city)
	var pins []domain.Pin
	if s.cacheGet(ctx, cacheKey, "city_pins", &pins) {
		return pins, nil
	}

	pins, err := s.source.CityPins(ctx, city)
	if err != nil {
		metrics.PinFetchErrors.WithLabelValues("locations").Inc()
		return nil, fmt.Errorf("fetch pins for %s: %w", city, err)
	}
	pins = ValidPins(pins)

	// 5 minutes; editors publish a few times a day
	s.cacheSet(ctx, cacheKey, pins, 300)
	return pins, nil
}

// Refresh evicts the cached pins of city and refetches them from the CMS.
func (s *PinService) Refresh(ctx context.Context, city string) ([]domain.Pin, error) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cityPinsKey(strings.ToLower(strings.TrimSpace(city)))); err != nil {
			return nil, fmt.Errorf("evict pins for %s: %w", city, err)
		}
	}
	return s.CityPins(ctx, city)
}

// RefreshCategories evicts and refetches the category tree.
func (s *PinService) RefreshCategories(ctx context.Context) ([]domain.Category, error) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, categoriesKey); err != nil {
			return nil, fmt.Errorf("evict categories: %w", err)
		}
	}
	return s.Categories(ctx)
}

func cityPinsKey(city string) string { return "pins:city:" + city }

// GetPin returns a single pin.
func (s *PinService) GetPin(ctx context.Context, id string) (*domain.Pin, error) {
	cacheKey := "pins:id:" + id
	var pin domain.Pin
	if s.cacheGet(ctx, cacheKey, "pin", &pin) {
		return &pin, nil
	}

	p, err := s.source.GetPin(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Location.Valid() {
		metrics.PinsDropped.Inc()
		return nil, fmt.Errorf("pin %s: %w", id, domain.ErrInvalidCoordinates)
	}
	s.cacheSet(ctx, cacheKey, p, 600)
	return p, nil
}

// Categories returns every location category.
func (s *PinService) Categories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	if s.cacheGet(ctx, categoriesKey, "categories", &cats) {
		return cats, nil
	}

	cats, err := s.source.Categories(ctx)
	if err != nil {
		metrics.PinFetchErrors.WithLabelValues("categories").Inc()
		return nil, fmt.Errorf("fetch categories: %w", err)
	}
	s.cacheSet(ctx, categoriesKey, cats, 3600)
	return cats, nil
}

// FilterGroups maps each top-level category name to its sub-category names.
func (s *PinService) FilterGroups(ctx context.Context) (map[string][]string, error) {
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return GroupCategories(cats), nil
}

// Filter keeps the pins assigned to any of the named sub-categories.
// An empty selection keeps every pin.
func (s *PinService) Filter(ctx context.Context, pins []domain.Pin, names []string) ([]domain.Pin, error) {
	if len(names) == 0 {
		return pins, nil
	}
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return FilterPins(pins, cats, names), nil
}

// Resolve returns the pins for ids in order, preferring known pins over CMS lookups.
func (s *PinService) Resolve(ctx context.Context, ids []string, known []domain.Pin) ([]domain.Pin, error) {
	index := make(map[string]domain.Pin, len(known))
	for _, p := range known {
		index[p.ID] = p
	}
	out := make([]domain.Pin, 0, len(ids))
	for _, id := range ids {
		if p, ok := index[id]; ok {
			out = append(out, p)
			continue
		}
		p, err := s.GetPin(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve stop %s: %w", id, err)
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *PinService) cacheGet(ctx context.Context, key, op string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func (s *PinService) cacheSet(ctx context.Context, key string, v any, ttl int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttl)
	}
}

// ValidPins drops pins whose coordinates are not finite and in range.
func ValidPins(pins []domain.Pin) []domain.Pin {
	out := pins[:0:0]
	for _, p := range pins {
		if !p.Location.Valid() {
			metrics.PinsDropped.Inc()
			continue
		}
		out = append(out, p)
	}
	return out
}

// GroupCategories maps parent names to child names, in CMS order.
func GroupCategories(cats []domain.Category) map[string][]string {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	groups := make(map[string][]string)
	for _, c := range cats {
		if c.ParentID == "" {
			if _, ok := groups[c.Name]; !ok {
				groups[c.Name] = []string{}
			}
			continue
		}
		parent, ok := names[c.ParentID]
		if !ok {
			continue
		}
		groups[parent] = append(groups[parent], c.Name)
	}
	return groups
}

// FilterPins keeps pins carrying any category whose name is in names.
func FilterPins(pins []domain.Pin, cats []domain.Category, names []string) []domain.Pin {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	ids := make(map[string]struct{})
	for _, c := range cats {
		if _, ok := wanted[c.Name]; ok {
			ids[c.ID] = struct{}{}
		}
	}
	out := make([]domain.Pin, 0, len(pins))
	for _, p := range pins {
		for _, cid := range p.Categories {
			if _, ok := ids[cid]; ok {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
