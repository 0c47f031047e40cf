// Package wordpress implements ports.PinSource on the WordPress REST API
// exposed by the content site (custom "locations" post type, ACF fields).
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/pinmap/internal/adapters/upstream"
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

// maxPages bounds pagination against a misbehaving X-WP-TotalPages header.
const maxPages = 20

// PinSource reads locations and location categories.
type PinSource struct {
	client  *upstream.Client
	baseURL string
	perPage int
	logger  *slog.Logger
}

// NewPinSource creates a PinSource rooted at baseURL (".../wp-json/wp/v2").
func NewPinSource(baseURL string, perPage int, timeout time.Duration, logger *slog.Logger) *PinSource {
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PinSource{
		client:  upstream.New("pinmap-cms", timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		perPage: perPage,
		logger:  logger,
	}
}

type rendered struct {
	Rendered string `json:"rendered"`
}

// flexString accepts the string, number, false and null values ACF emits for
// empty or numeric fields.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

// acfImage is either an image object or false.
type acfImage struct {
	URL string
}

func (i *acfImage) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, b[0] != '{' && b[0] != '"':
		return nil
	case b[0] == '"':
		return json.Unmarshal(b, &i.URL)
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	i.URL = obj.URL
	return nil
}

type acfFields struct {
	GPSCoordinates      flexString `json:"gps_coordinates"`
	Description         flexString `json:"description"`
	FeaturedImage       acfImage   `json:"featured_image"`
	ConnectorID         flexString `json:"connector_id"`
	CategoryConnectorID flexString `json:"category_connector_id"`
	StoryID             flexString `json:"story_id"`
}

// UnmarshalJSON tolerates the empty array WordPress sends when a post has no
// ACF values.
func (a *acfFields) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	type plain acfFields
	return json.Unmarshal(b, (*plain)(a))
}

type location struct {
	ID               int64      `json:"id"`
	Title            rendered   `json:"title"`
	Content          rendered   `json:"content"`
	LocationCategory []int64    `json:"location_category"`
	ACF              *acfFields `json:"acf"`
	Embedded         struct {
		FeaturedMedia []struct {
			SourceURL string `json:"source_url"`
		} `json:"wp:featuredmedia"`
	} `json:"_embedded"`
}

type category struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Parent int64  `json:"parent"`
}

// CityPins returns every location of city. Locations without parseable
// coordinates are skipped.
func (s *PinSource) CityPins(ctx context.Context, city string) ([]domain.Pin, error) {
	city = strings.ToLower(strings.TrimSpace(city))
	q := url.Values{}
	q.Set("city", city)
	q.Set("_embed", "")
	q.Set("acf_format", "standard")

	var pins []domain.Pin
	err := s.paginate(ctx, "cms.locations", "/locations", q, func(raw json.RawMessage) error {
		var locs []location
		if err := json.Unmarshal(raw, &locs); err != nil {
			return err
		}
		for _, loc := range locs {
			pin, err := loc.toPin(city)
			if err != nil {
				metrics.PinsDropped.Inc()
				s.logger.Debug("skipping location", "id", loc.ID, "error", err)
				continue
			}
			pins = append(pins, pin)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s pins: %w", city, err)
	}
	return pins, nil
}

// GetPin fetches a single location by id.
func (s *PinSource) GetPin(ctx context.Context, id string) (*domain.Pin, error) {
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, fmt.Errorf("pin %q: %w", id, domain.ErrNotFound)
	}
	u := s.baseURL + "/locations/" + id + "?_embed=&acf_format=standard"

	var loc location
	if _, err := s.client.GetJSON(ctx, "cms.location", u, &loc); err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) && se.Status == 404 {
			return nil, fmt.Errorf("pin %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch pin %s: %w", id, err)
	}
	pin, err := loc.toPin("")
	if err != nil {
		return nil, fmt.Errorf("pin %s: %w", id, err)
	}
	return &pin, nil
}

// Categories returns every location category.
func (s *PinSource) Categories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	err := s.paginate(ctx, "cms.categories", "/location_category", url.Values{}, func(raw json.RawMessage) error {
		var page []category
		if err := json.Unmarshal(raw, &page); err != nil {
			return err
		}
		for _, c := range page {
			dc := domain.Category{ID: strconv.FormatInt(c.ID, 10), Name: c.Name}
			if c.Parent != 0 {
				dc.ParentID = strconv.FormatInt(c.Parent, 10)
			}
			cats = append(cats, dc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}
	return cats, nil
}

// paginate walks pages 1..X-WP-TotalPages, handing each raw body to fn.
func (s *PinSource) paginate(ctx context.Context, op, path string, q url.Values, fn func(json.RawMessage) error) error {
	q.Set("per_page", strconv.Itoa(s.perPage))
	total := 1
	for page := 1; page <= total && page <= maxPages; page++ {
		q.Set("page", strconv.Itoa(page))
		var raw json.RawMessage
		hdr, err := s.client.GetJSON(ctx, op, s.baseURL+path+"?"+q.Encode(), &raw)
		if err != nil {
			return err
		}
		if err := fn(raw); err != nil {
			return fmt.Errorf("decode page %d: %w", page, err)
		}
		if n, err := strconv.Atoi(hdr.Get("X-WP-TotalPages")); err == nil && n > total {
			total = n
		}
	}
	return nil
}

func (l location) toPin(city string) (domain.Pin, error) {
	if l.ACF == nil || l.ACF.GPSCoordinates == "" {
		return domain.Pin{}, fmt.Errorf("%w: missing gps_coordinates", domain.ErrInvalidCoordinates)
	}
	pos, err := domain.ParseCoordinates(string(l.ACF.GPSCoordinates))
	if err != nil {
		return domain.Pin{}, err
	}

	cats := make([]string, len(l.LocationCategory))
	for i, c := range l.LocationCategory {
		cats[i] = strconv.FormatInt(c, 10)
	}
	pin := domain.Pin{
		ID:         strconv.FormatInt(l.ID, 10),
		Location:   pos,
		Categories: cats,
		City:       city,
		Content: domain.PinContent{
			Title:               l.Title.Rendered,
			Description:         l.Content.Rendered,
			FeaturedImage:       l.ACF.FeaturedImage.URL,
			ConnectorID:         string(l.ACF.ConnectorID),
			CategoryConnectorID: string(l.ACF.CategoryConnectorID),
			StoryID:             string(l.ACF.StoryID),
		},
	}
	if len(cats) > 0 {
		pin.CategoryID = cats[0]
	}
	if pin.Content.Description == "" {
		pin.Content.Description = string(l.ACF.Description)
	}
	if pin.Content.FeaturedImage == "" && len(l.Embedded.FeaturedMedia) > 0 {
		pin.Content.FeaturedImage = l.Embedded.FeaturedMedia[0].SourceURL
	}
	return pin, nil
}
