package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/pkg/geospatial"
)

// ownerHeader identifies the caller for experience endpoints.
const ownerHeader = "X-Owner-ID"

// CityResponse is a catalogue city plus the camera pose used to frame it.
type CityResponse struct {
	domain.City
	Pose domain.Pose `json:"pose"`
}

// ListCitiesHandler returns the quick-locator catalogue.
func ListCitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out := make([]CityResponse, 0, len(domain.Cities))
		for _, city := range domain.Cities {
			out = append(out, CityResponse{City: city, Pose: domain.CityPose(city)})
		}
		return c.JSON(out)
	}
}

// GetCityHandler returns one city by key or name.
func GetCityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		city, ok := domain.LookupCity(c.Params("key"))
		if !ok {
			return errNotFound(c, "city not found")
		}
		return c.JSON(CityResponse{City: city, Pose: domain.CityPose(city)})
	}
}

// CityPinsHandler returns the valid pins of a city.
// Optional query: categories (comma separated sub-category names), lat/lng/radius, offset/limit.
func CityPinsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		city, ok := domain.LookupCity(c.Params("key"))
		if !ok {
			return errNotFound(c, "city not found")
		}
		return listPins(c, deps, city.Key)
	}
}

// LegacyPinsHandler serves GET /v1/pins?city=.
func LegacyPinsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Query("city")
		if key == "" {
			return errBadRequest(c, "city is required")
		}
		city, ok := domain.LookupCity(key)
		if !ok {
			return errNotFound(c, "city not found")
		}
		return listPins(c, deps, city.Key)
	}
}

func listPins(c *fiber.Ctx, deps *Dependencies, city string) error {
	ctx := c.UserContext()
	pins, err := deps.Pins.CityPins(ctx, city)
	if err != nil {
		return errFromDomain(c, err)
	}

	if names := splitList(c.Query("categories")); len(names) > 0 {
		if pins, err = deps.Pins.Filter(ctx, pins, names); err != nil {
			return errFromDomain(c, err)
		}
	}

	if c.Query("lat") != "" || c.Query("lng") != "" {
		center := domain.GeoPoint{Lat: c.QueryFloat("lat", 0), Lon: c.QueryFloat("lng", 0)}
		radius := c.QueryFloat("radius", 1000)
		if !center.Valid() {
			return errBadRequest(c, "invalid lat/lng")
		}
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 0 and 50000 meters")
		}
		points := make([]orb.Point, len(pins))
		for i, p := range pins {
			points[i] = p.Location.Orb()
		}
		idx := geospatial.WithinRadius(center.Orb(), points, radius)
		near := make([]domain.Pin, 0, len(idx))
		for _, i := range idx {
			near = append(near, pins[i])
		}
		pins = near
	}

	offset, limit := pageParams(c)
	pins, pg := paginate(pins, offset, limit)
	SetLinkHeaders(c, pg)
	return c.JSON(PaginatedResponse{Data: pins, Pagination: pg})
}

// GetPinHandler returns a single pin.
func GetPinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pin, err := deps.Pins.GetPin(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(pin)
	}
}

// CategoriesResponse lists CMS categories and the filter groups derived from them.
type CategoriesResponse struct {
	Categories []domain.Category   `json:"categories"`
	Filters    map[string][]string `json:"filters"`
}

// CategoriesHandler returns every category plus the parent → sub-category groups.
func CategoriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		cats, err := deps.Pins.Categories(ctx)
		if err != nil {
			return errFromDomain(c, err)
		}
		groups, err := deps.Pins.FilterGroups(ctx)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(CategoriesResponse{Categories: cats, Filters: groups})
	}
}

// DirectionsHandler proxies a directions request to the routing provider.
func DirectionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Directions == nil {
			return errUnavailable(c, "routing is not configured")
		}
		var req domain.DirectionsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		res, err := deps.Directions.Directions(c.UserContext(), req)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

type createExperienceRequest struct {
	Name  string   `json:"name"`
	Stops []string `json:"stops"`
}

type addStopRequest struct {
	PinID string `json:"pin_id"`
}

// ListExperiencesHandler returns the caller's experiences.
func ListExperiencesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := c.Get(ownerHeader)
		if owner == "" {
			return errUnauthorized(c, "missing "+ownerHeader)
		}
		exps, err := deps.Experiences.ListByOwner(c.UserContext(), owner)
		if err != nil {
			return errFromDomain(c, err)
		}
		if exps == nil {
			exps = []domain.Experience{}
		}
		return c.JSON(exps)
	}
}

// CreateExperienceHandler saves a new experience for the caller.
func CreateExperienceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := c.Get(ownerHeader)
		if owner == "" {
			return errUnauthorized(c, "missing "+ownerHeader)
		}
		var req createExperienceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		exp, err := deps.Experiences.Create(c.UserContext(), owner, req.Name, req.Stops)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/experiences/" + exp.ID)
		return c.Status(fiber.StatusCreated).JSON(exp)
	}
}

// GetExperienceHandler returns one experience owned by the caller.
func GetExperienceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		exp, err := ownedExperience(c, deps)
		if err != nil || exp == nil {
			return err
		}
		return c.JSON(exp)
	}
}

// DeleteExperienceHandler removes an experience.
func DeleteExperienceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		exp, err := ownedExperience(c, deps)
		if err != nil || exp == nil {
			return err
		}
		if err := deps.Experiences.Delete(c.UserContext(), exp.ID); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// AddStopHandler appends a pin to an experience.
func AddStopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		exp, err := ownedExperience(c, deps)
		if err != nil || exp == nil {
			return err
		}
		var req addStopRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		updated, err := deps.Experiences.AddStop(c.UserContext(), exp.ID, req.PinID)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(updated)
	}
}

// RemoveStopHandler drops one pin from an experience.
func RemoveStopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		exp, err := ownedExperience(c, deps)
		if err != nil || exp == nil {
			return err
		}
		updated, err := deps.Experiences.RemoveStop(c.UserContext(), exp.ID, c.Params("pinId"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(updated)
	}
}

// ClearStopsHandler empties an experience.
func ClearStopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		exp, err := ownedExperience(c, deps)
		if err != nil || exp == nil {
			return err
		}
		updated, err := deps.Experiences.ClearStops(c.UserContext(), exp.ID)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(updated)
	}
}

// ExperienceRouteResponse is the planned route of an experience.
type ExperienceRouteResponse struct {
	ExperienceID string                 `json:"experience_id"`
	Route        *domain.RouteCandidate `json:"route"`
}

// ExperienceRouteHandler routes the experience's stops in order and stores the summary.
func ExperienceRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		exp, err := ownedExperience(c, deps)
		if err != nil || exp == nil {
			return err
		}
		if deps.Itineraries == nil {
			return errUnavailable(c, "routing is not configured")
		}
		route, err := deps.Itineraries.Plan(c.UserContext(), exp.ID)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "private, max-age=0")
		return c.JSON(ExperienceRouteResponse{ExperienceID: exp.ID, Route: route})
	}
}

// ownedExperience loads the :id experience and checks the caller owns it.
// A nil experience means the error response has already been written.
func ownedExperience(c *fiber.Ctx, deps *Dependencies) (*domain.Experience, error) {
	owner := c.Get(ownerHeader)
	if owner == "" {
		return nil, errUnauthorized(c, "missing "+ownerHeader)
	}
	exp, err := deps.Experiences.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, errFromDomain(c, err)
	}
	if exp.OwnerID != owner {
		return nil, errForbidden(c, "experience belongs to another owner")
	}
	return exp, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
