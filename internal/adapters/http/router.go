package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// legacyPinsSunset is when GET /v1/pins?city= goes away.
var legacyPinsSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	if deps.Sessions.MaxSessions > 0 && deps.sessionSlots == nil {
		deps.sessionSlots = make(chan struct{}, deps.Sessions.MaxSessions)
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			// Map sockets are long-lived; the session cap governs them.
			return websocket.IsWebSocketUpgrade(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/pins", SunsetDate: legacyPinsSunset, Alternative: "/v1/cities/{key}/pins"},
	}))
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/cities", ListCitiesHandler(deps))
	v1.Get("/cities/:key", GetCityHandler(deps))
	v1.Get("/cities/:key/pins", timeout.NewWithContext(CityPinsHandler(deps), requestTimeout))
	v1.Get("/pins", timeout.NewWithContext(LegacyPinsHandler(deps), requestTimeout))
	v1.Get("/pins/:id", timeout.NewWithContext(GetPinHandler(deps), requestTimeout))
	v1.Get("/categories", timeout.NewWithContext(CategoriesHandler(deps), requestTimeout))
	v1.Post("/directions", timeout.NewWithContext(DirectionsHandler(deps), requestTimeout))

	v1.Get("/experiences", timeout.NewWithContext(ListExperiencesHandler(deps), requestTimeout))
	v1.Post("/experiences", timeout.NewWithContext(CreateExperienceHandler(deps), requestTimeout))
	v1.Get("/experiences/:id", timeout.NewWithContext(GetExperienceHandler(deps), requestTimeout))
	v1.Delete("/experiences/:id", timeout.NewWithContext(DeleteExperienceHandler(deps), requestTimeout))
	v1.Post("/experiences/:id/stops", timeout.NewWithContext(AddStopHandler(deps), requestTimeout))
	v1.Delete("/experiences/:id/stops", timeout.NewWithContext(ClearStopsHandler(deps), requestTimeout))
	v1.Delete("/experiences/:id/stops/:pinId", timeout.NewWithContext(RemoveStopHandler(deps), requestTimeout))
	v1.Get("/experiences/:id/route", timeout.NewWithContext(ExperienceRouteHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps)

	// Map sessions
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/map", websocket.New(MapSocketHandler(deps)))
}
