package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses the handler left alone.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.Get(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/v1/cities") && !strings.HasSuffix(path, "/pins"):
			ttl = "public, max-age=86400" // static catalogue

		case strings.HasSuffix(path, "/pins") || strings.HasPrefix(path, "/v1/pins"):
			ttl = "public, max-age=300" // CMS content, matches the pin cache TTL

		case path == "/v1/categories":
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/v1/experiences"):
			ttl = "private, no-store" // per-owner and mutable

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
