package http

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const defaultAPIDocPath = "api/openapi.yaml"

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Pinmap API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/docs/openapi.json', dom_id: '#swagger-ui', deepLinking: true});
  </script>
</body>
</html>`

// apiDocument is the OpenAPI description in both served encodings.
type apiDocument struct {
	yaml    []byte
	json    []byte
	version string
}

// loadAPIDocument reads and validates the OpenAPI description at path.
func loadAPIDocument(ctx context.Context, path string) (*apiDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api document: %w", err)
	}
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse api document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate api document: %w", err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode api document: %w", err)
	}
	var version string
	if doc.Info != nil {
		version = doc.Info.Version
	}
	return &apiDocument{yaml: data, json: encoded, version: version}, nil
}

// SetupDocs registers Swagger UI at /docs and the OpenAPI description at
// /docs/openapi.yaml and /docs/openapi.json. The description is loaded once;
// if it is missing or invalid the document routes answer 503.
func SetupDocs(app *fiber.App, deps *Dependencies) {
	path := deps.APIDoc
	if path == "" {
		path = defaultAPIDocPath
	}
	doc, err := loadAPIDocument(context.Background(), path)
	if err != nil {
		deps.logger().Warn("api docs disabled", "path", path, "error", err)
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	serve := func(contentType string, body func(*apiDocument) []byte) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if doc == nil {
				return errUnavailable(c, "api document unavailable")
			}
			if doc.version != "" {
				c.Set("X-API-Doc-Version", doc.version)
			}
			c.Set(fiber.HeaderContentType, contentType)
			return c.Send(body(doc))
		}
	}
	app.Get("/docs/openapi.yaml", serve("application/yaml", func(d *apiDocument) []byte { return d.yaml }))
	app.Get("/docs/openapi.json", serve(fiber.MIMEApplicationJSON, func(d *apiDocument) []byte { return d.json }))
}
