package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema wired to our services.
// Field resolution relies on the json tags of the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	poseType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pose",
		Fields: graphql.Fields{
			"center":  &graphql.Field{Type: geoPointType},
			"zoom":    &graphql.Field{Type: graphql.Float},
			"pitch":   &graphql.Field{Type: graphql.Float},
			"bearing": &graphql.Field{Type: graphql.Float},
			"speed":   &graphql.Field{Type: graphql.Float},
		},
	})

	cityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "City",
		Fields: graphql.Fields{
			"key":    &graphql.Field{Type: graphql.String},
			"name":   &graphql.Field{Type: graphql.String},
			"center": &graphql.Field{Type: geoPointType},
			"pose": &graphql.Field{
				Type: poseType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					city, ok := p.Source.(domain.City)
					if !ok {
						return nil, nil
					}
					return domain.CityPose(city), nil
				},
			},
		},
	})

	pinContentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PinContent",
		Fields: graphql.Fields{
			"title":                 &graphql.Field{Type: graphql.String},
			"description":           &graphql.Field{Type: graphql.String},
			"featured_image":        &graphql.Field{Type: graphql.String},
			"connector_id":          &graphql.Field{Type: graphql.String},
			"category_connector_id": &graphql.Field{Type: graphql.String},
			"story_id":              &graphql.Field{Type: graphql.String},
		},
	})

	pinType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pin",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"category_id": &graphql.Field{Type: graphql.String},
			"categories":  &graphql.Field{Type: graphql.NewList(graphql.String)},
			"city":        &graphql.Field{Type: graphql.String},
			"content":     &graphql.Field{Type: pinContentType},
		},
	})

	categoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Category",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"parent_id": &graphql.Field{Type: graphql.String},
		},
	})

	filterGroupType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FilterGroup",
		Fields: graphql.Fields{
			"name":    &graphql.Field{Type: graphql.String},
			"options": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"duration_seconds": &graphql.Field{Type: graphql.Float},
			"coordinates": &graphql.Field{
				Type: graphql.NewList(geoPointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					switch r := p.Source.(type) {
					case domain.RouteCandidate:
						return r.Geometry.Coordinates, nil
					case *domain.RouteCandidate:
						return r.Geometry.Coordinates, nil
					}
					return nil, nil
				},
			},
		},
	})

	experienceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Experience",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"owner_id":         &graphql.Field{Type: graphql.String},
			"name":             &graphql.Field{Type: graphql.String},
			"stops":            &graphql.Field{Type: graphql.NewList(graphql.String)},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"duration_seconds": &graphql.Field{Type: graphql.Float},
		},
	})

	waypointInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "WaypointInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lng": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"cities": &graphql.Field{
				Type:        graphql.NewList(cityType),
				Description: "Quick-locator city catalogue",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return domain.Cities, nil
				},
			},
			"city": &graphql.Field{
				Type:        cityType,
				Description: "Get a city by key or name",
				Args: graphql.FieldConfigArgument{
					"key": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					city, ok := domain.LookupCity(p.Args["key"].(string))
					if !ok {
						return nil, domain.ErrNotFound
					}
					return city, nil
				},
			},
			"pins": &graphql.Field{
				Type:        graphql.NewList(pinType),
				Description: "Valid pins of a city, optionally restricted to sub-categories",
				Args: graphql.FieldConfigArgument{
					"city":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"categories": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					city, ok := domain.LookupCity(p.Args["city"].(string))
					if !ok {
						return nil, domain.ErrNotFound
					}
					pins, err := deps.Pins.CityPins(p.Context, city.Key)
					if err != nil {
						return nil, err
					}
					names := stringArgs(p.Args["categories"])
					if len(names) == 0 {
						return pins, nil
					}
					return deps.Pins.Filter(p.Context, pins, names)
				},
			},
			"pin": &graphql.Field{
				Type:        pinType,
				Description: "Get a pin by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Pins.GetPin(p.Context, p.Args["id"].(string))
				},
			},
			"categories": &graphql.Field{
				Type:        graphql.NewList(categoryType),
				Description: "CMS location categories",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Pins.Categories(p.Context)
				},
			},
			"filters": &graphql.Field{
				Type:        graphql.NewList(filterGroupType),
				Description: "Parent categories with their selectable sub-categories",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					groups, err := deps.Pins.FilterGroups(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(groups))
					for name, options := range groups {
						out = append(out, map[string]interface{}{"name": name, "options": options})
					}
					return out, nil
				},
			},
			"directions": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "Candidate routes through the waypoints, best first",
				Args: graphql.FieldConfigArgument{
					"profile":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"waypoints": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(waypointInput))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Directions == nil {
						return nil, errors.New("routing is not configured")
					}
					req := domain.DirectionsRequest{Profile: p.Args["profile"].(string)}
					raw, _ := p.Args["waypoints"].([]interface{})
					for _, w := range raw {
						m, _ := w.(map[string]interface{})
						lat, _ := m["lat"].(float64)
						lng, _ := m["lng"].(float64)
						req.Waypoints = append(req.Waypoints, domain.GeoPoint{Lat: lat, Lon: lng})
					}
					res, err := deps.Directions.Directions(p.Context, req)
					if err != nil {
						return nil, err
					}
					return res.Routes, nil
				},
			},
			"experiences": &graphql.Field{
				Type:        graphql.NewList(experienceType),
				Description: "Experiences saved by an owner",
				Args: graphql.FieldConfigArgument{
					"owner_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Experiences.ListByOwner(p.Context, p.Args["owner_id"].(string))
				},
			},
			"experience": &graphql.Field{
				Type:        experienceType,
				Description: "Get an experience by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Experiences.Get(p.Context, p.Args["id"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func stringArgs(v interface{}) []string {
	raw, _ := v.([]interface{})
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
