package http

import (
	"context"
	"log/slog"

	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

// Pinger is a dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// SessionConfig holds the template applied to every /ws/map session.
type SessionConfig struct {
	Options usecases.SessionOptions
	// MaxSessions caps concurrent map sockets; zero means unlimited.
	MaxSessions int
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Pins        *usecases.PinService
	Directions  ports.RoutingService
	Experiences *usecases.ExperienceService
	Itineraries *usecases.ItineraryPlanner
	Events      ports.EventPublisher
	Sessions    SessionConfig
	Logger      *slog.Logger
	// APIDoc is the path of the OpenAPI description; empty means api/openapi.yaml.
	APIDoc string

	// Readiness checks; nil entries are reported as not configured.
	DB     Pinger
	Cache  Pinger
	Broker Pinger

	sessionSlots chan struct{}
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// acquireSession reserves a socket slot. The returned release func must be called.
func (d *Dependencies) acquireSession() (release func(), ok bool) {
	if d.sessionSlots == nil {
		return func() {}, true
	}
	select {
	case d.sessionSlots <- struct{}{}:
		return func() { <-d.sessionSlots }, true
	default:
		return nil, false
	}
}
