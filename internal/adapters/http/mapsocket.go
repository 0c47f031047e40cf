package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/pinmap/internal/adapters/remote"
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

// User actions accepted on /ws/map, next to the renderer callbacks.
const (
	actionSelectCity = "select_city"
	actionFilter     = "filter"
	actionFilters    = "filters"
	actionLocate     = "locate"
	actionFocusPin   = "focus_pin"
	actionDirections = "directions"
	actionItinerary  = "itinerary"
	actionExperience = "experience"
	actionClearRoute = "clear_route"
)

// pinsPayload is sent after a city selection or filter change.
type pinsPayload struct {
	City *domain.City `json:"city"`
	Pins []domain.Pin `json:"pins"`
}

type errorPayload struct {
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// mapSocket is the server side of one connected map.
type mapSocket struct {
	deps    *Dependencies
	bridge  *remote.Bridge
	session *usecases.MapSession
	logger  *slog.Logger
	actions sync.WaitGroup
}

func newMapSocket(deps *Dependencies, out *remote.Outbox) *mapSocket {
	logger := deps.logger().With("component", "mapsocket")
	s := &mapSocket{deps: deps, bridge: remote.NewBridge(out, logger), logger: logger}

	opts := deps.Sessions.Options
	opts.Logger = logger
	opts.OnPinClick = func(p domain.Pin) { s.send(remote.OpPinClicked, p) }
	opts.OnAnimationEnd = func() { s.send(remote.OpAnimationEnd, nil) }

	s.session = usecases.NewMapSession(usecases.SessionDeps{
		Renderers:   s.bridge,
		Routing:     deps.Directions,
		Locator:     s.bridge,
		Notifier:    s.bridge,
		Pins:        deps.Pins,
		Experiences: deps.Experiences,
		Events:      deps.Events,
	}, opts)
	return s
}

// handle processes one client frame. Renderer callbacks are dispatched inline;
// user actions run on their own goroutine since some wait on client replies.
func (s *mapSocket) handle(ctx context.Context, data []byte) {
	var m remote.Message
	if err := json.Unmarshal(data, &m); err != nil {
		s.send(remote.OpError, errorPayload{Message: "invalid JSON"})
		return
	}
	if m.IsRendererMessage() {
		if err := s.bridge.Dispatch(m); err != nil {
			s.send(remote.OpError, errorPayload{Action: m.Type, Message: err.Error()})
		}
		return
	}

	s.actions.Add(1)
	go func() {
		defer s.actions.Done()
		if err := s.act(ctx, m); err != nil {
			s.fail(m.Type, err)
		}
	}()
}

func (s *mapSocket) act(ctx context.Context, m remote.Message) error {
	switch m.Type {
	case actionSelectCity:
		if err := s.session.SelectCity(ctx, m.City); err != nil {
			return err
		}
		s.sendPins()

	case actionFilter:
		if err := s.session.FilterPins(ctx, m.Categories); err != nil {
			return err
		}
		s.sendPins()

	case actionFilters:
		if s.deps.Pins == nil {
			return errors.New("filters are not configured")
		}
		groups, err := s.deps.Pins.FilterGroups(ctx)
		if err != nil {
			return err
		}
		s.send(remote.OpFilters, groups)

	case actionLocate:
		return s.session.GoToUserLocation(ctx)

	case actionFocusPin:
		return s.session.FocusPin(ctx, m.PinID)

	case actionDirections:
		route, err := s.session.DirectionsToPin(ctx, m.PinID)
		if err != nil {
			return err
		}
		s.send(remote.OpRoute, route)

	case actionItinerary:
		route, err := s.session.ViewItinerary(ctx, m.PinIDs)
		if err != nil {
			return err
		}
		s.send(remote.OpRoute, route)

	case actionExperience:
		route, err := s.session.ViewExperience(ctx, m.ExperienceID)
		if err != nil {
			return err
		}
		s.send(remote.OpRoute, route)

	case actionClearRoute:
		if err := s.session.ClearRoute(ctx); err != nil {
			return err
		}
		s.send(remote.OpRoute, nil)

	default:
		return errors.New("unknown action: " + m.Type)
	}
	return nil
}

func (s *mapSocket) fail(action string, err error) {
	switch {
	case errors.Is(err, domain.ErrStaleRoute), errors.Is(err, domain.ErrStaleSelection),
		errors.Is(err, context.Canceled):
		return
	case errors.Is(err, domain.ErrNoRoute), errors.Is(err, domain.ErrLocationUnavailable):
		// Already surfaced as a notice.
		s.logger.Debug("action failed", "action", action, "error", err)
		return
	}
	s.logger.Warn("action failed", "action", action, "error", err)
	s.send(remote.OpError, errorPayload{Action: action, Message: err.Error()})
}

func (s *mapSocket) sendPins() {
	s.send(remote.OpPins, pinsPayload{City: s.session.City(), Pins: s.session.Markers.Pins()})
}

func (s *mapSocket) send(op string, data any) {
	if err := s.bridge.Send(op, data); err != nil && !errors.Is(err, remote.ErrClosed) {
		s.logger.Warn("command dropped", "op", op, "error", err)
	}
}

// close waits for in-flight actions and tears the session down.
func (s *mapSocket) close() {
	s.actions.Wait()
	if err := s.session.Close(context.Background()); err != nil {
		s.logger.Debug("session close", "error", err)
	}
}

// MapSocketHandler serves one interactive map per WebSocket connection.
// The client renders; this side runs the viewport, marker, route and
// location logic and streams renderer commands back.
func MapSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		var mu sync.Mutex
		write := func(data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		release, ok := deps.acquireSession()
		if !ok {
			data, _ := json.Marshal(remote.Command{Op: remote.OpError, Data: errorPayload{Message: "too many map sessions"}})
			_ = write(data)
			return
		}
		defer release()

		metrics.ActiveSessions.Inc()
		defer metrics.ActiveSessions.Dec()

		out := remote.NewOutbox(256)
		ms := newMapSocket(deps, out)
		ms.logger.Info("map session connected", "session_id", ms.session.ID, "remote", c.RemoteAddr().String())

		ctx, cancel := context.WithCancel(context.Background())
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			if err := out.Run(write); err != nil {
				ms.logger.Debug("map socket write failed", "error", err)
			}
		}()

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-out.Done():
					return
				}
			}
		}()

		if err := ms.session.Start(ctx); err != nil {
			ms.fail("init", err)
		} else {
			for {
				_, data, err := c.ReadMessage()
				if err != nil {
					break
				}
				ms.handle(ctx, data)
			}
		}

		cancel()
		ms.close()
		out.Close()
		<-writerDone
		ms.logger.Info("map session disconnected", "session_id", ms.session.ID)
	}
}
