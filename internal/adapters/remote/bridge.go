package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// Bridge is the per-connection adapter. It builds the remote renderer, asks
// the client for its position, delivers notices and routes client callbacks
// back to whoever is waiting on them.
type Bridge struct {
	out    *Outbox
	logger *slog.Logger

	mu       sync.Mutex
	renderer *Renderer
	onLoad   func()
	loaded   bool
	locates  map[string]chan Message
}

var (
	_ ports.RendererFactory = (*Bridge)(nil)
	_ ports.Geolocator      = (*Bridge)(nil)
	_ ports.Notifier        = (*Bridge)(nil)
)

// NewBridge creates a Bridge writing to out.
func NewBridge(out *Outbox, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{out: out, logger: logger, locates: make(map[string]chan Message)}
}

// NewRenderer asks the client to create its map. onLoad runs when the client
// reports MsgLoad.
func (b *Bridge) NewRenderer(ctx context.Context, opts ports.RendererOptions, onLoad func()) (ports.Renderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.renderer != nil {
		return nil, errors.New("renderer already created for this connection")
	}
	if err := b.out.Send(Command{Op: OpInit, Data: newInitPayload(opts)}); err != nil {
		return nil, fmt.Errorf("send init: %w", err)
	}
	b.renderer = newRenderer(b.out)
	b.onLoad = onLoad
	return b.renderer, nil
}

// CurrentPosition asks the client for a geolocation fix and waits for the answer.
func (b *Bridge) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	id := uuid.NewString()
	ch := make(chan Message, 1)

	b.mu.Lock()
	b.locates[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.locates, id)
		b.mu.Unlock()
	}()

	if err := b.out.Send(Command{Op: OpLocate, ID: id}); err != nil {
		return domain.GeoPoint{}, err
	}

	select {
	case <-ctx.Done():
		return domain.GeoPoint{}, ctx.Err()
	case <-b.out.Done():
		return domain.GeoPoint{}, ErrClosed
	case m := <-ch:
		if m.Type == MsgPositionError {
			msg := m.Error
			if msg == "" {
				msg = "position unavailable"
			}
			return domain.GeoPoint{}, errors.New(msg)
		}
		p, ok := m.point()
		if !ok {
			return domain.GeoPoint{}, domain.ErrInvalidCoordinates
		}
		return p, nil
	}
}

// Notify sends a notice to the client. Delivery failures are only logged.
func (b *Bridge) Notify(_ context.Context, n domain.Notice) {
	if err := b.out.Send(Command{Op: OpNotice, Data: n}); err != nil {
		b.logger.Warn("notice not delivered", "message", n.Message, "error", err)
	}
}

// Send forwards a session-level command.
func (b *Bridge) Send(op string, data any) error {
	return b.out.Send(Command{Op: op, Data: data})
}

// Dispatch routes one client callback. Callbacks run on the caller's
// goroutine and never under the bridge lock.
func (b *Bridge) Dispatch(m Message) error {
	switch m.Type {
	case MsgLoad:
		b.mu.Lock()
		fn := b.onLoad
		if b.loaded || fn == nil {
			b.mu.Unlock()
			return nil
		}
		b.loaded = true
		b.mu.Unlock()
		fn()

	case MsgMoveEnd:
		r := b.current()
		if r == nil {
			return nil
		}
		for _, fn := range r.takeMoveEnd(m.ID) {
			fn()
		}

	case MsgMarkerClick:
		r := b.current()
		if r == nil {
			return nil
		}
		if fn := r.clickHandler(m.ID); fn != nil {
			fn()
		}

	case MsgPosition, MsgPositionError:
		b.mu.Lock()
		ch, ok := b.locates[m.ID]
		delete(b.locates, m.ID)
		b.mu.Unlock()
		if !ok {
			b.logger.Debug("position for unknown request", "id", m.ID)
			return nil
		}
		ch <- m

	default:
		return fmt.Errorf("unknown renderer message %q", m.Type)
	}
	return nil
}

func (b *Bridge) current() *Renderer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renderer
}
