package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeExperienceSaved delivers saved experiences to handler, one consumer group wide.
func (s *Subscriber) SubscribeExperienceSaved(ctx context.Context, handler func(ctx context.Context, exp *domain.Experience) error) error {
	sub, err := s.js.QueueSubscribe(experienceSavedSubject, experienceWorkerDurable, func(msg *nats.Msg) {
		handleJSON(ctx, msg, handler)
	},
		nats.Durable(experienceWorkerDurable),
		nats.ManualAck(),
		nats.MaxDeliver(5),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeMapEvents delivers every map session event to handler.
func (s *Subscriber) SubscribeMapEvents(ctx context.Context, handler func(ctx context.Context, event *domain.MapEvent) error) error {
	sub, err := s.js.Subscribe(mapEventSubjectPrefix+">", func(msg *nats.Msg) {
		handleJSON(ctx, msg, handler)
	},
		nats.Durable(mapEventsDurable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

// acker is the acknowledgement surface of *nats.Msg.
type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

type jsonMsg interface {
	acker
	payload() []byte
}

type natsMsg struct{ *nats.Msg }

func (m natsMsg) payload() []byte { return m.Data }

func handleJSON[T any](ctx context.Context, msg *nats.Msg, handler func(context.Context, *T) error) {
	process(ctx, natsMsg{msg}, handler)
}

// process decodes a message and settles it: undecodable messages are
// terminated, handler failures are redelivered.
func process[T any](ctx context.Context, msg jsonMsg, handler func(context.Context, *T) error) {
	var v T
	if err := json.Unmarshal(msg.payload(), &v); err != nil {
		slog.Warn("dropping undecodable message", "error", err)
		_ = msg.Term()
		return
	}
	if err := handler(ctx, &v); err != nil {
		slog.Warn("event handler failed", "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}
