package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

const (
	mapEventSubjectPrefix   = "pinmap.map."
	experienceSavedSubject  = "pinmap.experience.saved"
	mapEventsStream         = "MAP_EVENTS"
	experienceEventsStream  = "EXPERIENCE_EVENTS"
	experienceWorkerDurable = "experience-router"
	mapEventsDurable        = "map-event-audit"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      mapEventsStream,
			Subjects:  []string{mapEventSubjectPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      experienceEventsStream,
			Subjects:  []string{"pinmap.experience.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    72 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishMapEvent publishes a session event on pinmap.map.<type>.
func (p *Publisher) PublishMapEvent(ctx context.Context, event *domain.MapEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(MapEventSubject(event.Type), data, nats.Context(ctx))
	return err
}

// PublishExperienceSaved queues an experience for route pre-computation.
func (p *Publisher) PublishExperienceSaved(ctx context.Context, exp *domain.Experience) error {
	data, err := json.Marshal(exp)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(experienceSavedSubject, data,
		nats.Context(ctx),
		nats.MsgId(exp.ID+":"+exp.UpdatedAt.Format(time.RFC3339Nano)),
	)
	return err
}

// Ping reports whether the connection is up, for readiness probes.
func (p *Publisher) Ping() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats: %s", p.conn.Status())
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// MapEventSubject maps an event type such as "route.drawn" to its subject.
func MapEventSubject(t domain.MapEventType) string {
	return mapEventSubjectPrefix + strings.ReplaceAll(string(t), " ", "_")
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("pinmap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
