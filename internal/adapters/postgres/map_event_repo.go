package postgres

import (
	"context"
	"time"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// MapEventRepo implements ports.MapEventStore.
type MapEventRepo struct {
	db *DB
}

// NewMapEventRepo creates a new MapEventRepo.
func NewMapEventRepo(db *DB) *MapEventRepo {
	return &MapEventRepo{db: db}
}

// Record appends one event. Redelivered events are ignored.
func (r *MapEventRepo) Record(ctx context.Context, ev *domain.MapEvent) error {
	at := ev.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO map_events (session_id, type, occurred_at, pin_id, waypoints, distance_meters, error)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''))
		ON CONFLICT (session_id, type, occurred_at) DO NOTHING
	`, ev.SessionID, string(ev.Type), at, ev.PinID, ev.Waypoints, ev.DistanceMeters, ev.Error)
	return err
}
