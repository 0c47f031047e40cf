package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// ExperienceRepo implements ports.ExperienceRepository with pgx.
type ExperienceRepo struct {
	db *DB
}

// NewExperienceRepo creates a new ExperienceRepo.
func NewExperienceRepo(db *DB) *ExperienceRepo {
	return &ExperienceRepo{db: db}
}

const experienceColumns = `id, owner_id, name, stops, distance_meters, duration_seconds, created_at, updated_at`

// Create inserts a new experience.
func (r *ExperienceRepo) Create(ctx context.Context, e *domain.Experience) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO experiences (id, owner_id, name, stops, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.OwnerID, e.Name, e.Stops, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert experience: %w", err)
	}
	return nil
}

// GetByID returns one experience.
func (r *ExperienceRepo) GetByID(ctx context.Context, id string) (*domain.Experience, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+experienceColumns+` FROM experiences WHERE id = $1`, id)
	e, err := scanExperience(row)
	if err != nil {
		return nil, notFound(err, "experience", id)
	}
	return e, nil
}

// ListByOwner returns the experiences of one owner, newest first.
func (r *ExperienceRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Experience, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+experienceColumns+`
		FROM experiences
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT 200
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Experience
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpdateStops replaces the stop list and clears the stale route summary.
func (r *ExperienceRepo) UpdateStops(ctx context.Context, id string, stops []string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE experiences
		SET stops = $2, distance_meters = NULL, duration_seconds = NULL, updated_at = now()
		WHERE id = $1
	`, id, stops)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("experience %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateRouteSummary stores the computed route length and duration.
func (r *ExperienceRepo) UpdateRouteSummary(ctx context.Context, id string, distanceMeters, durationSeconds float64) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE experiences SET distance_meters = $2, duration_seconds = $3 WHERE id = $1
	`, id, distanceMeters, durationSeconds)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("experience %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes an experience.
func (r *ExperienceRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM experiences WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("experience %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanExperience(row pgx.Row) (*domain.Experience, error) {
	var e domain.Experience
	if err := row.Scan(
		&e.ID, &e.OwnerID, &e.Name, &e.Stops,
		&e.DistanceMeters, &e.DurationSeconds,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if e.Stops == nil {
		e.Stops = []string{}
	}
	return &e, nil
}
