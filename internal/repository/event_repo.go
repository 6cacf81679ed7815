package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"festhub-backend/internal/models"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

// EventFilter narrows List. Zero values mean "no filter".
type EventFilter struct {
	After    *time.Time
	Before   *time.Time
	Category string
	Limit    int
	Order    string // "asc" or "desc", default "desc"
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (id, title, description, category, location, starts_at, ends_at, prize, image_url, organizer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	event.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		event.ID, event.Title, event.Description, event.Category, event.Location,
		event.StartsAt, event.EndsAt, event.Prize, event.ImageURL, event.OrganizerID,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
}

func (r *EventRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event := &models.Event{}
	query := `SELECT id, title, description, category, location, starts_at, ends_at, prize, image_url, organizer_id, created_at, updated_at
		FROM events WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&event.ID, &event.Title, &event.Description, &event.Category, &event.Location,
		&event.StartsAt, &event.EndsAt, &event.Prize, &event.ImageURL, &event.OrganizerID,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *EventRepo) List(ctx context.Context, filter EventFilter) ([]*models.Event, error) {
	query := `SELECT id, title, description, category, location, starts_at, ends_at, prize, image_url, organizer_id, created_at, updated_at
		FROM events WHERE 1=1`
	args := []interface{}{}

	if filter.After != nil {
		args = append(args, *filter.After)
		query += fmt.Sprintf(" AND starts_at > $%d", len(args))
	}
	if filter.Before != nil {
		args = append(args, *filter.Before)
		query += fmt.Sprintf(" AND starts_at < $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}

	order := "DESC"
	if filter.Order == "asc" {
		order = "ASC"
	}
	query += " ORDER BY starts_at " + order + " NULLS LAST"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		if err := rows.Scan(
			&event.ID, &event.Title, &event.Description, &event.Category, &event.Location,
			&event.StartsAt, &event.EndsAt, &event.Prize, &event.ImageURL, &event.OrganizerID,
			&event.CreatedAt, &event.UpdatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *EventRepo) Update(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, category = $3, location = $4,
			starts_at = $5, ends_at = $6, prize = $7, image_url = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		event.Title, event.Description, event.Category, event.Location,
		event.StartsAt, event.EndsAt, event.Prize, event.ImageURL, event.ID,
	).Scan(&event.UpdatedAt)
}

func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	return err
}
