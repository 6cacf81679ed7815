package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"festhub-backend/internal/models"
)

type HolidayRepo struct {
	pool *pgxpool.Pool
}

func NewHolidayRepo(pool *pgxpool.Pool) *HolidayRepo {
	return &HolidayRepo{pool: pool}
}

// ListByYear returns the festival calendar for a year, optionally narrowed
// to a single month (1-12; 0 means the whole year).
func (r *HolidayRepo) ListByYear(ctx context.Context, year, month int) ([]*models.Holiday, error) {
	query := `SELECT id, date, name, type, description
		FROM holidays
		WHERE EXTRACT(YEAR FROM date) = $1`
	args := []interface{}{year}

	if month >= 1 && month <= 12 {
		query += " AND EXTRACT(MONTH FROM date) = $2"
		args = append(args, month)
	}
	query += " ORDER BY date"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []*models.Holiday
	for rows.Next() {
		h := &models.Holiday{}
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &h.Type, &h.Description); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
