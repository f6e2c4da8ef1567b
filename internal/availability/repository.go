package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores availability templates in the relational database.
type Repository struct {
	db db
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock for tests.
func NewRepositoryWithDB(db db) *Repository {
	if db == nil {
		panic("availability: db required")
	}
	return &Repository{db: db}
}

// Create inserts a new template row.
func (r *Repository) Create(ctx context.Context, tpl *Template) (*Template, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO availability_templates (id, doctor_id, weekday, start_time, end_time, mode, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		tpl.DoctorID,
		tpl.Weekday,
		tpl.StartTime,
		tpl.EndTime,
		tpl.Mode,
		tpl.Active,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("availability: insert failed: %w", err)
	}

	out := *tpl
	out.ID = id
	out.CreatedAt = createdAt
	return &out, nil
}

// ListActiveForWeekday returns the active templates matching a weekday.
func (r *Repository) ListActiveForWeekday(ctx context.Context, doctorID uuid.UUID, weekday int) ([]Template, error) {
	query := `
		SELECT id, doctor_id, weekday, start_time, end_time, mode, active, created_at
		FROM availability_templates
		WHERE doctor_id = $1 AND weekday = $2 AND active
		ORDER BY start_time
	`
	rows, err := r.db.Query(ctx, query, doctorID, weekday)
	if err != nil {
		return nil, fmt.Errorf("availability: select failed: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.DoctorID, &t.Weekday, &t.StartTime, &t.EndTime, &t.Mode, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("availability: scan failed: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: rows failed: %w", err)
	}
	return templates, nil
}

// Deactivate flips a template inactive without deleting history.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `UPDATE availability_templates SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("availability: deactivate failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("availability: template %s not found", id)
	}
	return nil
}
