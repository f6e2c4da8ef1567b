package doctors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads the doctor directory.
type Repository struct {
	db db
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("doctors: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock for tests.
func NewRepositoryWithDB(db db) *Repository {
	if db == nil {
		panic("doctors: db required")
	}
	return &Repository{db: db}
}

// GetByID fetches a doctor regardless of verification status.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	query := `
		SELECT id, full_name, status, clinic_id, consultation_duration_minutes,
		       consultation_fee_cents, consultation_count, created_at
		FROM doctors
		WHERE id = $1
	`
	var d Doctor
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.FullName,
		&d.Status,
		&d.ClinicID,
		&d.ConsultationDurationMinutes,
		&d.ConsultationFeeCents,
		&d.ConsultationCount,
		&d.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	return &d, nil
}

// GetVerified fetches a doctor and rejects anyone outside verified status.
func (r *Repository) GetVerified(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Verified() {
		return nil, ErrDoctorNotVerified
	}
	return d, nil
}

// IncrementConsultations bumps the lifetime consultation counter.
func (r *Repository) IncrementConsultations(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE doctors
		SET consultation_count = consultation_count + 1, updated_at = now()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("doctors: increment consultations: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}
