package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistence contract for the reconciliation service.
type Store interface {
	CreatePending(ctx context.Context, p *Payment) (*Payment, error)
	GetByReference(ctx context.Context, reference string) (*Payment, error)
	MarkCompleted(ctx context.Context, reference string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, reference string) (bool, error)
	MarkRefundRequested(ctx context.Context, id uuid.UUID) (bool, error)
}

// Repository persists payment records and their lifecycle transitions.
type Repository struct {
	db db
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock for tests.
func NewRepositoryWithDB(db db) *Repository {
	if db == nil {
		panic("payments: db required")
	}
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const selectColumns = `
	id, user_id, appointment_id, payment_type, amount_cents, currency, method,
	status, provider, reference, paid_at, refund_requested_at, created_at, updated_at
`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.AppointmentID,
		&p.Type,
		&p.AmountCents,
		&p.Currency,
		&p.Method,
		&p.Status,
		&p.Provider,
		&p.Reference,
		&p.PaidAt,
		&p.RefundRequestedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePending inserts the local pending record keyed by reference. This
// happens before any gateway call so a crash never leaves an external
// charge without a local record.
func (r *Repository) CreatePending(ctx context.Context, p *Payment) (*Payment, error) {
	query := `
		INSERT INTO payments (id, user_id, appointment_id, payment_type, amount_cents, currency, method, status, provider, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + selectColumns
	row := r.db.QueryRow(ctx, query,
		uuid.New(),
		p.UserID,
		p.AppointmentID,
		p.Type,
		p.AmountCents,
		p.Currency,
		p.Method,
		StatusPending,
		p.Provider,
		p.Reference,
	)
	out, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("payments: insert pending: %w", err)
	}
	return out, nil
}

// GetByReference fetches a payment by its gateway reference.
func (r *Repository) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	query := `SELECT ` + selectColumns + ` FROM payments WHERE reference = $1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: select by reference: %w", err)
	}
	return p, nil
}

// MarkCompleted moves pending -> completed. Returns false when the payment
// was not pending, which callers treat as "someone else reconciled first".
func (r *Repository) MarkCompleted(ctx context.Context, reference string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, paid_at = $2, updated_at = now()
		WHERE reference = $3 AND status = $4
	`
	ct, err := r.db.Exec(ctx, query, StatusCompleted, paidAt.UTC(), reference, StatusPending)
	if err != nil {
		return false, fmt.Errorf("payments: mark completed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkFailed moves pending -> failed.
func (r *Repository) MarkFailed(ctx context.Context, reference string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, updated_at = now()
		WHERE reference = $2 AND status = $3
	`
	ct, err := r.db.Exec(ctx, query, StatusFailed, reference, StatusPending)
	if err != nil {
		return false, fmt.Errorf("payments: mark failed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkRefundRequested records a refund request against a completed payment.
func (r *Repository) MarkRefundRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE payments
		SET refund_requested_at = now(), updated_at = now()
		WHERE id = $1 AND status = $2 AND refund_requested_at IS NULL
	`
	ct, err := r.db.Exec(ctx, query, id, StatusCompleted)
	if err != nil {
		return false, fmt.Errorf("payments: mark refund requested: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
